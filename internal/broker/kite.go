package broker

import (
	"context"
	"errors"
	"net"
	"net/url"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"kitebridge/internal/domain"
	"kitebridge/internal/util"
)

// Compile-time interface check.
var _ Client = (*KiteClient)(nil)

// KiteClient implements Client against the Kite Connect API via the
// official SDK. It is the only type in the repository that touches the
// vendor library; everything above it sees domain types and *Error.
// Calls are throttled to stay inside the Kite per-second request quota.
type KiteClient struct {
	kc        *kiteconnect.Client
	apiSecret string
	limiter   *util.RateLimiter
}

// NewKiteClient creates a KiteClient for the given API key and secret.
func NewKiteClient(apiKey, apiSecret string) *KiteClient {
	return &KiteClient{
		kc:        kiteconnect.New(apiKey),
		apiSecret: apiSecret,
		limiter:   util.NewRateLimiter(3),
	}
}

// Name returns "kite".
func (c *KiteClient) Name() string {
	return "kite"
}

// LoginURL returns the Kite Connect login URL for the configured API key.
func (c *KiteClient) LoginURL() string {
	return c.kc.GetLoginURL()
}

// GenerateSession exchanges the request token for an access token, then
// fetches the profile to fill the identity fields.
func (c *KiteClient) GenerateSession(ctx context.Context, requestToken string) (domain.Session, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.Session{}, NewError(CategoryNetwork, err.Error(), err)
	}
	userSession, err := c.kc.GenerateSession(requestToken, c.apiSecret)
	if err != nil {
		return domain.Session{}, classifyVendorError(err)
	}

	c.kc.SetAccessToken(userSession.AccessToken)
	profile, err := c.kc.GetUserProfile()
	if err != nil {
		return domain.Session{}, classifyVendorError(err)
	}

	return domain.Session{
		AccessToken: userSession.AccessToken,
		UserID:      profile.UserID,
		UserName:    profile.UserName,
	}, nil
}

// SetAccessToken installs the credential on the underlying SDK client.
func (c *KiteClient) SetAccessToken(token string) {
	c.kc.SetAccessToken(token)
}

// PlaceOrder submits one order and returns the broker-assigned order id.
func (c *KiteClient) PlaceOrder(ctx context.Context, variety domain.Variety, params OrderParams) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", NewError(CategoryNetwork, err.Error(), err)
	}
	resp, err := c.kc.PlaceOrder(string(variety), kiteconnect.OrderParams{
		Exchange:        string(params.Exchange),
		Tradingsymbol:   params.Symbol,
		TransactionType: string(params.Side),
		Quantity:        params.Quantity,
		Product:         string(params.Product),
		OrderType:       string(params.OrderKind),
		Validity:        string(params.Validity),
		Price:           params.Price,
		TriggerPrice:    params.TriggerPrice,
		Tag:             params.Tag,
	})
	if err != nil {
		return "", classifyVendorError(err)
	}
	return resp.OrderID, nil
}

// Orders returns the day's order book.
func (c *KiteClient) Orders(ctx context.Context) ([]OrderStatus, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, NewError(CategoryNetwork, err.Error(), err)
	}
	orders, err := c.kc.GetOrders()
	if err != nil {
		return nil, classifyVendorError(err)
	}
	out := make([]OrderStatus, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderStatus{OrderID: o.OrderID, Status: o.Status})
	}
	return out, nil
}

// Positions returns the account's net positions.
func (c *KiteClient) Positions(ctx context.Context) ([]domain.Position, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, NewError(CategoryNetwork, err.Error(), err)
	}
	positions, err := c.kc.GetPositions()
	if err != nil {
		return nil, classifyVendorError(err)
	}
	out := make([]domain.Position, 0, len(positions.Net))
	for _, p := range positions.Net {
		out = append(out, domain.Position{
			Symbol:    p.Tradingsymbol,
			Quantity:  p.Quantity,
			LastPrice: p.LastPrice,
		})
	}
	return out, nil
}

// Profile fetches the user profile, doubling as the validity probe.
func (c *KiteClient) Profile(ctx context.Context) (Profile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Profile{}, NewError(CategoryNetwork, err.Error(), err)
	}
	profile, err := c.kc.GetUserProfile()
	if err != nil {
		return Profile{}, classifyVendorError(err)
	}
	return Profile{
		UserID:   profile.UserID,
		UserName: profile.UserName,
		Email:    profile.Email,
	}, nil
}

// classifyVendorError reduces SDK and transport errors to a categorized
// *Error. Kite API errors carry an ErrorType string mirroring the server's
// exception names.
func classifyVendorError(err error) *Error {
	var kerr kiteconnect.Error
	if errors.As(err, &kerr) {
		switch kerr.ErrorType {
		case "TokenException", "PermissionException", "TwoFAException", "UserException":
			return NewError(CategoryAuth, kerr.Message, err)
		case "InputException", "OrderException", "MarginException", "HoldingException":
			return NewError(CategoryInput, kerr.Message, err)
		case "NetworkException":
			return NewError(CategoryNetwork, kerr.Message, err)
		default:
			return NewError(CategoryUnknown, kerr.Message, err)
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return NewError(CategoryNetwork, urlErr.Error(), err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return NewError(CategoryNetwork, netErr.Error(), err)
	}

	return NewError(CategoryUnknown, err.Error(), err)
}
