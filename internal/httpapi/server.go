package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"kitebridge/internal/domain"
	"kitebridge/internal/gateway"
	"kitebridge/internal/history"
)

// orderPlacer is the slice of the gateway this API consumes.
type orderPlacer interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) domain.OrderResult
	Positions(ctx context.Context) ([]domain.Position, error)
	Recent(ctx context.Context, limit int) ([]history.Attempt, error)
}

// sessionInfo is the slice of the session manager this API consumes.
type sessionInfo interface {
	Authenticated(ctx context.Context) bool
	Info() *domain.Session
	Logout() (bool, error)
}

// Server serves the trading REST API.
type Server struct {
	gateway    orderPlacer
	sessions   sessionInfo
	brokerName string
	log        *slog.Logger
}

// NewServer creates a Server over the given gateway and session manager.
func NewServer(gw orderPlacer, sessions sessionInfo, brokerName string, log *slog.Logger) *Server {
	return &Server{
		gateway:    gw,
		sessions:   sessions,
		brokerName: brokerName,
		log:        log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /auth/status", s.handleAuthStatus)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("POST /trade/buy", s.handleOrder(domain.SideBuy))
	mux.HandleFunc("POST /trade/sell", s.handleOrder(domain.SideSell))
	mux.HandleFunc("GET /trade/positions", s.handlePositions)
	mux.HandleFunc("GET /trade/orders", s.handleOrders)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, map[string]string{
		"service": "kitebridge",
		"broker":  s.brokerName,
		"status":  "running",
	})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	resp := AuthStatusJSON{
		Authenticated: s.sessions.Authenticated(r.Context()),
		Broker:        s.brokerName,
	}
	if info := s.sessions.Info(); info != nil {
		resp.UserID = info.UserID
		resp.UserName = info.UserName
		resp.CreatedDate = info.CreatedDate
	}
	writeJSON(w, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	removed, err := s.sessions.Logout()
	if err != nil {
		s.log.Error("logout", "error", err)
		writeError(w, http.StatusInternalServerError, "could not remove session")
		return
	}
	writeJSON(w, LogoutJSON{LoggedOut: true, Removed: removed})
}

func (s *Server) handleOrder(side domain.Side) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OrderRequestJSON
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
			return
		}

		res := s.gateway.PlaceOrder(r.Context(), req.ToDomain(side))
		if res.OK {
			writeJSON(w, OrderResponseJSON{
				Status:      "success",
				OrderID:     res.OrderID,
				OrderStatus: res.BrokerStatus,
			})
			return
		}

		status := http.StatusBadRequest
		if res.ErrorKind == domain.ErrAuth {
			status = http.StatusUnauthorized
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(OrderResponseJSON{
			Status:      "error",
			OrderStatus: res.BrokerStatus,
			ErrorKind:   string(res.ErrorKind),
			Message:     res.Message,
			Detail:      res.RawDetail,
		})
	}
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.gateway.Positions(r.Context())
	if err != nil {
		status := http.StatusBadRequest
		var gerr *gateway.Error
		if errors.As(err, &gerr) && gerr.Kind == domain.ErrAuth {
			status = http.StatusUnauthorized
		}
		writeError(w, status, err.Error())
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}
	writeJSON(w, PositionsJSON{Count: len(positions), Positions: positions})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	attempts, err := s.gateway.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error("listing order attempts", "error", err)
		writeError(w, http.StatusInternalServerError, "could not read order history")
		return
	}

	out := make([]AttemptJSON, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, AttemptJSON{
			Time:        a.Time.UTC().Format(time.RFC3339),
			Status:      a.Status,
			Side:        a.Side,
			Symbol:      a.Symbol,
			Quantity:    a.Quantity,
			Exchange:    a.Exchange,
			Product:     a.Product,
			OrderType:   a.Kind,
			Price:       a.Price,
			Trigger:     a.Trigger,
			OrderID:     a.OrderID,
			OrderStatus: a.OrderStatus,
			ErrorKind:   a.ErrorKind,
			Message:     a.Message,
		})
	}
	writeJSON(w, out)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
