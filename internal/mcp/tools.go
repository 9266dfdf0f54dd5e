package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"kitebridge/internal/domain"
)

// trader is the slice of the gateway the trading tools consume.
type trader interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) domain.OrderResult
	PositionsSummary(ctx context.Context) string
}

// orderArgs is the argument shape shared by the buy and sell tools.
type orderArgs struct {
	Stock        string  `json:"stock"`
	Qty          int     `json:"qty"`
	Exchange     string  `json:"exchange"`
	Product      string  `json:"product"`
	OrderType    string  `json:"order_type"`
	Price        float64 `json:"price"`
	TriggerPrice float64 `json:"trigger_price"`
}

func orderSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"stock":         map[string]any{"type": "string", "description": "Trading symbol, e.g. RELIANCE"},
			"qty":           map[string]any{"type": "integer", "description": "Number of units"},
			"exchange":      map[string]any{"type": "string", "description": "NSE, BSE, NFO, MCX (default NSE)"},
			"product":       map[string]any{"type": "string", "description": "CNC, MIS, NRML (default CNC)"},
			"order_type":    map[string]any{"type": "string", "description": "MARKET, LIMIT, SL, SL-M (default MARKET)"},
			"price":         map[string]any{"type": "number", "description": "Limit price, required for LIMIT and SL"},
			"trigger_price": map[string]any{"type": "number", "description": "Trigger price, required for SL and SL-M"},
		},
		"required": []string{"stock", "qty"},
	}
}

// RegisterTradingTools wires the buy, sell, and portfolio tools onto the
// server.
func RegisterTradingTools(s *Server, gw trader) {
	s.Register(Tool{
		Name: "buy-a-stock",
		Description: "Buy stocks, futures, options, or any tradeable instrument. " +
			"Supports all exchanges (NSE, NFO, MCX) and order types (MARKET, LIMIT, SL, SL-M). " +
			"Requires stock symbol and quantity. Optional: exchange, product, order_type, price, trigger_price.",
		InputSchema: orderSchema(),
		Handler:     orderHandler(gw, domain.SideBuy),
	})
	s.Register(Tool{
		Name: "sell-a-stock",
		Description: "Sell stocks, futures, options, or any tradeable instrument. " +
			"Supports all exchanges (NSE, NFO, MCX) and order types (MARKET, LIMIT, SL, SL-M). " +
			"Requires stock symbol and quantity. Optional: exchange, product, order_type, price, trigger_price.",
		InputSchema: orderSchema(),
		Handler:     orderHandler(gw, domain.SideSell),
	})
	s.Register(Tool{
		Name:        "show-portfolio",
		Description: "Show current portfolio positions",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		Handler: func(ctx context.Context, _ json.RawMessage) ToolResult {
			return TextResult("Current Portfolio:\n"+gw.PositionsSummary(ctx), false)
		},
	})
}

func orderHandler(gw trader, side domain.Side) func(context.Context, json.RawMessage) ToolResult {
	verb := "buy"
	if side == domain.SideSell {
		verb = "sell"
	}

	return func(ctx context.Context, raw json.RawMessage) ToolResult {
		var args orderArgs
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return TextResult(fmt.Sprintf("Invalid input: %v", err), true)
			}
		}

		res := gw.PlaceOrder(ctx, domain.OrderRequest{
			Symbol:       args.Stock,
			Quantity:     args.Qty,
			Side:         side,
			Exchange:     domain.Exchange(args.Exchange),
			Product:      domain.Product(args.Product),
			OrderKind:    domain.OrderKind(args.OrderType),
			Price:        args.Price,
			TriggerPrice: args.TriggerPrice,
		})
		if !res.OK {
			return TextResult(fmt.Sprintf("Failed to %s %s: %s (%s)", verb, args.Stock, res.Message, res.ErrorKind), true)
		}

		details := fmt.Sprintf("%d units of %s", args.Qty, args.Stock)
		if args.Price != 0 {
			details += fmt.Sprintf(" at %g", args.Price)
		}
		if args.OrderType != "" && args.OrderType != "MARKET" {
			details += fmt.Sprintf(" (%s)", args.OrderType)
		}
		text := fmt.Sprintf("%s order placed: %s\nOrder ID: %s\nStatus: %s",
			side, details, res.OrderID, res.BrokerStatus)
		return TextResult(text, false)
	}
}
