package hyperliquid

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"hypertrader/internal/adapters/exchanges"
	"hypertrader/internal/adapters/exchanges/ratelimit"
	"hypertrader/pkg/errors"
)

type limitWire struct {
	Tif string `json:"tif"`
}

type triggerWire struct {
	IsMarket  bool   `json:"isMarket"`
	TriggerPx string `json:"triggerPx"`
	Tpsl      string `json:"tpsl"`
}

type orderTypeWire struct {
	Limit   *limitWire   `json:"limit,omitempty"`
	Trigger *triggerWire `json:"trigger,omitempty"`
}

type orderWire struct {
	Asset      int           `json:"a"`
	IsBuy      bool          `json:"b"`
	Price      string        `json:"p"`
	Size       string        `json:"s"`
	ReduceOnly bool          `json:"r"`
	Type       orderTypeWire `json:"t"`
	Cloid      string        `json:"c,omitempty"`
}

type orderAction struct {
	Type     string      `json:"type"`
	Orders   []orderWire `json:"orders"`
	Grouping string      `json:"grouping"`
}

type exchangeRequest struct {
	Action    orderAction `json:"action"`
	Nonce     int64       `json:"nonce"`
	Signature *Signature  `json:"signature"`
}

type orderStatus struct {
	Resting *struct {
		Oid int64 `json:"oid"`
	} `json:"resting"`
	Filled *struct {
		TotalSz string `json:"totalSz"`
		AvgPx   string `json:"avgPx"`
		Oid     int64  `json:"oid"`
	} `json:"filled"`
	Error string `json:"error"`
}

// PlaceOrder signs and submits a single order. It is never retried.
func (c *Client) PlaceOrder(ctx context.Context, req *exchanges.OrderRequest) (*exchanges.Order, error) {
	if !c.CanTrade() {
		return nil, exchanges.ErrTradingDisabled
	}
	if req == nil || req.Symbol == "" || !req.Quantity.IsPositive() {
		return nil, errors.Wrap(exchanges.ErrInvalidRequest, "symbol and positive quantity are required")
	}

	coin := normalizeSymbol(req.Symbol)
	a, err := c.lookupAsset(ctx, coin)
	if err != nil {
		return nil, err
	}

	wire, err := c.buildOrderWire(req, a)
	if err != nil {
		return nil, err
	}

	action := orderAction{Type: "order", Orders: []orderWire{wire}, Grouping: "na"}
	nonce := c.now().UnixMilli()

	sig, err := c.cfg.Signer.Sign(ctx, SignRequest{
		Action:         action,
		Nonce:          nonce,
		IsMainnet:      !c.cfg.Testnet,
		AccountAddress: c.cfg.AccountAddress,
	})
	if err != nil {
		return nil, errors.Wrap(err, "sign order")
	}

	body, err := c.post(ctx, "/exchange", ratelimit.WeightAction, exchangeRequest{Action: action, Nonce: nonce, Signature: sig})
	if err != nil {
		return nil, err
	}

	status, err := parseOrderResponse(body)
	if err != nil {
		return nil, err
	}

	order := &exchanges.Order{
		ClientOrderID: req.ClientOrderID,
		Symbol:        coin,
		Type:          req.Type,
		Side:          req.Side,
		Status:        exchanges.OrderStatusOpen,
		Price:         parseDecimal(wire.Price),
		StopPrice:     req.StopPrice,
		Quantity:      parseDecimal(wire.Size),
		ReduceOnly:    req.ReduceOnly,
		CreatedAt:     c.now().UTC(),
	}

	switch {
	case status == nil:
	case status.Filled != nil:
		order.ID = strconv.FormatInt(status.Filled.Oid, 10)
		order.Status = exchanges.OrderStatusFilled
		order.Filled = parseDecimal(status.Filled.TotalSz)
		order.AvgFillPrice = parseDecimal(status.Filled.AvgPx)
	case status.Resting != nil:
		order.ID = strconv.FormatInt(status.Resting.Oid, 10)
	}

	return order, nil
}

func (c *Client) buildOrderWire(req *exchanges.OrderRequest, a asset) (orderWire, error) {
	isBuy := req.Side.IsBuy()
	wire := orderWire{
		Asset:      a.index,
		IsBuy:      isBuy,
		Size:       req.Quantity.RoundDown(a.szDecimals).String(),
		ReduceOnly: req.ReduceOnly,
		Cloid:      cloid(req.ClientOrderID),
	}
	if wire.Size == "0" {
		return orderWire{}, errors.Wrapf(exchanges.ErrInvalidRequest, "quantity %s is below the lot size", req.Quantity)
	}

	switch req.Type {
	case exchanges.OrderTypeMarket:
		if !req.Price.IsPositive() {
			return orderWire{}, errors.Wrap(exchanges.ErrInvalidRequest, "market orders need a reference price")
		}
		wire.Price = formatPrice(c.slipped(req.Price, isBuy), a.szDecimals)
		wire.Type = orderTypeWire{Limit: &limitWire{Tif: "Ioc"}}
	case exchanges.OrderTypeLimit:
		if !req.Price.IsPositive() {
			return orderWire{}, errors.Wrap(exchanges.ErrInvalidRequest, "limit orders need a price")
		}
		wire.Price = formatPrice(req.Price, a.szDecimals)
		wire.Type = orderTypeWire{Limit: &limitWire{Tif: "Gtc"}}
	case exchanges.OrderTypeStopMarket, exchanges.OrderTypeTakeProfit:
		if !req.StopPrice.IsPositive() {
			return orderWire{}, errors.Wrap(exchanges.ErrInvalidRequest, "trigger orders need a stop price")
		}
		tpsl := "sl"
		if req.Type == exchanges.OrderTypeTakeProfit {
			tpsl = "tp"
		}
		wire.Price = formatPrice(c.slipped(req.StopPrice, isBuy), a.szDecimals)
		wire.Type = orderTypeWire{Trigger: &triggerWire{
			IsMarket:  true,
			TriggerPx: formatPrice(req.StopPrice, a.szDecimals),
			Tpsl:      tpsl,
		}}
	default:
		return orderWire{}, errors.Wrapf(exchanges.ErrNotSupported, "order type %q", req.Type)
	}

	return wire, nil
}

func (c *Client) slipped(price decimal.Decimal, isBuy bool) decimal.Decimal {
	if isBuy {
		return price.Mul(decimal.NewFromInt(1).Add(c.cfg.Slippage))
	}
	return price.Mul(decimal.NewFromInt(1).Sub(c.cfg.Slippage))
}

func parseOrderResponse(body []byte) (*orderStatus, error) {
	var resp struct {
		Status   string          `json:"status"`
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "decode /exchange response")
	}
	if resp.Status != "ok" {
		return nil, errors.Wrapf(errors.ErrOrderRejected, "%s", strings.Trim(string(resp.Response), `"`))
	}

	var payload struct {
		Data struct {
			Statuses []json.RawMessage `json:"statuses"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Response, &payload); err != nil {
		return nil, errors.Wrap(err, "decode order statuses")
	}
	if len(payload.Data.Statuses) == 0 {
		return nil, nil
	}

	raw := payload.Data.Statuses[0]
	// Trigger orders may report a bare string such as "waitingForTrigger".
	if len(raw) > 0 && raw[0] == '"' {
		return nil, nil
	}

	var st orderStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, errors.Wrap(err, "decode order status")
	}
	if st.Error != "" {
		return nil, errors.Wrap(errors.ErrOrderRejected, st.Error)
	}
	return &st, nil
}

// formatPrice rounds to five significant figures and at most 6-szDecimals decimals.
func formatPrice(p decimal.Decimal, szDecimals int32) string {
	maxDecimals := 6 - szDecimals
	if maxDecimals < 0 {
		maxDecimals = 0
	}

	intDigits := int32(len(p.Abs().Truncate(0).String()))
	if p.Abs().LessThan(decimal.NewFromInt(1)) {
		intDigits = 0
	}

	decimals := 5 - intDigits
	if decimals < 0 {
		decimals = 0
	}
	if intDigits == 0 || decimals > maxDecimals {
		decimals = maxDecimals
	}
	return p.Round(decimals).String()
}

// cloid converts a uuid client id into Hyperliquid's 128-bit hex form
func cloid(id string) string {
	hex := strings.ReplaceAll(id, "-", "")
	if len(hex) != 32 {
		return ""
	}
	return "0x" + strings.ToLower(hex)
}
