package bitso

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Ticker is the public ticker of one book.
type Ticker struct {
	Book      string          `json:"book"`
	Last      decimal.Decimal `json:"last"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Volume    decimal.Decimal `json:"volume"`
	VWAP      decimal.Decimal `json:"vwap"`
	CreatedAt string          `json:"created_at"`
}

// Book describes a tradable book and its order limits.
type Book struct {
	Book          string          `json:"book"`
	MinimumAmount decimal.Decimal `json:"minimum_amount"`
	MaximumAmount decimal.Decimal `json:"maximum_amount"`
	MinimumPrice  decimal.Decimal `json:"minimum_price"`
	MaximumPrice  decimal.Decimal `json:"maximum_price"`
	MinimumValue  decimal.Decimal `json:"minimum_value"`
	MaximumValue  decimal.Decimal `json:"maximum_value"`
}

// AccountStatus is the subset of /account_status the bot checks.
type AccountStatus struct {
	ClientID string `json:"client_id"`
	Status   string `json:"status"`
}

// Active reports whether the account may trade.
func (a AccountStatus) Active() bool { return strings.EqualFold(a.Status, "active") }

// Balance is the holding of one currency.
type Balance struct {
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available"`
	Locked    decimal.Decimal `json:"locked"`
	Total     decimal.Decimal `json:"total"`
}

// Side is the order direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderRequest places an order. Exactly one of Major (base units) and
// Minor (quote currency) must be positive. Price is used for limit orders.
type OrderRequest struct {
	Book  string
	Side  Side
	Type  string // "market" or "limit"
	Major decimal.Decimal
	Minor decimal.Decimal
	Price decimal.Decimal
}

// OpenOrder is an order resting on the book.
type OpenOrder struct {
	OID            string          `json:"oid"`
	Book           string          `json:"book"`
	Side           string          `json:"side"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	UnfilledAmount decimal.Decimal `json:"unfilled_amount"`
	Price          decimal.Decimal `json:"price"`
	CreatedAt      string          `json:"created_at"`
}

// Ticker returns the ticker of book.
func (c *Client) Ticker(ctx context.Context, book string) (Ticker, error) {
	var t Ticker
	endpoint := route("ticker") + "?book=" + url.QueryEscape(book)
	err := c.do(ctx, http.MethodGet, endpoint, nil, false, &t)
	return t, err
}

// AvailableBooks lists every book the exchange trades.
func (c *Client) AvailableBooks(ctx context.Context) ([]Book, error) {
	var books []Book
	err := c.do(ctx, http.MethodGet, route("available_books"), nil, false, &books)
	return books, err
}

// AccountStatus returns the verification status of the account.
func (c *Client) AccountStatus(ctx context.Context) (AccountStatus, error) {
	var s AccountStatus
	err := c.do(ctx, http.MethodGet, route("account_status"), nil, true, &s)
	return s, err
}

// Balances returns holdings keyed by lowercase currency code.
func (c *Client) Balances(ctx context.Context) (map[string]Balance, error) {
	var payload struct {
		Balances []Balance `json:"balances"`
	}
	if err := c.do(ctx, http.MethodGet, route("balance"), nil, true, &payload); err != nil {
		return nil, err
	}
	out := make(map[string]Balance, len(payload.Balances))
	for _, b := range payload.Balances {
		b.Currency = strings.ToLower(b.Currency)
		out[b.Currency] = b
	}
	return out, nil
}

// PlaceOrder submits an order and returns its order ID.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	if req.Type == "" {
		req.Type = "market"
	}
	body := map[string]string{
		"book": req.Book,
		"side": string(req.Side),
		"type": req.Type,
	}
	switch {
	case req.Major.IsPositive() && req.Minor.IsPositive():
		return "", errors.New("bitso: set either major or minor, not both")
	case req.Major.IsPositive():
		body["major"] = req.Major.String()
	case req.Minor.IsPositive():
		body["minor"] = req.Minor.String()
	default:
		return "", errors.New("bitso: either major or minor amount must be positive")
	}
	if req.Type == "limit" {
		if !req.Price.IsPositive() {
			return "", errors.New("bitso: limit order needs a price")
		}
		body["price"] = req.Price.String()
	}

	var resp struct {
		OID string `json:"oid"`
	}
	if err := c.do(ctx, http.MethodPost, route("orders"), body, true, &resp); err != nil {
		return "", err
	}
	return resp.OID, nil
}

// OpenOrders lists open orders across all books.
func (c *Client) OpenOrders(ctx context.Context) ([]OpenOrder, error) {
	var orders []OpenOrder
	err := c.do(ctx, http.MethodGet, route("open_orders"), nil, true, &orders)
	return orders, err
}

// CancelOrder cancels one open order.
func (c *Client) CancelOrder(ctx context.Context, oid string) error {
	if oid == "" {
		return errors.New("bitso: empty order id")
	}
	return c.do(ctx, http.MethodDelete, route("orders")+"/"+url.PathEscape(oid), nil, true, nil)
}

// ParseTime parses the timestamps Bitso returns, e.g.
// "2024-03-01T12:00:00.000+00:00" or "2024-03-01T12:00:00+0000".
func ParseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("bitso: unrecognized time %q", s)
}
