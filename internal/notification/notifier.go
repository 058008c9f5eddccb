// Package notification delivers trading alerts to external channels
// (Telegram, generic webhooks) and to the log.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"pitrader/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel        `json:"level"`
	Pair    string            `json:"pair,omitempty"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Text renders the message followed by the fields in key order.
func (a Alert) Text() string {
	if len(a.Fields) == 0 {
		return a.Message
	}
	keys := make([]string, 0, len(a.Fields))
	for k := range a.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(a.Message)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %s", k, a.Fields[k])
	}
	return b.String()
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: slog.Default().With("component", "notify")}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	level := slog.LevelInfo
	switch alert.Level {
	case AlertWarning:
		level = slog.LevelWarn
	case AlertCritical:
		level = slog.LevelError
	}
	n.log.Log(ctx, level, alert.Title, "pair", alert.Pair, "message", alert.Message, "fields", alert.Fields)
	return nil
}

// Multi fans an alert out to every backend. All backends are tried; the
// returned error joins the failures.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FillAlert describes an executed (or simulated) order.
func FillAlert(f model.Fill) Alert {
	mode := "LIVE"
	if f.DryRun {
		mode = "DRY RUN"
	}
	return Alert{
		Level:   AlertInfo,
		Pair:    f.Pair,
		Title:   fmt.Sprintf("%s %s %s", mode, f.Action, strings.ToUpper(f.Pair)),
		Message: f.Reason,
		Fields: map[string]string{
			"size":     fmt.Sprintf("%.8f", f.Size),
			"price":    fmt.Sprintf("%.2f", f.Price),
			"notional": fmt.Sprintf("%.2f", f.Notional),
			"fee":      fmt.Sprintf("%.2f", f.Fee),
			"order_id": f.OrderID,
		},
	}
}

// ErrorAlert reports a failure in one pair's cycle or order.
func ErrorAlert(pair, title string, err error) Alert {
	return Alert{
		Level:   AlertWarning,
		Pair:    pair,
		Title:   title,
		Message: err.Error(),
	}
}
