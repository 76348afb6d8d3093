// Package notification fans alert decisions out to the configured
// messaging channels.
package notification

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"confluence-screener/internal/alert"
	"confluence-screener/internal/market"
	"confluence-screener/internal/signal"
)

// Kind tags what a message is about
type Kind string

const (
	KindAlert Kind = "alert"
	KindError Kind = "error"
	KindInfo  Kind = "info"
)

// Message is the channel-independent payload
type Message struct {
	Kind      Kind
	Title     string
	Body      string
	Symbol    string
	Score     float64
	Priority  signal.Priority
	Timestamp time.Time
}

// Notifier is one delivery channel
type Notifier interface {
	Send(msg *Message) error
	Name() string
	Enabled() bool
}

// Manager fans one message out to every enabled channel. A channel
// failure is logged and does not stop delivery to the others.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates an empty manager; channels are added with Add
func NewManager() *Manager {
	return &Manager{notifiers: make([]Notifier, 0)}
}

// Add registers a delivery channel
func (m *Manager) Add(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send delivers to all enabled channels and returns the last failure
func (m *Manager) Send(msg *Message) error {
	var lastErr error
	for _, n := range m.notifiers {
		if !n.Enabled() {
			continue
		}
		if err := n.Send(msg); err != nil {
			log.Warn().Err(err).Str("channel", n.Name()).Msg("notification delivery failed")
			lastErr = err
		}
	}
	return lastErr
}

// SendAlert formats and delivers a gated trading alert
func (m *Manager) SendAlert(sig signal.TradableSignal, decision alert.Decision) error {
	marker := "🟢"
	if decision.Side == market.SideSell {
		marker = "🔴"
	}

	score := sig.Modulation.AdjustedScore
	body := fmt.Sprintf("%s %s\nScore: %.1f (confidence %.0f)\nRegime: %s",
		decision.Side, sig.Symbol, score, sig.Confluence.Confidence, sig.Regime.Regime)
	if sig.Plan.Valid {
		body += fmt.Sprintf("\nEntry: %.4f | SL: %.4f | TP1: %.4f\nQty: %.6f",
			sig.Plan.Entry, sig.Plan.StopLoss, sig.Plan.TakeProfit1, sig.Plan.Quantity)
	}
	body += fmt.Sprintf("\nReason: %s", decision.Reason)

	return m.Send(&Message{
		Kind:      KindAlert,
		Title:     fmt.Sprintf("%s Alert: %s %s", marker, decision.Side, sig.Symbol),
		Body:      body,
		Symbol:    sig.Symbol,
		Score:     score,
		Priority:  decision.Priority,
		Timestamp: sig.Created,
	})
}

// SendError delivers an operational error notice
func (m *Manager) SendError(title, body string) error {
	return m.Send(&Message{
		Kind:      KindError,
		Title:     fmt.Sprintf("⚠️ %s", title),
		Body:      body,
		Timestamp: time.Now().UTC(),
	})
}
