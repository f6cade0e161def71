// Package alert emails the operator when the safety verdict flips. A
// cooldown keeps a flapping sensor from flooding the inbox.
package alert

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	mailgun "github.com/mailgun/mailgun-go/v3"

	"github.com/joshwalawender/AAGonRPi/pkg/weather"
)

// Config holds the Mailgun account and addressing details. Alerts are
// optional; a zero config disables them.
type Config struct {
	Enabled    bool
	Domain     string
	APIKey     string
	Sender     string
	Recipients []string
	Cooldown   time.Duration
}

// sender abstracts the Mailgun client for tests.
type sender interface {
	Send(ctx context.Context, subject, body string) error
}

type mailgunSender struct {
	cfg Config
}

func (m *mailgunSender) Send(ctx context.Context, subject, body string) error {
	mg := mailgun.NewMailgun(m.cfg.Domain, m.cfg.APIKey)
	message := mg.NewMessage(m.cfg.Sender, subject, body, m.cfg.Recipients...)

	resp, id, err := mg.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	if id == "" {
		return fmt.Errorf("failed to send alert, invalid ID: %s", resp)
	}
	return nil
}

// Notifier tracks verdict transitions and mails on change.
type Notifier struct {
	cfg    Config
	sender sender

	mu       sync.Mutex
	lastSafe *bool
	lastSent time.Time
}

// New creates a notifier backed by Mailgun.
func New(cfg Config) *Notifier {
	return &Notifier{cfg: cfg, sender: &mailgunSender{cfg: cfg}}
}

// Observe records the latest verdict and sends an alert if the safe flag
// changed since the previous cycle and the cooldown has elapsed.
func (n *Notifier) Observe(v weather.Verdict, now time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()

	changed := n.lastSafe == nil || *n.lastSafe != v.Safe
	safe := v.Safe
	n.lastSafe = &safe
	if !changed {
		return
	}
	if !n.lastSent.IsZero() && now.Sub(n.lastSent) < n.cfg.Cooldown {
		return
	}
	n.lastSent = now

	subject := "Weather now UNSAFE"
	if v.Safe {
		subject = "Weather now safe"
	}
	body := fmt.Sprintf("Sky: %s\nWind: %s\nGust: %s\nRain: %s\n",
		v.Sky, v.Wind, v.Gust, v.Rain)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := n.sender.Send(ctx, subject, body); err != nil {
		log.Printf("[Error] %v", err)
	}
}
