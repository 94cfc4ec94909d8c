// Package notify posts short trading notices to a Discord or Slack webhook.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"papertrader/src/events"
)

type Sender struct {
	webhookURL string
	botName    string
	http       *resty.Client
}

func NewSender(webhookURL, botName string) *Sender {
	if botName == "" {
		botName = "papertrader"
	}
	return &Sender{
		webhookURL: webhookURL,
		botName:    botName,
		http: resty.New().
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(time.Second).
			SetRetryMaxWaitTime(5 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || (r != nil && r.StatusCode() >= 500)
			}),
	}
}

// NewSenderFromConfig builds a sender from NOTIFY_* settings.
func NewSenderFromConfig() *Sender {
	config := GetConfig()
	return NewSender(config.WebhookURL, config.BotName)
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}

// Send posts msg to the webhook. Without a webhook it only logs.
func (s *Sender) Send(ctx context.Context, msg string) error {
	formatted := fmt.Sprintf("[%s] %s", s.botName, msg)
	logger.WithField("component", "notify").Info(formatted)

	if !s.Enabled() {
		return nil
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(s.formatPayload(formatted)).
		Post(s.webhookURL)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("notify: HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func (s *Sender) formatPayload(msg string) map[string]string {
	if strings.Contains(s.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": s.botName,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("`%s`", msg),
		"username": s.botName,
	}
}

// Subscribe wires the sender to the bus.
func (s *Sender) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.TopicExitSubmitted, "notifier", s.onExit)
	bus.Subscribe(events.TopicPositionsReconciled, "notifier", s.onReconciled)
}

func (s *Sender) onExit(ctx context.Context, evt events.Event) error {
	e, ok := evt.(events.ExitSubmitted)
	if !ok {
		return nil
	}

	if e.Rejected() {
		return s.Send(ctx, fmt.Sprintf("auto-exit %s for %s REJECTED at %s%% P/L: %s",
			e.Symbol, e.UserID, e.PLPct.StringFixed(2), e.RejectReason))
	}
	return s.Send(ctx, fmt.Sprintf("auto-exit %s: sell %s for %s at %s%% P/L (%s), order %s",
		e.Symbol, e.Quantity.String(), e.UserID, e.PLPct.StringFixed(2), e.Reason, e.BrokerOrderID))
}

func (s *Sender) onReconciled(_ context.Context, evt events.Event) error {
	e, ok := evt.(events.PositionsReconciled)
	if !ok {
		return nil
	}
	logger.WithFields(map[string]interface{}{
		"component": "notify",
		"user_id":   e.UserID,
		"positions": len(e.Positions),
	}).Debug("positions reconciled")
	return nil
}
