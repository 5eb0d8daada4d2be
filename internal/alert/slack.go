// Package alert posts operational alerts (failed webhooks, failed releases)
// to a Slack channel.
package alert

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/logger"
)

const maxRetries = 3

// Alert is one operational event.
type Alert struct {
	Title  string
	Text   string
	Fields map[string]string
}

// Alerter delivers alerts.
type Alerter interface {
	Alert(ctx context.Context, a Alert) error
}

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Slack posts alerts as message attachments.
type Slack struct {
	client    slackClient
	channelID string
}

// NewSlack returns a Slack alerter, or a log-only alerter when token or
// channel is empty.
func NewSlack(botToken, channelID string) Alerter {
	if botToken == "" || channelID == "" {
		return LogOnly{}
	}
	return &Slack{client: slackapi.New(botToken), channelID: channelID}
}

func (s *Slack) Alert(ctx context.Context, a Alert) error {
	options := []slackapi.MsgOption{
		slackapi.MsgOptionText(a.Title, false),
		slackapi.MsgOptionAttachments(toAttachment(a)),
	}
	err := retryOnRateLimit(ctx, func() error {
		_, _, postErr := s.client.PostMessage(s.channelID, options...)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post alert: %w", err)
	}
	return nil
}

func toAttachment(a Alert) slackapi.Attachment {
	att := slackapi.Attachment{
		Title:    a.Title,
		Text:     a.Text,
		Color:    "danger",
		Fallback: a.Title,
	}
	keys := make([]string, 0, len(a.Fields))
	for k := range a.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		att.Fields = append(att.Fields, slackapi.AttachmentField{Title: k, Value: a.Fields[k], Short: true})
	}
	return att
}

func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) || attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(1<<attempt) * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// LogOnly writes alerts to the process log.
type LogOnly struct{}

func (LogOnly) Alert(_ context.Context, a Alert) error {
	entry := logger.L().WithField("alert", a.Title)
	for k, v := range a.Fields {
		entry = entry.WithField(k, v)
	}
	entry.Warn(a.Text)
	return nil
}
