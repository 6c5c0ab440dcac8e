// Package telegram delivers relay records through the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mailrelay/internal/relay"
)

// API is the part of tgbotapi.BotAPI used for delivery.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client sends plain-text messages to a chat.
type Client struct {
	api API
}

// New creates a Client for token. No request is made until the first
// delivery, so an unreachable API does not prevent startup.
func New(token string, timeout time.Duration) *Client {
	bot := &tgbotapi.BotAPI{
		Token:  token,
		Client: &http.Client{Timeout: timeout},
		Buffer: 100,
	}
	bot.SetAPIEndpoint(tgbotapi.APIEndpoint)
	return &Client{api: bot}
}

// NewWithAPI wraps an existing API implementation.
func NewWithAPI(api API) *Client {
	return &Client{api: api}
}

// Deliver sends text to channel, which is either a numeric chat id or an
// @username of a public channel. Every failure is a *relay.DeliveryError.
func (c *Client) Deliver(ctx context.Context, channel, text string) error {
	if err := ctx.Err(); err != nil {
		return &relay.DeliveryError{Channel: channel, Err: err}
	}

	msg, err := newMessage(channel, text)
	if err != nil {
		return &relay.DeliveryError{Channel: channel, Err: err}
	}

	if _, err := c.api.Send(msg); err != nil {
		deliveryErr := &relay.DeliveryError{Channel: channel, Err: err}
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			deliveryErr.RetryAfter = apiErr.RetryAfter
		}
		return deliveryErr
	}

	return nil
}

func newMessage(channel, text string) (tgbotapi.MessageConfig, error) {
	channel = strings.TrimSpace(channel)
	if strings.HasPrefix(channel, "@") {
		return tgbotapi.NewMessageToChannel(channel, text), nil
	}
	chatID, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("chat id %q is neither numeric nor an @channel", channel)
	}
	return tgbotapi.NewMessage(chatID, text), nil
}
