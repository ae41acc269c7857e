package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"
)

// Expo rejects batches above this size.
const maxBatch = 100

// ExpoClient sends notifications through the Expo push API.
type ExpoClient struct {
	client *expo.PushClient
}

// NewExpoClient builds a client for the push/send endpoint at sendURL, e.g.
// https://exp.host/--/api/v2/push/send.
func NewExpoClient(sendURL, accessToken string, timeout time.Duration) *ExpoClient {
	host, apiURL := splitSendURL(sendURL)
	return &ExpoClient{
		client: expo.NewPushClient(&expo.ClientConfig{
			Host:        host,
			APIURL:      apiURL,
			AccessToken: accessToken,
			HTTPClient:  &http.Client{Timeout: timeout},
		}),
	}
}

// splitSendURL turns a full push/send URL into the host and API prefix the
// SDK joins back together. An empty URL keeps the SDK defaults.
func splitSendURL(raw string) (host, apiURL string) {
	if raw == "" {
		return expo.DefaultHost, expo.DefaultBaseAPIURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return expo.DefaultHost, expo.DefaultBaseAPIURL
	}
	return u.Scheme + "://" + u.Host, strings.TrimSuffix(strings.TrimRight(u.Path, "/"), "/push/send")
}

// IsExpoToken reports whether token has the ExponentPushToken[...] shape.
func IsExpoToken(token string) bool {
	for _, prefix := range []string{"ExponentPushToken[", "ExpoPushToken["} {
		if strings.HasPrefix(token, prefix) && strings.HasSuffix(token, "]") && len(token) > len(prefix)+1 {
			return true
		}
	}
	return false
}

// Send delivers msgs and returns one result per message, in order. Malformed
// tokens are reported invalid without a network call. The error is non-nil only
// when no batch could be delivered at all.
func (c *ExpoClient) Send(ctx context.Context, msgs []models.PushNotification) ([]models.PushResult, error) {
	results := make([]models.PushResult, len(msgs))
	var pending []int
	for i, m := range msgs {
		results[i].Token = m.To
		if !IsExpoToken(m.To) {
			results[i].InvalidToken = true
			results[i].Error = "malformed push token"
			continue
		}
		pending = append(pending, i)
	}

	var lastErr error
	delivered := 0
	for start := 0; start < len(pending); start += maxBatch {
		end := start + maxBatch
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		if err := ctx.Err(); err != nil {
			lastErr = err
			for _, idx := range batch {
				results[idx].Error = err.Error()
			}
			continue
		}

		payload := make([]expo.PushMessage, 0, len(batch))
		for _, idx := range batch {
			m := msgs[idx]
			payload = append(payload, expo.PushMessage{
				To:       []expo.ExponentPushToken{expo.ExponentPushToken(m.To)},
				Title:    m.Title,
				Body:     m.Body,
				Data:     m.Data,
				Sound:    m.Sound,
				Priority: expo.HighPriority,
			})
		}

		tickets, err := c.client.PublishMultiple(payload)
		if err != nil {
			err = fmt.Errorf("push gateway: %w", err)
			slog.Error("Expo push batch failed", "size", len(batch), "error", err)
			lastErr = err
			for _, idx := range batch {
				results[idx].Error = err.Error()
			}
			continue
		}
		delivered++

		for j, idx := range batch {
			if j >= len(tickets) {
				results[idx].Error = "missing ticket"
				continue
			}
			applyTicket(&results[idx], &tickets[j])
		}
	}

	if delivered == 0 && lastErr != nil {
		return results, lastErr
	}
	return results, nil
}

func applyTicket(result *models.PushResult, ticket *expo.PushResponse) {
	err := ticket.ValidateResponse()
	if err == nil {
		result.OK = true
		return
	}

	result.Error = ticket.Message
	if code := ticket.Details["error"]; code != "" {
		result.Error = code
	}
	if result.Error == "" {
		result.Error = err.Error()
	}

	var notRegistered *expo.DeviceNotRegisteredError
	result.InvalidToken = errors.As(err, &notRegistered)
}
