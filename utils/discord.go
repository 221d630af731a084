package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	notifyMaxAttempts = 3
	embedColor        = 5814783
)

// DiscordNotifier delivers poll events as webhook embeds. Delivery is
// best-effort: up to three attempts, honoring the retry_after hint on
// rate limits, and every failure is logged rather than propagated.
type DiscordNotifier struct {
	Client *http.Client
}

func NewDiscordNotifier() *DiscordNotifier {
	return &DiscordNotifier{
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	URL         string `json:"url,omitempty"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

func (dn *DiscordNotifier) Notify(webhookURL, title, body, link string) error {
	if webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(discordPayload{
		Embeds: []discordEmbed{{
			Title:       title,
			Description: body,
			Color:       embedColor,
			URL:         link,
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	log := logrus.WithFields(logrus.Fields{
		"component": "notifier",
		"title":     title,
	})

	var lastErr error
	for attempt := 1; attempt <= notifyMaxAttempts; attempt++ {
		resp, err := dn.Client.Post(webhookURL, "application/json", bytes.NewReader(payload))
		if err != nil {
			lastErr = err
			log.WithField("attempt", attempt).WithError(err).Warn("webhook request failed")
			continue
		}

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent {
			resp.Body.Close()
			return nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := retryAfter(resp)
			resp.Body.Close()
			log.WithFields(logrus.Fields{
				"attempt":     attempt,
				"retry_after": wait,
			}).Warn("webhook rate limited")
			lastErr = fmt.Errorf("rate limited")
			time.Sleep(wait)
			continue
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		lastErr = fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, respBody)
		log.WithField("status", resp.StatusCode).Warn("webhook rejected notification")
		break
	}

	return lastErr
}

// retryAfter reads the rate-limit backoff from the response body,
// defaulting to one second.
func retryAfter(resp *http.Response) time.Duration {
	var body struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.RetryAfter <= 0 {
		return time.Second
	}
	return time.Duration(body.RetryAfter * float64(time.Second))
}
