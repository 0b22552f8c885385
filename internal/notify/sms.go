package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const sendTimeout = 5 * time.Second

// SMSSender delivers pairing links over SMS. Delivery is best-effort: a
// failed send is surfaced to the initiator as a warning and never fails
// the pairing itself.
type SMSSender interface {
	Send(ctx context.Context, to, message string) error
}

// HTTPSender posts messages to a JSON SMS gateway.
type HTTPSender struct {
	client     *http.Client
	gatewayURL string
	token      string
}

func NewHTTPSender(gatewayURL, token string) *HTTPSender {
	return &HTTPSender{
		client: &http.Client{
			Timeout: sendTimeout,
		},
		gatewayURL: gatewayURL,
		token:      token,
	}
}

func (s *HTTPSender) Send(ctx context.Context, to, message string) error {
	body, err := json.Marshal(map[string]string{
		"to":      to,
		"message": message,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("to", maskRecipient(to)).
			Dur("elapsed", elapsed).
			Msg("sms gateway error")
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Str("to", maskRecipient(to)).
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("sms gateway rejected message")
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}

	log.Info().
		Str("to", maskRecipient(to)).
		Dur("elapsed", elapsed).
		Msg("sms sent")

	return nil
}

// DisabledSender stands in when no gateway is configured. Every send
// fails, which the handler reports as a warning.
type DisabledSender struct{}

func (DisabledSender) Send(ctx context.Context, to, message string) error {
	return fmt.Errorf("sms gateway not configured")
}

func maskRecipient(to string) string {
	if len(to) <= 4 {
		return "****"
	}
	return "****" + to[len(to)-4:]
}
