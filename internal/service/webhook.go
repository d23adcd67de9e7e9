package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	defaultHTTPStatusThreshold = 300
	webhookDeliveryTimeout     = 10 * time.Second
)

// WebhookService delivers security events (currently refresh token replay
// attempts) to an external receiver. Delivery is fire-and-forget: a dead
// receiver must never block or fail the refresh pipeline.
type WebhookService struct {
	client     *http.Client
	log        *zap.SugaredLogger
	webhookURL string
}

func NewWebhookService(log *zap.SugaredLogger, webhookURL string) *WebhookService {
	return &WebhookService{
		client:     &http.Client{},
		log:        log,
		webhookURL: webhookURL,
	}
}

func (s *WebhookService) NotifyReplayAttempt(ctx context.Context, data map[string]interface{}) {
	// The refresh pipeline returns its rejection right after firing the
	// alert, which cancels the request context. Detach from it so the
	// delivery outlives the handler, bounded by its own timeout.
	detached := context.WithoutCancel(ctx)

	go func() {
		if s.webhookURL == "" {
			return
		}

		payload, err := json.Marshal(data)
		if err != nil {
			s.log.Errorw("failed to marshal webhook payload", "error", err)
			return
		}

		sendCtx, cancel := context.WithTimeout(detached, webhookDeliveryTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(sendCtx, http.MethodPost, s.webhookURL, bytes.NewBuffer(payload))
		if err != nil {
			s.log.Errorw("failed to create webhook request", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			s.log.Errorw("failed to send webhook", "error", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= defaultHTTPStatusThreshold {
			s.log.Warnw("webhook returned non-2xx status", "status", resp.StatusCode)
		}
	}()
}
