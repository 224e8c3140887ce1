package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// SendReceipt — подтверждение доставки от мессенджера
type SendReceipt struct {
	OK      bool   `json:"ok"`
	TS      string `json:"ts"` // Таймстемп сообщения на стороне мессенджера
	Channel string `json:"channel"`
}

// WebhookMessenger доставляет эскалации во внешний messaging-коллаборатор
// по HTTP (JSON POST + Bearer). Транспорт идемпотентен на риске вызывающего:
// дедупликации отправок здесь нет.
type WebhookMessenger struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *zap.Logger
}

func NewWebhookMessenger(endpoint, token string, timeout time.Duration, logger *zap.Logger) *WebhookMessenger {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookMessenger{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.Named("webhook"),
	}
}

type sendPayload struct {
	Channel  string `json:"channel"`
	Message  string `json:"message"`
	ThreadTS string `json:"threadTs,omitempty"`
}

// Send отправляет одно сообщение. 429 конвертируется в ThrottleError,
// чтобы ретрай-слой уважал Retry-After.
func (m *WebhookMessenger) Send(ctx context.Context, channel, text, threadRef string) (*SendReceipt, error) {
	body, err := json.Marshal(sendPayload{Channel: channel, Message: text, ThreadTS: threadRef})
	if err != nil {
		return nil, fmt.Errorf("webhook: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook: send failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &ThrottleError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Cause:      fmt.Errorf("messenger returned 429"),
		}
	case resp.StatusCode >= 400:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("webhook: messenger returned %d: %s", resp.StatusCode, raw)
	}

	receipt := &SendReceipt{Channel: channel}
	if err := json.NewDecoder(resp.Body).Decode(receipt); err != nil {
		// Не все мессенджеры возвращают тело — 2xx без тела считаем успехом
		m.logger.Debug("receipt body not parsed", zap.Error(err))
	}
	receipt.OK = true
	if receipt.Channel == "" {
		receipt.Channel = channel
	}
	return receipt, nil
}

func parseRetryAfter(header string) time.Duration {
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 2 * time.Second
}
