package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"freelancehub/config"
	"freelancehub/internal/model"
	"freelancehub/pkg/circuitbreaker"
	"freelancehub/pkg/metrics"
)

// PaymentGateway talks to the external payment provider. Calls go through a
// circuit breaker so a degraded provider does not tie up request handlers.
type PaymentGateway struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

type chargeRequest struct {
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Method         string `json:"method"`
	Reference      string `json:"reference"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type chargeResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// ChargeResult is the provider's answer to a charge request.
type ChargeResult struct {
	TransactionID string
	Accepted      bool
}

func NewPaymentGateway(cfg config.GatewayConfig, logger *zap.Logger) *PaymentGateway {
	return &PaymentGateway{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger:  logger,
	}
}

// Charge asks the provider to collect amount for the given invoice reference.
// The returned transaction id is the provider's handle for the pending charge;
// settlement arrives later via webhook.
func (g *PaymentGateway) Charge(ctx context.Context, amount model.Money, method, reference, idempotencyKey string) (*ChargeResult, error) {
	body, err := json.Marshal(chargeRequest{
		Amount:         amount.String(),
		Currency:       "USD",
		Method:         method,
		Reference:      reference,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal charge request: %w", err)
	}

	var result *ChargeResult
	err = g.breaker.Execute(func() error {
		start := time.Now()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/charges", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.client.Do(req)
		if err != nil {
			metrics.RecordGatewayCallLatency("charge", "error", time.Since(start))
			return fmt.Errorf("gateway charge: %w", err)
		}
		defer resp.Body.Close()

		metrics.RecordGatewayCallLatency("charge", fmt.Sprintf("%d", resp.StatusCode), time.Since(start))

		if resp.StatusCode >= 500 {
			return fmt.Errorf("gateway charge: status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return fmt.Errorf("gateway charge rejected: status %d: %s", resp.StatusCode, raw)
		}

		var cr chargeResponse
		if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
			return fmt.Errorf("decode charge response: %w", err)
		}
		if cr.TransactionID == "" {
			return fmt.Errorf("gateway charge: empty transaction id")
		}

		result = &ChargeResult{
			TransactionID: cr.TransactionID,
			Accepted:      cr.Status != "declined",
		}
		return nil
	})
	if err != nil {
		g.logger.Warn("payment gateway charge failed",
			zap.String("reference", reference),
			zap.Error(err))
		return nil, err
	}

	g.logger.Info("payment gateway charge accepted",
		zap.String("reference", reference),
		zap.String("transaction_id", result.TransactionID))
	return result, nil
}
