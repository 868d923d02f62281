package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/josh-kwaku/starbridge/internal/domain"
	"github.com/josh-kwaku/starbridge/internal/logging"
)

// GatewayClient talks to the payment gateway's refund API.
type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type refundPayload struct {
	BuyerID   int64  `json:"buyer_id"`
	ChargeRef string `json:"charge_ref"`
}

// RefundCharge asks the gateway to return a captured charge to the buyer.
// Transport failures and 5xx answers wrap domain.ErrNetwork.
func (c *GatewayClient) RefundCharge(ctx context.Context, buyerID int64, chargeRef string) error {
	log := logging.FromContext(ctx)

	body, err := json.Marshal(refundPayload{BuyerID: buyerID, ChargeRef: chargeRef})
	if err != nil {
		return fmt.Errorf("RefundCharge: marshal: %w", err)
	}

	url := c.baseURL + "/refund"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("RefundCharge: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	log.Info("gateway refund sent", "buyer_id", buyerID, "charge_ref", chargeRef)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("RefundCharge: send: %w", errors.Join(domain.ErrNetwork, err))
	}
	defer resp.Body.Close()

	log.Info("gateway refund response received",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= 500 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("RefundCharge: %w: status %d: %s", domain.ErrNetwork, resp.StatusCode, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("RefundCharge: %w: status %d: %s", domain.ErrRefundNotAllowed, resp.StatusCode, string(respBody))
	}
	return nil
}
