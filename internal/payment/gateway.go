// Package payment holds the HTTP client for the external payment
// processor.  The engine only sees the Gateway interface; this package maps
// processor responses and deadlines onto the engine's sentinel errors.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/iliyamo/train-ticket-market/internal/engine"
	"github.com/iliyamo/train-ticket-market/internal/model"
)

// HTTPGateway posts authorization and reversal requests to a processor.
// Every call carries a hard deadline; exceeding it surfaces as
// engine.ErrGatewayTimeout so the caller rolls back.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPGateway builds a gateway for the processor at baseURL.  timeout
// bounds each call end to end.
func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

type chargeRequest struct {
	PayerEmail string `json:"payer_email"`
	SumCents   int64  `json:"sum_cents"`
}

// Authorize charges the payer.  402 from the processor means the payer
// cannot cover the sum.
func (g *HTTPGateway) Authorize(ctx context.Context, payerEmail string, sum model.Money) error {
	return g.post(ctx, "/v1/charges", payerEmail, sum)
}

// Reverse refunds a previous charge.
func (g *HTTPGateway) Reverse(ctx context.Context, payerEmail string, sum model.Money) error {
	return g.post(ctx, "/v1/refunds", payerEmail, sum)
}

func (g *HTTPGateway) post(ctx context.Context, path, payerEmail string, sum model.Money) error {
	body, err := json.Marshal(chargeRequest{PayerEmail: payerEmail, SumCents: int64(sum)})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return engine.ErrGatewayTimeout
		}
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusPaymentRequired:
		return engine.ErrInsufficientFunds
	case resp.StatusCode == http.StatusGatewayTimeout:
		return engine.ErrGatewayTimeout
	default:
		return fmt.Errorf("payment processor: unexpected status %d", resp.StatusCode)
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
