package invoiceissuer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"lotservice/internal/lots"
)

// InvoiceRequest is handed to the invoice service when a lot closes with a
// winner. Owned by the closing workflow until issued.
type InvoiceRequest struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	PaidStatus  bool   `json:"paidStatus"`
	Address     string `json:"address"`
	Email       string `json:"email"`
	Price       int64  `json:"price"`
}

// Issuer requests invoice creation downstream.
type Issuer interface {
	Create(ctx context.Context, inv InvoiceRequest) error
}

type client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) Issuer {
	return &client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *client) Create(ctx context.Context, inv InvoiceRequest) error {
	payload, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/invoice/create", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", lots.ErrDownstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: invoice service returned %d",
			lots.ErrDownstreamUnavailable, resp.StatusCode)
	}
	return nil
}
