package notificationgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"lotservice/internal/lots"
)

// Notification tells the previously-highest bidder they were outbid.
type Notification struct {
	LotID        string    `json:"lotId"`
	LotName      string    `json:"lotName"`
	TimeStamp    time.Time `json:"timeStamp"`
	ReceiverMail string    `json:"receiverMail"`
	NewLotPrice  int64     `json:"newLotPrice"`
	NewBidLink   string    `json:"newBidLink"`
}

// Gateway delivers notifications downstream.
type Gateway interface {
	Send(ctx context.Context, n Notification) error
}

type client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) Gateway {
	return &client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *client) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/notification", bytes.NewReader(payload))
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
		return fmt.Errorf("%w: notification service returned %d",
			lots.ErrDownstreamUnavailable, resp.StatusCode)
	}
	return nil
}
