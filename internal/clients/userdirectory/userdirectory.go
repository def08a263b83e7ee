package userdirectory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"lotservice/internal/lots"
)

// User is the identity service's DTO for a bidder.
type User struct {
	ID          string `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	UserName    string `json:"userName"`
	Address     string `json:"address"`
	PhoneNumber string `json:"phoneNumber"`
	Type        string `json:"type"`
}

// Directory resolves bidder identities.
type Directory interface {
	Fetch(ctx context.Context, bidderID string) (*User, error)
}

type client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) Directory {
	return &client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Fetch resolves a bidder. A non-success status or an empty body both count
// as identity-unavailable.
func (c *client) Fetch(ctx context.Context, bidderID string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/user/%s", c.baseURL, bidderID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", lots.ErrIdentityUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: user service returned %d",
			lots.ErrIdentityUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", lots.ErrIdentityUnavailable, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response body", lots.ErrIdentityUnavailable)
	}
	var u User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("%w: %w", lots.ErrIdentityUnavailable, err)
	}
	return &u, nil
}
