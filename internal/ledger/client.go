package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chainquiz-service/internal/domain"
)

// HTTPClient talks to the ledger collaborator that executes reward payouts
// and badge issuance. The service treats every call as fallible; retries and
// idempotency live with the caller.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// DistributeRewards submits one payout covering every winner and returns the
// ledger's transaction digest.
func (c *HTTPClient) DistributeRewards(ctx context.Context, req domain.DistributionRequest) (string, error) {
	var resp struct {
		Digest string `json:"digest"`
	}
	if err := c.post(ctx, "/v1/distributions", req, &resp); err != nil {
		return "", fmt.Errorf("distribute rewards: %w", err)
	}
	return resp.Digest, nil
}

// MintBadge issues one achievement badge and returns its ledger ID.
func (c *HTTPClient) MintBadge(ctx context.Context, req domain.BadgeRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/v1/badges", req, &resp); err != nil {
		return "", fmt.Errorf("mint badge: %w", err)
	}
	return resp.ID, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ledger returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
