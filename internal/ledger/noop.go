package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"chainquiz-service/internal/domain"
)

// NoopClient stands in when no ledger service is configured: it accepts every
// request and hands back generated IDs, remembering what it was asked to do.
// Useful for demos and tests.
type NoopClient struct {
	mu            sync.Mutex
	Badges        []domain.BadgeRequest
	Distributions []domain.DistributionRequest
}

func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

func (c *NoopClient) DistributeRewards(_ context.Context, req domain.DistributionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Distributions = append(c.Distributions, req)
	return uuid.NewString(), nil
}

func (c *NoopClient) MintBadge(_ context.Context, req domain.BadgeRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Badges = append(c.Badges, req)
	return uuid.NewString(), nil
}
