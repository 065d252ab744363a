package app

import (
	"context"
	"time"

	"chainquiz-service/internal/domain"
	"chainquiz-service/pkg/logger"
)

// LedgerClient is the external collaborator that settles rewards on chain.
// Calls are at-least-once; idempotency is guarded by the room's settle flag.
type LedgerClient interface {
	DistributeRewards(ctx context.Context, req domain.DistributionRequest) (string, error)
	MintBadge(ctx context.Context, req domain.BadgeRequest) (string, error)
}

// expertShare is the fraction of total attainable points at or above which a
// non-podium player earns the expert tier instead of participation.
const expertShare = 0.5

// RewardDispatcher computes winner payouts and badge assignments for a
// finished quiz and delegates them to the ledger collaborator.
type RewardDispatcher struct {
	ledger  LedgerClient
	timeout time.Duration
}

func NewRewardDispatcher(ledger LedgerClient, timeout time.Duration) *RewardDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RewardDispatcher{ledger: ledger, timeout: timeout}
}

// Dispatch runs one full reward pass. A failure on one player's badge does
// not block the others; every per-item outcome lands in the report.
func (d *RewardDispatcher) Dispatch(ctx context.Context, fin FinishInfo) domain.DispatchReport {
	report := domain.DispatchReport{RoomCode: fin.RoomCode}
	shares := winnerShares(fin.Policy, len(fin.Leaderboard))

	for _, entry := range fin.Leaderboard {
		var share int64
		if entry.Rank-1 < len(shares) {
			share = shares[entry.Rank-1]
		}
		outcome := domain.DispatchOutcome{
			Identity: entry.Identity,
			Tier:     badgeTier(entry.Rank, entry.Score, fin.TotalPoints),
			Share:    share,
		}

		badgeID, err := d.mint(ctx, domain.BadgeRequest{
			PlayerIdentity:  entry.Identity,
			RoomID:          fin.RoomID,
			QuizTitle:       fin.QuizTitle,
			Tier:            outcome.Tier,
			Score:           entry.Score,
			Rank:            entry.Rank,
			RewardShare:     share,
			DurationSeconds: fin.DurationSeconds,
		})
		if err != nil {
			outcome.Error = err.Error()
			report.Failed++
			logger.Warn("badge mint failed", "room", fin.RoomCode, "player", entry.Identity, "error", err)
		} else {
			outcome.BadgeID = badgeID
			report.Succeeded++
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	if fin.Policy.HasPool() && len(shares) > 0 {
		winners := make([]string, 0, len(shares))
		amounts := make([]int64, 0, len(shares))
		for i, entry := range fin.Leaderboard {
			if i >= len(shares) {
				break
			}
			winners = append(winners, entry.Identity)
			amounts = append(amounts, shares[i])
		}
		payoutID, err := d.distribute(ctx, domain.DistributionRequest{
			RoomID:    fin.RoomID,
			QuizTitle: fin.QuizTitle,
			Winners:   winners,
			Amounts:   amounts,
		})
		if err != nil {
			report.PayoutErr = err.Error()
			logger.Error("reward distribution failed", "room", fin.RoomCode, "error", err)
		} else {
			report.PayoutID = payoutID
		}
	}

	return report
}

func (d *RewardDispatcher) mint(ctx context.Context, req domain.BadgeRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.ledger.MintBadge(callCtx, req)
}

func (d *RewardDispatcher) distribute(ctx context.Context, req domain.DistributionRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.ledger.DistributeRewards(callCtx, req)
}

// winnerShares resolves per-rank payout amounts from the policy. Integer
// division remainders go to the first-ranked winner.
func winnerShares(policy domain.RewardPolicy, ranked int) []int64 {
	if !policy.HasPool() || ranked == 0 {
		return nil
	}
	percentages := policy.SplitPercentages()
	if len(percentages) > ranked {
		percentages = percentages[:ranked]
	}

	shares := make([]int64, len(percentages))
	var distributed int64
	for i, pct := range percentages {
		shares[i] = policy.PoolAmount * int64(pct) / 100
		distributed += shares[i]
	}
	if len(shares) > 0 {
		shares[0] += policy.PoolAmount*int64(sum(percentages))/100 - distributed
	}
	return shares
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}

func badgeTier(rank, score, totalPoints int) domain.BadgeTier {
	switch rank {
	case 1:
		return domain.TierChampion
	case 2:
		return domain.TierRunnerUp
	case 3:
		return domain.TierThirdPlace
	}
	if totalPoints > 0 && float64(score) >= expertShare*float64(totalPoints) {
		return domain.TierExpert
	}
	return domain.TierParticipation
}
