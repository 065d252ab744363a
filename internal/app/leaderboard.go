package app

import (
	"sort"

	"chainquiz-service/internal/domain"
)

// leaderboardLocked derives the ranked standings: host excluded, descending
// score, ties broken by join order (earlier join ranks first).
func (r *Room) leaderboardLocked() []domain.LeaderboardEntry {
	order := make(map[string]int, len(r.joinOrder))
	for i, id := range r.joinOrder {
		order[id] = i
	}

	entries := make([]domain.LeaderboardEntry, 0, len(r.players))
	for identity, player := range r.players {
		if identity == r.host {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			Identity:    identity,
			DisplayName: player.DisplayName,
			Score:       player.Score,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return order[entries[i].Identity] < order[entries[j].Identity]
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
