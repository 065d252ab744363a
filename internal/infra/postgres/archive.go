package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"chainquiz-service/internal/domain"
)

// ResultArchive writes finished-game records to Postgres.
type ResultArchive struct {
	pool *pgxpool.Pool
}

func NewResultArchive(pool *pgxpool.Pool) *ResultArchive {
	return &ResultArchive{pool: pool}
}

func (a *ResultArchive) SaveResult(ctx context.Context, result domain.GameResult) error {
	leaderboard, err := json.Marshal(result.Leaderboard)
	if err != nil {
		return fmt.Errorf("marshal leaderboard: %w", err)
	}
	var report []byte
	if result.Report != nil {
		report, err = json.Marshal(result.Report)
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
	}

	_, err = a.pool.Exec(ctx,
		`INSERT INTO game_results (room_code, room_id, quiz_title, leaderboard, report, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		result.RoomCode, result.RoomID, result.QuizTitle, leaderboard, report, result.StartedAt, result.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert game result: %w", err)
	}
	return nil
}

// LoadResults returns the most recent archived games, newest first.
func (a *ResultArchive) LoadResults(ctx context.Context, limit int) ([]domain.GameResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.pool.Query(ctx,
		`SELECT room_code, room_id, quiz_title, leaderboard, report, started_at, finished_at
		 FROM game_results ORDER BY finished_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query game results: %w", err)
	}
	defer rows.Close()

	var results []domain.GameResult
	for rows.Next() {
		var (
			result      domain.GameResult
			leaderboard []byte
			report      []byte
		)
		if err := rows.Scan(&result.RoomCode, &result.RoomID, &result.QuizTitle, &leaderboard, &report, &result.StartedAt, &result.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan game result: %w", err)
		}
		if err := json.Unmarshal(leaderboard, &result.Leaderboard); err != nil {
			return nil, fmt.Errorf("unmarshal leaderboard: %w", err)
		}
		if len(report) > 0 {
			result.Report = &domain.DispatchReport{}
			if err := json.Unmarshal(report, result.Report); err != nil {
				return nil, fmt.Errorf("unmarshal report: %w", err)
			}
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
