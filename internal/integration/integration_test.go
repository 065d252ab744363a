package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"chainquiz-service/internal/app"
	"chainquiz-service/internal/domain"
	"chainquiz-service/internal/infra/postgres"
	pgmigrations "chainquiz-service/internal/infra/postgres/migrations"
	"chainquiz-service/internal/ledger"
)

func TestFinishedGameIsArchivedEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	dsn, cleanup := startPostgres(t, ctx)
	defer cleanup()

	runMigrations(t, ctx, dsn)

	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	archive := postgres.NewResultArchive(pool)
	dispatcher := app.NewRewardDispatcher(ledger.NewNoopClient(), time.Second)
	service := app.NewRoomService(app.NewRegistry(), dispatcher, nil, archive, app.Defaults{TickInterval: time.Hour})

	snap, err := service.CreateRoom(ctx, domain.QuizDefinition{
		Title: "Arithmetic",
		Questions: []domain.Question{
			{Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectIndex: 1},
		},
		TimePerQuestion: 30,
		MaxPlayers:      10,
	}, domain.RewardPolicy{Kind: domain.RewardToken, Rule: domain.SplitTop3, PoolAmount: 100}, "host-1")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	code := snap.Code

	if err := service.Join(code, "u1", "Alice"); err != nil {
		t.Fatalf("join u1: %v", err)
	}
	if err := service.Join(code, "u2", "Bob"); err != nil {
		t.Fatalf("join u2: %v", err)
	}
	if err := service.Start(code, "host-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := service.SubmitAnswer(code, "u2", 0, 1); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := service.Advance(code, "host-1"); err != nil {
		t.Fatalf("advance: %v", err)
	}

	var results []domain.GameResult
	deadline := time.Now().Add(10 * time.Second)
	for {
		results, err = archive.LoadResults(ctx, 5)
		if err != nil {
			t.Fatalf("load results: %v", err)
		}
		if len(results) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("game never archived, have %d rows", len(results))
		}
		time.Sleep(50 * time.Millisecond)
	}

	got := results[0]
	if got.RoomCode != code || got.QuizTitle != "Arithmetic" {
		t.Fatalf("unexpected archived result %+v", got)
	}
	if len(got.Leaderboard) != 2 || got.Leaderboard[0].Identity != "u2" {
		t.Fatalf("expected bob leading the archived leaderboard, got %+v", got.Leaderboard)
	}
	if got.Report == nil || got.Report.Succeeded != 2 {
		t.Fatalf("expected reward report with 2 badges, got %+v", got.Report)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
