package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chainquiz-service/internal/domain"
	"chainquiz-service/pkg/logger"
)

// SnapshotStore persists best-effort room snapshots. Failures are logged and
// never surfaced to clients.
type SnapshotStore interface {
	Save(ctx context.Context, snap domain.RoomSnapshot) error
	Delete(ctx context.Context, code string) error
}

// ResultArchive stores the final record of a finished game.
type ResultArchive interface {
	SaveResult(ctx context.Context, result domain.GameResult) error
}

// Defaults fills quiz definition settings the host left unset.
type Defaults struct {
	TimePerQuestion int
	MaxPlayers      int
	TickInterval    time.Duration
}

func (d Defaults) normalized() Defaults {
	if d.TimePerQuestion <= 0 {
		d.TimePerQuestion = domain.DefaultTimePerQuestion
	}
	if d.MaxPlayers <= 0 {
		d.MaxPlayers = domain.DefaultMaxPlayers
	}
	if d.TickInterval <= 0 {
		d.TickInterval = time.Second
	}
	return d
}

// RoomService exposes the quiz-room use cases to the transport layer.
type RoomService struct {
	registry   *Registry
	dispatcher *RewardDispatcher
	snapshots  SnapshotStore
	archive    ResultArchive
	defaults   Defaults
	now        func() time.Time
}

func NewRoomService(registry *Registry, dispatcher *RewardDispatcher, snapshots SnapshotStore, archive ResultArchive, defaults Defaults) *RoomService {
	return &RoomService{
		registry:   registry,
		dispatcher: dispatcher,
		snapshots:  snapshots,
		archive:    archive,
		defaults:   defaults.normalized(),
		now:        time.Now,
	}
}

// NewRoomServiceWithClock is test-only for deterministic timestamps.
func NewRoomServiceWithClock(registry *Registry, dispatcher *RewardDispatcher, snapshots SnapshotStore, archive ResultArchive, defaults Defaults, now func() time.Time) *RoomService {
	s := NewRoomService(registry, dispatcher, snapshots, archive, defaults)
	s.now = now
	return s
}

// CreateRoom validates the definition, applies defaults and registers a new
// waiting room under a fresh code.
func (s *RoomService) CreateRoom(ctx context.Context, def domain.QuizDefinition, policy domain.RewardPolicy, hostIdentity string) (domain.RoomSnapshot, error) {
	if def.TimePerQuestion == 0 {
		def.TimePerQuestion = s.defaults.TimePerQuestion
	}
	if def.MaxPlayers == 0 {
		def.MaxPlayers = s.defaults.MaxPlayers
	}
	if policy.Rule == "" {
		policy.Rule = domain.SplitTop3
	}
	if err := domain.Validate(def, policy); err != nil {
		return domain.RoomSnapshot{}, err
	}

	room := s.registry.Register(func(code string) *Room {
		r := newRoom(code, uuid.NewString(), hostIdentity, def, policy, s.defaults.TickInterval, s.now)
		r.onFinish = s.handleFinish
		r.onSnapshot = s.persistSnapshot
		return r
	})

	snap := room.Snapshot()
	room.persist(snap)
	logger.Info("room created", "code", room.Code(), "host", hostIdentity, "questions", len(def.Questions))
	return snap, nil
}

// ListRooms returns summaries of all live rooms.
func (s *RoomService) ListRooms() []domain.RoomSummary {
	return s.registry.List()
}

// GetRoom returns the full state of one room.
func (s *RoomService) GetRoom(code string) (domain.RoomSnapshot, error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	return room.Snapshot(), nil
}

// DeleteRoom removes a room on behalf of its host and notifies all joined
// connections before their channels close.
func (s *RoomService) DeleteRoom(ctx context.Context, code, requester string) error {
	room, ok := s.registry.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	if room.Host() != requester {
		return domain.ErrUnauthorized
	}

	if removed, ok := s.registry.Remove(code); ok {
		removed.Close()
	}
	if s.snapshots != nil {
		if err := s.snapshots.Delete(ctx, room.Code()); err != nil {
			logger.Warn("snapshot delete failed", "room", room.Code(), "error", err)
		}
	}
	logger.Info("room closed", "code", room.Code())
	return nil
}

// Join adds a player to a waiting room.
func (s *RoomService) Join(code, identity, displayName string) error {
	room, ok := s.registry.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.Join(identity, displayName)
}

// Leave removes a player. A host leaving does not reset the room.
func (s *RoomService) Leave(code, identity string) error {
	room, ok := s.registry.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.Leave(identity)
}

// SubmitAnswer records a player's answer for the current question.
func (s *RoomService) SubmitAnswer(code, identity string, questionIndex, answerIndex int) error {
	room, ok := s.registry.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.SubmitAnswer(identity, questionIndex, answerIndex)
}

// Start begins the quiz on behalf of the host.
func (s *RoomService) Start(code, requester string) error {
	room, ok := s.registry.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.Start(requester)
}

// Stop pauses a playing quiz, preserving players and scores.
func (s *RoomService) Stop(code, requester string) error {
	room, ok := s.registry.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.Stop(requester)
}

// Advance moves a playing quiz to the next question.
func (s *RoomService) Advance(code, requester string) error {
	room, ok := s.registry.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.Advance(requester)
}

// Disconnected handles a dropped connection: the host dropping resets the
// room, a player dropping just leaves.
func (s *RoomService) Disconnected(code, identity string) {
	room, ok := s.registry.Get(code)
	if !ok {
		return
	}
	if identity == room.Host() {
		room.HostDisconnected()
		return
	}
	_ = room.Leave(identity)
}

// Subscribe returns the push-event channel for a room.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *RoomService) Subscribe(code string) (<-chan domain.Event, func(), error) {
	room, ok := s.registry.Get(code)
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	ch, cancel := room.Subscribe()
	return ch, cancel, nil
}

// handleFinish runs once per room after the finished state was broadcast. It
// claims the settle guard, dispatches rewards and emits the follow-up event.
func (s *RoomService) handleFinish(fin FinishInfo) {
	room, ok := s.registry.Get(fin.RoomCode)
	if !ok {
		return
	}
	if !room.settleRewards() {
		return
	}

	ctx := context.Background()
	var report domain.DispatchReport
	if s.dispatcher != nil {
		report = s.dispatcher.Dispatch(ctx, fin)
	} else {
		report = domain.DispatchReport{RoomCode: fin.RoomCode}
	}

	room.Broadcast(domain.Event{Type: domain.EventRewardsDistributed, Payload: domain.RewardsDistributedPayload{Report: report}})
	room.persist(room.Snapshot())

	if s.archive != nil {
		result := domain.GameResult{
			RoomCode:    fin.RoomCode,
			RoomID:      fin.RoomID,
			QuizTitle:   fin.QuizTitle,
			Leaderboard: fin.Leaderboard,
			Report:      &report,
			StartedAt:   fin.StartedAt,
			FinishedAt:  fin.FinishedAt,
		}
		if err := s.archive.SaveResult(ctx, result); err != nil {
			logger.Warn("result archive failed", "room", fin.RoomCode, "error", err)
		}
	}
	logger.Info("rewards dispatched", "room", fin.RoomCode, "succeeded", report.Succeeded, "failed", report.Failed)
}

func (s *RoomService) persistSnapshot(snap domain.RoomSnapshot) {
	if s.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.snapshots.Save(ctx, snap); err != nil {
		logger.Warn("snapshot save failed", "room", snap.Code, "error", err)
	}
}
