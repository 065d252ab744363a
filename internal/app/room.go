package app

import (
	"fmt"
	"sync"
	"time"

	"chainquiz-service/internal/domain"
)

// Room is the authoritative session state for one live game. Every mutation
// is serialized behind mu; different rooms are fully independent.
type Room struct {
	code   string
	id     string
	host   string
	quiz   domain.QuizDefinition
	policy domain.RewardPolicy

	now       func() time.Time
	tickEvery time.Duration

	// onFinish and onSnapshot run outside the room lock, on their own goroutines.
	onFinish   func(FinishInfo)
	onSnapshot func(domain.RoomSnapshot)

	mu             sync.Mutex
	state          domain.GameState
	players        map[string]*domain.Player
	joinOrder      []string
	questionIndex  int
	timeRemaining  int
	createdAt      time.Time
	startedAt      *time.Time
	finishedAt     *time.Time
	rewardsSettled bool
	closed         bool

	timerStop chan struct{}
	timerGen  int

	// snapshot persistence runs on one goroutine per room so saves cannot
	// land out of order; pendingSnap holds only the newest state.
	snapMu      sync.Mutex
	pendingSnap *domain.RoomSnapshot
	snapSaving  bool

	subscribers map[chan domain.Event]struct{}
}

// FinishInfo is the immutable data the reward dispatcher needs after a quiz
// finishes, captured so no collaborator call holds the room lock.
type FinishInfo struct {
	RoomCode        string
	RoomID          string
	QuizTitle       string
	Policy          domain.RewardPolicy
	TotalPoints     int
	Leaderboard     []domain.LeaderboardEntry
	StartedAt       time.Time
	FinishedAt      time.Time
	DurationSeconds int
}

func newRoom(code, id, host string, quiz domain.QuizDefinition, policy domain.RewardPolicy, tickEvery time.Duration, now func() time.Time) *Room {
	return &Room{
		code:        code,
		id:          id,
		host:        host,
		quiz:        quiz,
		policy:      policy,
		now:         now,
		tickEvery:   tickEvery,
		state:       domain.StateWaiting,
		players:     make(map[string]*domain.Player),
		createdAt:   now(),
		subscribers: make(map[chan domain.Event]struct{}),
	}
}

// Code returns the human-shareable room code.
func (r *Room) Code() string { return r.code }

// ID returns the opaque broadcast-group key.
func (r *Room) ID() string { return r.id }

// Host returns the creating identity.
func (r *Room) Host() string { return r.host }

// Join adds a participant while the room is still waiting.
func (r *Room) Join(identity, displayName string) error {
	r.mu.Lock()
	if r.state != domain.StateWaiting {
		r.mu.Unlock()
		return domain.ErrAlreadyStarted
	}
	if _, ok := r.players[identity]; ok {
		r.mu.Unlock()
		return domain.ErrDuplicatePlayer
	}
	if len(r.players) >= r.quiz.MaxPlayers {
		r.mu.Unlock()
		return domain.ErrRoomFull
	}

	answers := make([]int, len(r.quiz.Questions))
	for i := range answers {
		answers[i] = -1
	}
	r.players[identity] = &domain.Player{
		Identity:    identity,
		DisplayName: displayName,
		Answers:     answers,
		JoinedAt:    r.now(),
	}
	r.joinOrder = append(r.joinOrder, identity)

	r.broadcastLocked(domain.Event{Type: domain.EventPlayerJoined, Payload: domain.PlayerJoinedPayload{
		Identity:    identity,
		DisplayName: displayName,
		PlayerCount: r.nonHostCountLocked(),
	}})
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snap)
	return nil
}

// Leave removes a participant. Removing the host identity does not reset the
// room; only a host disconnect does.
func (r *Room) Leave(identity string) error {
	r.mu.Lock()
	if _, ok := r.players[identity]; !ok {
		r.mu.Unlock()
		return domain.ErrPlayerNotFound
	}
	r.removePlayerLocked(identity)
	r.broadcastLocked(domain.Event{Type: domain.EventPlayerLeft, Payload: domain.PlayerLeftPayload{
		Identity:    identity,
		PlayerCount: r.nonHostCountLocked(),
	}})
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snap)
	return nil
}

// Start transitions waiting -> playing and arms the countdown.
func (r *Room) Start(requester string) error {
	r.mu.Lock()
	if requester != r.host {
		r.mu.Unlock()
		return domain.ErrUnauthorized
	}
	if r.state == domain.StatePlaying {
		r.mu.Unlock()
		return domain.ErrAlreadyStarted
	}
	if r.state == domain.StateFinished {
		r.mu.Unlock()
		return domain.ErrNotPlaying
	}
	if r.nonHostCountLocked() < 1 {
		r.mu.Unlock()
		return domain.ErrNotEnoughPlayers
	}
	if len(r.quiz.Questions) == 0 {
		r.mu.Unlock()
		return fmt.Errorf("%w: no questions to play", domain.ErrInvalidQuiz)
	}

	now := r.now()
	r.state = domain.StatePlaying
	r.questionIndex = 0
	r.timeRemaining = r.quiz.TimePerQuestion
	r.startedAt = &now
	r.armTimerLocked()

	r.broadcastLocked(domain.Event{Type: domain.EventQuizStarted, Payload: domain.QuizStartedPayload{
		Question: r.questionViewLocked(0),
	}})
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snap)
	return nil
}

// Stop pauses the game: back to waiting, timer cleared, question index reset,
// players and accumulated scores preserved.
func (r *Room) Stop(requester string) error {
	r.mu.Lock()
	if requester != r.host {
		r.mu.Unlock()
		return domain.ErrUnauthorized
	}
	if r.state != domain.StatePlaying {
		r.mu.Unlock()
		return domain.ErrNotPlaying
	}

	r.disarmTimerLocked()
	r.state = domain.StateWaiting
	r.questionIndex = 0
	r.timeRemaining = 0
	r.startedAt = nil

	r.broadcastLocked(domain.Event{Type: domain.EventQuizStopped, Payload: r.snapshotLocked()})
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snap)
	return nil
}

// Advance is the host-triggered manual question advance. Same end-state logic
// as timer expiry; the countdown is rearmed for the next question.
func (r *Room) Advance(requester string) error {
	r.mu.Lock()
	if requester != r.host {
		r.mu.Unlock()
		return domain.ErrUnauthorized
	}
	if r.state != domain.StatePlaying {
		r.mu.Unlock()
		return domain.ErrNotPlaying
	}

	fin := r.advanceLocked()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snap)
	r.dispatch(fin)
	return nil
}

// SubmitAnswer records an answer for the current question. A repeat submission
// for the same question is ignored, not rejected.
func (r *Room) SubmitAnswer(identity string, questionIndex, answerIndex int) error {
	r.mu.Lock()
	if r.state != domain.StatePlaying {
		r.mu.Unlock()
		return domain.ErrNotPlaying
	}
	player, ok := r.players[identity]
	if !ok {
		r.mu.Unlock()
		return domain.ErrPlayerNotFound
	}
	if questionIndex != r.questionIndex {
		r.mu.Unlock()
		return domain.ErrQuestionMismatch
	}
	if answerIndex < 0 || answerIndex >= len(r.quiz.Questions[questionIndex].Options) {
		// -1 would alias the unanswered sentinel in Answers
		r.mu.Unlock()
		return domain.ErrInvalidAnswer
	}
	if player.Answers[questionIndex] != -1 {
		// at-most-one scored answer per player per question
		r.mu.Unlock()
		return nil
	}

	player.Answers[questionIndex] = answerIndex
	question := r.quiz.Questions[questionIndex]
	if answerIndex == question.CorrectIndex {
		player.Score += question.AwardedPoints()
	}

	r.broadcastLocked(domain.Event{Type: domain.EventRoomState, Payload: r.snapshotLocked()})
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snap)
	return nil
}

// HostDisconnected resets the room completely: players, answers and scores
// are all cleared. This is deliberately harsher than Stop.
func (r *Room) HostDisconnected() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.disarmTimerLocked()
	r.state = domain.StateWaiting
	r.questionIndex = 0
	r.timeRemaining = 0
	r.startedAt = nil
	r.finishedAt = nil
	r.players = make(map[string]*domain.Player)
	r.joinOrder = nil

	r.broadcastLocked(domain.Event{Type: domain.EventHostDisconnected, Payload: domain.HostDisconnectedPayload{RoomCode: r.code}})
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snap)
}

// Close tears the room down: timer disarmed, subscribers notified and closed.
// Further broadcasts become no-ops.
func (r *Room) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.disarmTimerLocked()
	r.broadcastLocked(domain.Event{Type: domain.EventRoomClosed, Payload: domain.RoomClosedPayload{RoomCode: r.code}})
	r.closed = true
	for ch := range r.subscribers {
		close(ch)
	}
	r.subscribers = make(map[chan domain.Event]struct{})
	r.mu.Unlock()
}

// Subscribe returns a channel receiving room events in transition order.
// The caller must invoke the returned cancel function to avoid leaks.
func (r *Room) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 16)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	r.subscribers[ch] = struct{}{}
	initial := r.snapshotLocked()
	r.mu.Unlock()

	ch <- domain.Event{Type: domain.EventRoomState, Payload: initial}

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast pushes an event to all current subscribers.
func (r *Room) Broadcast(ev domain.Event) {
	r.mu.Lock()
	r.broadcastLocked(ev)
	r.mu.Unlock()
}

// Snapshot returns the current client-facing room state.
func (r *Room) Snapshot() domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Summary returns the listing view of the room.
func (r *Room) Summary() domain.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.RoomSummary{
		Code:         r.code,
		Title:        r.quiz.Title,
		HostIdentity: r.host,
		PlayerCount:  r.nonHostCountLocked(),
		MaxPlayers:   r.quiz.MaxPlayers,
		State:        r.state,
		CreatedAt:    r.createdAt,
	}
}

// Leaderboard returns the current ranked standings.
func (r *Room) Leaderboard() []domain.LeaderboardEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaderboardLocked()
}

// settleRewards flips the at-most-once dispatch guard. Returns false when a
// previous pass already claimed it.
func (r *Room) settleRewards() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rewardsSettled {
		return false
	}
	r.rewardsSettled = true
	return true
}

// timer

func (r *Room) armTimerLocked() {
	r.disarmTimerLocked()
	r.timerGen++
	gen := r.timerGen
	stop := make(chan struct{})
	r.timerStop = stop
	go r.runTimer(gen, stop)
}

// disarmTimerLocked cancels the active countdown. Safe to call when no timer
// is armed; the generation bump invalidates any tick already in flight.
func (r *Room) disarmTimerLocked() {
	if r.timerStop != nil {
		close(r.timerStop)
		r.timerStop = nil
	}
	r.timerGen++
}

func (r *Room) runTimer(gen int, stop chan struct{}) {
	ticker := time.NewTicker(r.tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if done := r.tick(gen); done {
				return
			}
		}
	}
}

// tick applies one countdown second. Returns true when the timer goroutine
// should exit because the room moved on without it.
func (r *Room) tick(gen int) bool {
	r.mu.Lock()
	if gen != r.timerGen || r.state != domain.StatePlaying {
		r.mu.Unlock()
		return true
	}

	r.timeRemaining--
	if r.timeRemaining > 0 {
		r.broadcastLocked(domain.Event{Type: domain.EventTimerTick, Payload: domain.TimerTickPayload{
			QuestionIndex: r.questionIndex,
			Remaining:     r.timeRemaining,
		}})
		r.mu.Unlock()
		return false
	}

	fin := r.advanceLocked()
	finished := fin != nil
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.persist(snap)
	r.dispatch(fin)
	return finished
}

// advanceLocked moves to the next question or finishes the quiz. It returns a
// non-nil FinishInfo exactly when this call produced the finished state.
func (r *Room) advanceLocked() *FinishInfo {
	if r.questionIndex+1 < len(r.quiz.Questions) {
		r.questionIndex++
		r.timeRemaining = r.quiz.TimePerQuestion
		r.armTimerLocked()
		r.broadcastLocked(domain.Event{Type: domain.EventNextQuestion, Payload: domain.NextQuestionPayload{
			Question:    r.questionViewLocked(r.questionIndex),
			Leaderboard: r.leaderboardLocked(),
		}})
		return nil
	}
	return r.finishLocked()
}

func (r *Room) finishLocked() *FinishInfo {
	r.disarmTimerLocked()
	now := r.now()
	r.state = domain.StateFinished
	r.timeRemaining = 0
	r.finishedAt = &now

	started := r.createdAt
	if r.startedAt != nil {
		started = *r.startedAt
	}
	duration := int(now.Sub(started) / time.Second)
	leaderboard := r.leaderboardLocked()

	// The leaderboard goes out before any reward dispatch is attempted; the
	// dispatch outcome follows as a separate event.
	r.broadcastLocked(domain.Event{Type: domain.EventQuizFinished, Payload: domain.QuizFinishedPayload{
		Leaderboard:     leaderboard,
		DurationSeconds: duration,
	}})

	return &FinishInfo{
		RoomCode:        r.code,
		RoomID:          r.id,
		QuizTitle:       r.quiz.Title,
		Policy:          r.policy,
		TotalPoints:     r.quiz.TotalPoints(),
		Leaderboard:     leaderboard,
		StartedAt:       started,
		FinishedAt:      now,
		DurationSeconds: duration,
	}
}

// helpers, all called with mu held

func (r *Room) removePlayerLocked(identity string) {
	delete(r.players, identity)
	for i, id := range r.joinOrder {
		if id == identity {
			r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
			break
		}
	}
}

func (r *Room) nonHostCountLocked() int {
	count := 0
	for identity := range r.players {
		if identity != r.host {
			count++
		}
	}
	return count
}

func (r *Room) questionViewLocked(index int) domain.QuestionView {
	q := r.quiz.Questions[index]
	return domain.QuestionView{
		Index:   index,
		Total:   len(r.quiz.Questions),
		Text:    q.Text,
		Options: q.Options,
		Points:  q.AwardedPoints(),
		MediaID: q.MediaID,
		Seconds: r.quiz.TimePerQuestion,
	}
}

func (r *Room) snapshotLocked() domain.RoomSnapshot {
	players := make([]domain.Player, 0, len(r.players))
	for _, id := range r.joinOrder {
		if p, ok := r.players[id]; ok {
			players = append(players, *p)
		}
	}
	return domain.RoomSnapshot{
		Code:           r.code,
		ID:             r.id,
		HostIdentity:   r.host,
		Title:          r.quiz.Title,
		State:          r.state,
		QuestionIndex:  r.questionIndex,
		QuestionCount:  len(r.quiz.Questions),
		TimeRemaining:  r.timeRemaining,
		Players:        players,
		Leaderboard:    r.leaderboardLocked(),
		CreatedAt:      r.createdAt,
		StartedAt:      r.startedAt,
		FinishedAt:     r.finishedAt,
		RewardsSettled: r.rewardsSettled,
	}
}

func (r *Room) broadcastLocked(ev domain.Event) {
	if r.closed {
		return
	}
	for ch := range r.subscribers {
		select {
		case ch <- ev:
		default:
			// drop the oldest pending event rather than block the room
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// off-lock hooks

func (r *Room) persist(snap domain.RoomSnapshot) {
	if r.onSnapshot == nil {
		return
	}
	r.snapMu.Lock()
	r.pendingSnap = &snap
	if r.snapSaving {
		r.snapMu.Unlock()
		return
	}
	r.snapSaving = true
	r.snapMu.Unlock()
	go r.drainSnapshots()
}

// drainSnapshots saves pending snapshots one at a time until none remain.
// Intermediate states superseded while a save was in flight are skipped.
func (r *Room) drainSnapshots() {
	for {
		r.snapMu.Lock()
		snap := r.pendingSnap
		r.pendingSnap = nil
		if snap == nil {
			r.snapSaving = false
			r.snapMu.Unlock()
			return
		}
		r.snapMu.Unlock()
		r.onSnapshot(*snap)
	}
}

func (r *Room) dispatch(fin *FinishInfo) {
	if fin != nil && r.onFinish != nil {
		go r.onFinish(*fin)
	}
}
