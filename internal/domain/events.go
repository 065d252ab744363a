package domain

// EventType tags every push event sent to room subscribers.
type EventType string

const (
	EventPlayerJoined       EventType = "player-joined"
	EventPlayerLeft         EventType = "player-left"
	EventRoomState          EventType = "room-state"
	EventQuizStarted        EventType = "quiz-started"
	EventTimerTick          EventType = "timer-tick"
	EventNextQuestion       EventType = "next-question"
	EventQuizStopped        EventType = "quiz-stopped"
	EventQuizFinished       EventType = "quiz-finished"
	EventRewardsDistributed EventType = "rewards-distributed"
	EventHostDisconnected   EventType = "host-disconnected"
	EventRoomClosed         EventType = "room-closed"
	EventError              EventType = "error"
)

// Event is the envelope pushed to every room subscriber. Payload holds
// exactly one of the typed payloads below, matching Type.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// QuestionView is a question as shown to players: the correct index is withheld.
type QuestionView struct {
	Index   int      `json:"index"`
	Total   int      `json:"total"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
	Points  int      `json:"points"`
	MediaID string   `json:"mediaId,omitempty"`
	Seconds int      `json:"seconds"`
}

// PlayerJoinedPayload announces a new participant.
type PlayerJoinedPayload struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
	PlayerCount int    `json:"playerCount"`
}

// PlayerLeftPayload announces a departed participant.
type PlayerLeftPayload struct {
	Identity    string `json:"identity"`
	PlayerCount int    `json:"playerCount"`
}

// QuizStartedPayload carries the first question.
type QuizStartedPayload struct {
	Question QuestionView `json:"question"`
}

// TimerTickPayload carries the countdown for the current question.
type TimerTickPayload struct {
	QuestionIndex int `json:"questionIndex"`
	Remaining     int `json:"remaining"`
}

// NextQuestionPayload carries the question the room advanced to, plus the
// leaderboard as it stood when the previous question closed.
type NextQuestionPayload struct {
	Question    QuestionView       `json:"question"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// QuizFinishedPayload carries the final leaderboard.
type QuizFinishedPayload struct {
	Leaderboard     []LeaderboardEntry `json:"leaderboard"`
	DurationSeconds int                `json:"durationSeconds"`
}

// RewardsDistributedPayload carries the dispatch outcome follow-up.
type RewardsDistributedPayload struct {
	Report DispatchReport `json:"report"`
}

// HostDisconnectedPayload announces the reset caused by a host drop.
type HostDisconnectedPayload struct {
	RoomCode string `json:"roomCode"`
}

// RoomClosedPayload announces explicit room deletion.
type RoomClosedPayload struct {
	RoomCode string `json:"roomCode"`
}

// ErrorPayload carries a rejection back to the issuing client only.
type ErrorPayload struct {
	Message string `json:"message"`
}
