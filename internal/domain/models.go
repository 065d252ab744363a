package domain

import (
	"fmt"
	"time"
)

// GameState is the lifecycle phase of a room.
type GameState string

const (
	StateWaiting  GameState = "waiting"
	StatePlaying  GameState = "playing"
	StateFinished GameState = "finished"
)

// RewardKind selects what the host pays out after the quiz.
type RewardKind string

const (
	RewardCertificate RewardKind = "certificate"
	RewardToken       RewardKind = "token"
	RewardBoth        RewardKind = "both"
)

// DistributionRule selects how the pooled amount is split among winners.
type DistributionRule string

const (
	// SplitTop3 pays 50/30/20 to the first three ranked players.
	SplitTop3 DistributionRule = "top3"
	// SplitManual applies an explicit percentage list to ranked players.
	SplitManual DistributionRule = "manual"
)

// Defaults applied when a quiz definition leaves a setting unset.
const (
	DefaultQuestionPoints  = 10
	DefaultTimePerQuestion = 30
	DefaultMaxPlayers      = 50
)

// Top3Percentages is the fixed split for the SplitTop3 rule.
var Top3Percentages = []int{50, 30, 20}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Points       int      `json:"points"` // defaults to 10 if zero
	MediaID      string   `json:"mediaId,omitempty"`
}

// AwardedPoints is the score value of a correct answer to this question.
func (q Question) AwardedPoints() int {
	if q.Points == 0 {
		return DefaultQuestionPoints
	}
	return q.Points
}

// QuizDefinition is the ordered question set plus room-level settings.
type QuizDefinition struct {
	Title           string     `json:"title"`
	CoverMediaID    string     `json:"coverMediaId,omitempty"`
	Questions       []Question `json:"questions"`
	TimePerQuestion int        `json:"timePerQuestion"` // seconds
	MaxPlayers      int        `json:"maxPlayers"`
}

// TotalPoints sums the attainable points across all questions.
func (q QuizDefinition) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.AwardedPoints()
	}
	return total
}

// RewardPolicy describes the post-game payout configured by the host.
type RewardPolicy struct {
	Kind        RewardKind       `json:"kind"`
	Rule        DistributionRule `json:"rule"`
	PoolAmount  int64            `json:"poolAmount"`
	Percentages []int            `json:"percentages,omitempty"` // manual rule only, must sum to 100
}

// HasPool reports whether a monetary pool exists to distribute.
func (p RewardPolicy) HasPool() bool {
	return p.PoolAmount > 0 && (p.Kind == RewardToken || p.Kind == RewardBoth)
}

// SplitPercentages resolves the effective percentage list for the policy.
func (p RewardPolicy) SplitPercentages() []int {
	if p.Rule == SplitManual {
		return p.Percentages
	}
	return Top3Percentages
}

// Validate checks a quiz definition and reward policy at creation time.
func Validate(def QuizDefinition, policy RewardPolicy) error {
	if def.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidQuiz)
	}
	if len(def.Questions) == 0 {
		return fmt.Errorf("%w: at least one question is required", ErrInvalidQuiz)
	}
	for i, q := range def.Questions {
		if q.Text == "" {
			return fmt.Errorf("%w: question %d has no text", ErrInvalidQuiz, i)
		}
		if len(q.Options) != 4 {
			return fmt.Errorf("%w: question %d must have 4 options, has %d", ErrInvalidQuiz, i, len(q.Options))
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return fmt.Errorf("%w: question %d correct index %d out of range", ErrInvalidQuiz, i, q.CorrectIndex)
		}
		if q.Points < 0 {
			return fmt.Errorf("%w: question %d has negative points", ErrInvalidQuiz, i)
		}
	}
	if def.TimePerQuestion < 0 || def.MaxPlayers < 0 {
		return fmt.Errorf("%w: negative time or capacity", ErrInvalidQuiz)
	}
	switch policy.Rule {
	case SplitTop3, DistributionRule(""):
	case SplitManual:
		sum := 0
		for _, pct := range policy.Percentages {
			if pct <= 0 {
				return fmt.Errorf("%w: manual percentages must be positive", ErrInvalidQuiz)
			}
			sum += pct
		}
		if sum != 100 {
			return fmt.Errorf("%w: manual percentages sum to %d, want 100", ErrInvalidQuiz, sum)
		}
	default:
		return fmt.Errorf("%w: unknown distribution rule %q", ErrInvalidQuiz, policy.Rule)
	}
	if policy.PoolAmount < 0 {
		return fmt.Errorf("%w: negative reward pool", ErrInvalidQuiz)
	}
	return nil
}

// Player is one room participant. Answers is indexed by question position;
// -1 marks a question the player never answered.
type Player struct {
	Identity    string    `json:"identity"`
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
	Answers     []int     `json:"answers"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// LeaderboardEntry is a ranked snapshot of a non-host player.
type LeaderboardEntry struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	Rank        int    `json:"rank"`
}

// RoomSummary is the listing view of a live room.
type RoomSummary struct {
	Code         string    `json:"code"`
	Title        string    `json:"title"`
	HostIdentity string    `json:"hostIdentity"`
	PlayerCount  int       `json:"playerCount"`
	MaxPlayers   int       `json:"maxPlayers"`
	State        GameState `json:"state"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RoomSnapshot is the full client-facing room state, also used for
// best-effort persistence of the in-memory session.
type RoomSnapshot struct {
	Code           string             `json:"code"`
	ID             string             `json:"id"`
	HostIdentity   string             `json:"hostIdentity"`
	Title          string             `json:"title"`
	State          GameState          `json:"state"`
	QuestionIndex  int                `json:"questionIndex"`
	QuestionCount  int                `json:"questionCount"`
	TimeRemaining  int                `json:"timeRemaining"`
	Players        []Player           `json:"players"`
	Leaderboard    []LeaderboardEntry `json:"leaderboard"`
	CreatedAt      time.Time          `json:"createdAt"`
	StartedAt      *time.Time         `json:"startedAt,omitempty"`
	FinishedAt     *time.Time         `json:"finishedAt,omitempty"`
	RewardsSettled bool               `json:"rewardsSettled"`
}

// BadgeTier classifies a player's achievement after a finished quiz.
type BadgeTier string

const (
	TierChampion      BadgeTier = "champion"
	TierRunnerUp      BadgeTier = "runner-up"
	TierThirdPlace    BadgeTier = "third-place"
	TierExpert        BadgeTier = "expert"
	TierParticipation BadgeTier = "participation"
)

// BadgeRequest is the payload the core hands to the ledger collaborator.
// The ledger owns persistence and sealing; the core only builds the request.
type BadgeRequest struct {
	PlayerIdentity  string    `json:"playerIdentity"`
	RoomID          string    `json:"roomId"`
	QuizTitle       string    `json:"quizTitle"`
	Tier            BadgeTier `json:"tier"`
	Score           int       `json:"score"`
	Rank            int       `json:"rank"`
	RewardShare     int64     `json:"rewardShare"`
	DurationSeconds int       `json:"durationSeconds"`
}

// DistributionRequest lists every paid winner for a single ledger payout call.
type DistributionRequest struct {
	RoomID    string   `json:"roomId"`
	QuizTitle string   `json:"quizTitle"`
	Winners   []string `json:"winners"`
	Amounts   []int64  `json:"amounts"`
}

// DispatchOutcome records the per-player result of reward dispatch.
type DispatchOutcome struct {
	Identity string    `json:"identity"`
	Tier     BadgeTier `json:"tier"`
	Share    int64     `json:"share"`
	BadgeID  string    `json:"badgeId,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// DispatchReport is the aggregate outcome broadcast after a finished quiz.
type DispatchReport struct {
	RoomCode  string            `json:"roomCode"`
	Outcomes  []DispatchOutcome `json:"outcomes"`
	PayoutID  string            `json:"payoutId,omitempty"`
	PayoutErr string            `json:"payoutError,omitempty"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// GameResult is the archived record of a finished quiz.
type GameResult struct {
	RoomCode    string             `json:"roomCode"`
	RoomID      string             `json:"roomId"`
	QuizTitle   string             `json:"quizTitle"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Report      *DispatchReport    `json:"report,omitempty"`
	StartedAt   time.Time          `json:"startedAt"`
	FinishedAt  time.Time          `json:"finishedAt"`
}
