package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no live room matches the given code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrPlayerNotFound is returned when a player acts in a room they never joined.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrUnauthorized is returned when a non-host issues a host-only command.
	ErrUnauthorized = errors.New("only the host may do that")
	// ErrRoomFull is returned when a join would exceed the room capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrAlreadyStarted is returned for joins or starts against a playing room.
	ErrAlreadyStarted = errors.New("game already started")
	// ErrNotPlaying is returned for in-game commands while the room is not playing.
	ErrNotPlaying = errors.New("game is not in progress")
	// ErrNotEnoughPlayers is returned when a start has no non-host players.
	ErrNotEnoughPlayers = errors.New("at least one player is required to start")
	// ErrDuplicatePlayer is returned when an identity joins the same room twice.
	ErrDuplicatePlayer = errors.New("identity already joined this room")
	// ErrQuestionMismatch is returned when an answer targets a question that
	// is not the current one.
	ErrQuestionMismatch = errors.New("answer does not match the current question")
	// ErrInvalidAnswer is returned when the answer index is outside the
	// question's option range.
	ErrInvalidAnswer = errors.New("answer index out of range")
	// ErrInvalidQuiz wraps validation failures in quiz definitions and reward policies.
	ErrInvalidQuiz = errors.New("invalid quiz")
)
