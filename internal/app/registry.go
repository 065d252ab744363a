package app

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"chainquiz-service/internal/domain"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
)

// Registry is the process-wide code -> Room mapping. Insertions and removals
// are atomic with respect to concurrent create/delete calls.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	rnd   *rand.Rand
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Register stores the room built by build under a freshly generated unique
// code. Code generation and insertion happen under one lock so a concurrent
// create cannot claim the same code.
func (g *Registry) Register(build func(code string) *Room) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()

	var code string
	for {
		code = g.randomCodeLocked()
		if _, taken := g.rooms[code]; !taken {
			break
		}
	}
	room := build(code)
	g.rooms[code] = room
	return room
}

// Get looks up a live room by code. Codes are case-insensitive on lookup.
func (g *Registry) Get(code string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[strings.ToUpper(code)]
	return room, ok
}

// List returns summaries of all live rooms.
func (g *Registry) List() []domain.RoomSummary {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		rooms = append(rooms, room)
	}
	g.mu.RUnlock()

	summaries := make([]domain.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, room.Summary())
	}
	return summaries
}

// Remove deletes the mapping for code and returns the removed room. Removing
// an already-removed code is a safe no-op.
func (g *Registry) Remove(code string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[strings.ToUpper(code)]
	if ok {
		delete(g.rooms, strings.ToUpper(code))
	}
	return room, ok
}

func (g *Registry) randomCodeLocked() string {
	var b strings.Builder
	b.Grow(codeLength)
	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeAlphabet[g.rnd.Intn(len(codeAlphabet))])
	}
	return b.String()
}
