package registry

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atutic/TicTacToe/internal/apperror"
	"github.com/atutic/TicTacToe/internal/entity"
	"github.com/atutic/TicTacToe/internal/match"
)

type fakeActor struct {
	name     string
	mode     string
	timerSec int

	mu       sync.Mutex
	lines    []string
	session  *match.Session
	symbol   string
	opponent match.Client
}

func newFakeActor(name, mode string) *fakeActor {
	return &fakeActor{name: name, mode: mode, timerSec: 15}
}

func (that *fakeActor) Send(line string) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.lines = append(that.lines, line)
}

func (that *fakeActor) Name() string  { return that.name }
func (that *fakeActor) Mode() string  { return that.mode }
func (that *fakeActor) TimerSec() int { return that.timerSec }

func (that *fakeActor) Symbol() string {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.symbol
}

func (that *fakeActor) Bind(session *match.Session, symbol string, opponent match.Client) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.session = session
	that.symbol = symbol
	that.opponent = opponent
}

func (that *fakeActor) BindSpectator(session *match.Session) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.session = session
	that.symbol = "S"
}

func (that *fakeActor) MatchEnded() {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.session = nil
}

func (that *fakeActor) Detach() {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.session = nil
	that.symbol = ""
	that.opponent = nil
}

func (that *fakeActor) receivedPrefix(prefix string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()
	for _, line := range that.lines {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

type stubScores struct {
	mu      sync.Mutex
	entries []entity.ScoreEntry
}

func (that *stubScores) RecordResult(_ context.Context, _, _ string) error     { return nil }
func (that *stubScores) RecordDraw(_ context.Context, _, _ string) error       { return nil }
func (that *stubScores) RecordTournamentWin(_ context.Context, _ string) error { return nil }

func (that *stubScores) Scoreboard(_ context.Context) ([]entity.ScoreEntry, error) {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.entries, nil
}

type stubMoveLog struct{}

func (that *stubMoveLog) Load(_ context.Context, _, _ string) ([]entity.Move, error) {
	return nil, nil
}
func (that *stubMoveLog) Append(_ context.Context, _, _ string, _ entity.Move) error { return nil }
func (that *stubMoveLog) Delete(_ context.Context, _, _ string) error                { return nil }

type stubHistory struct{}

func (that *stubHistory) Append(_ context.Context, _ entity.HistoryRecord) error { return nil }

func (that *stubHistory) Query(_ context.Context, _, _, _ string) ([]entity.HistoryRecord, error) {
	return nil, nil
}

func newTestRegistry() *Registry {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	conf := Config{
		Match: match.Config{
			TurnTimeout: time.Minute,
			RemoveDelay: time.Minute,
		},
	}

	return New(context.Background(), logger, &stubScores{}, &stubMoveLog{}, &stubHistory{}, conf)
}

func TestRegistry_HostRoom(t *testing.T) {
	t.Run("Opens a room for a human match", func(t *testing.T) {
		// Given: a registry and a host in human mode
		reg := newTestRegistry()
		host := newFakeActor("alice", "HUMAN")
		reg.Register(host)

		// When: the host opens a room
		reg.HostRoom(host, "my room")

		// Then: the host gets the room id and the room is listed
		require.True(t, host.receivedPrefix("HOSTED;"))
		assert.Contains(t, reg.RoomsPayload(), "|open")
		assert.Contains(t, reg.RoomsPayload(), "my room")
	})

	t.Run("Starts a bot match right away in bot mode", func(t *testing.T) {
		// Given: a host in bot mode
		reg := newTestRegistry()
		host := newFakeActor("alice", "BOT")
		reg.Register(host)

		// When: the host opens a room
		reg.HostRoom(host, "")

		// Then: no room appears, a session starts and the host plays X
		require.True(t, host.receivedPrefix("START;"))
		assert.Equal(t, "X", host.Symbol())
		assert.NotContains(t, reg.RoomsPayload(), "|open")
		assert.Contains(t, reg.RoomsPayload(), "|running")
	})
}

func TestRegistry_JoinRoom(t *testing.T) {
	t.Run("Pairs the joiner with the host", func(t *testing.T) {
		// Given: an open room
		reg := newTestRegistry()
		host := newFakeActor("alice", "HUMAN")
		joiner := newFakeActor("bob", "HUMAN")
		reg.Register(host)
		reg.Register(joiner)
		room := reg.HostRoom(host, "duel")

		// When: a second player joins it
		err := reg.JoinRoom(joiner, room)

		// Then: a match starts, host as X, joiner as O
		require.NoError(t, err)
		assert.Equal(t, "X", host.Symbol())
		assert.Equal(t, "O", joiner.Symbol())
		assert.True(t, joiner.receivedPrefix("START;"))
		assert.True(t, joiner.receivedPrefix("WELCOME;O"))

		// Then: the room is no longer open
		assert.NotContains(t, reg.RoomsPayload(), "|open")
	})

	t.Run("Error on unknown room", func(t *testing.T) {
		reg := newTestRegistry()
		joiner := newFakeActor("bob", "HUMAN")
		reg.Register(joiner)

		err := reg.JoinRoom(joiner, "nope")
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})
}

func TestRegistry_Spectate(t *testing.T) {
	t.Run("Attaches a spectator to a running session", func(t *testing.T) {
		// Given: a running bot match
		reg := newTestRegistry()
		host := newFakeActor("alice", "BOT")
		reg.Register(host)
		session := reg.StartMatch(host, nil, "BOT", 15, nil)

		// When: a spectator attaches
		spectator := newFakeActor("carol", "HUMAN")
		reg.Register(spectator)
		err := reg.Spectate(spectator, session.ID())

		// Then: the spectator is greeted and everyone sees the join
		require.NoError(t, err)
		assert.True(t, spectator.receivedPrefix("SSTART;"+session.ID()))
		assert.True(t, host.receivedPrefix("SJOIN;carol"))
	})

	t.Run("Error on unknown session", func(t *testing.T) {
		reg := newTestRegistry()
		spectator := newFakeActor("carol", "HUMAN")

		err := reg.Spectate(spectator, "nope")
		require.ErrorIs(t, err, apperror.ErrSessionNotFound)
	})
}

func TestRegistry_StartRematch(t *testing.T) {
	// Given: a finished pairing where alice played X and bob O
	reg := newTestRegistry()
	host := newFakeActor("alice", "HUMAN")
	joiner := newFakeActor("bob", "HUMAN")
	reg.Register(host)
	reg.Register(joiner)
	room := reg.HostRoom(host, "")
	require.NoError(t, reg.JoinRoom(joiner, room))
	require.Equal(t, "O", joiner.Symbol())

	// When: bob accepts a rematch
	reg.StartRematch(joiner, host)

	// Then: the sides swap, the previous O opens
	assert.Equal(t, "X", joiner.Symbol())
	assert.Equal(t, "O", host.Symbol())
}

func TestRegistry_ScoreboardPayload(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	scores := &stubScores{entries: []entity.ScoreEntry{
		{Name: "alice", Wins: 3, Losses: 1, Draws: 0, Elo: 1032, TournamentWins: 1},
		{Name: "bob", Wins: 1, Losses: 3, Draws: 0, Elo: 968},
	}}
	reg := New(context.Background(), logger, scores, &stubMoveLog{}, &stubHistory{}, Config{})

	payload, err := reg.ScoreboardPayload(context.Background())

	require.NoError(t, err)
	require.Equal(t, "alice|3|1|0|1032|1,bob|1|3|0|968|0", payload)
}

func TestRegistry_Unregister(t *testing.T) {
	// Given: a host with an open room
	reg := newTestRegistry()
	host := newFakeActor("alice", "HUMAN")
	reg.Register(host)
	reg.HostRoom(host, "")
	require.Contains(t, reg.RoomsPayload(), "|open")

	// When: the host disconnects
	reg.Unregister(host)

	// Then: the room is gone
	require.NotContains(t, reg.RoomsPayload(), "|open")
}
