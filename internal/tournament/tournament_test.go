package tournament

import (
	"context"
	"fmt"
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

type fakePlayer struct {
	name string

	mu    sync.Mutex
	lines []string
}

func newFakePlayer(name string) *fakePlayer {
	return &fakePlayer{name: name}
}

func (that *fakePlayer) Send(line string) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.lines = append(that.lines, line)
}

func (that *fakePlayer) Name() string { return that.name }
func (that *fakePlayer) MatchEnded()  {}
func (that *fakePlayer) Detach()      {}

func (that *fakePlayer) Bind(_ *match.Session, _ string, _ match.Client) {}
func (that *fakePlayer) BindSpectator(_ *match.Session)                  {}

func (that *fakePlayer) receivedPrefix(prefix string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()
	for _, line := range that.lines {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

type fakeTournamentScores struct {
	mu   sync.Mutex
	wins []string
}

func (that *fakeTournamentScores) RecordTournamentWin(_ context.Context, name string) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.wins = append(that.wins, name)
	return nil
}

func (that *fakeTournamentScores) Wins() []string {
	that.mu.Lock()
	defer that.mu.Unlock()
	return append([]string(nil), that.wins...)
}

type spawnedMatch struct {
	x, o     Player
	onFinish func(winner string)
}

// fakeSpawner captures bracket matches instead of running them; the test
// reports results by calling the captured callbacks.
type fakeSpawner struct {
	mu      sync.Mutex
	matches []spawnedMatch
}

func (that *fakeSpawner) spawn(x, o Player, _ time.Duration, onFinish func(winner string)) *match.Session {
	that.mu.Lock()
	defer that.mu.Unlock()

	id := fmt.Sprintf("m%d", len(that.matches))
	that.matches = append(that.matches, spawnedMatch{x: x, o: o, onFinish: onFinish})

	return match.New(context.Background(), testLogger(), id, x, o, match.Config{}, match.Deps{})
}

func (that *fakeSpawner) count() int {
	that.mu.Lock()
	defer that.mu.Unlock()
	return len(that.matches)
}

func (that *fakeSpawner) at(i int) spawnedMatch {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.matches[i]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTournament(host Player, maxPlayers int) (*Tournament, *fakeSpawner, *fakeTournamentScores, *[]string) {
	spawner := &fakeSpawner{}
	scores := &fakeTournamentScores{}
	completed := &[]string{}

	conf := Config{
		TurnTimeout: time.Second,
		RoundPause:  5 * time.Millisecond,
	}
	deps := Deps{
		Scores: scores,
		Spawn:  spawner.spawn,
		OnComplete: func(id string) {
			*completed = append(*completed, id)
		},
	}

	return New(context.Background(), testLogger(), "t1", "Weekly Cup", host, maxPlayers, conf, deps), spawner, scores, completed
}

func TestTournament_Join(t *testing.T) {
	t.Run("Enrolls players up to the cap", func(t *testing.T) {
		// Given: an open 4 player tournament with the host enrolled
		host := newFakePlayer("alice")
		trn, _, _, _ := newTestTournament(host, 4)

		// When: three more players join
		for _, name := range []string{"bob", "carol", "dave"} {
			require.NoError(t, trn.Join(newFakePlayer(name)))
		}

		// Then: a fifth player is rejected
		err := trn.Join(newFakePlayer("eve"))
		require.ErrorIs(t, err, apperror.ErrTournamentFull)

		// Then: enrolled players are announced to the roster
		assert.True(t, host.receivedPrefix("TMSG;"))
	})

	t.Run("Rejects a duplicate enrollment", func(t *testing.T) {
		host := newFakePlayer("alice")
		trn, _, _, _ := newTestTournament(host, 4)

		bob := newFakePlayer("bob")
		require.NoError(t, trn.Join(bob))

		err := trn.Join(bob)
		require.ErrorIs(t, err, apperror.ErrAlreadyEnrolled)
	})

	t.Run("Rejects joining a running tournament", func(t *testing.T) {
		host := newFakePlayer("alice")
		trn, _, _, _ := newTestTournament(host, 2)
		require.NoError(t, trn.Join(newFakePlayer("bob")))
		require.NoError(t, trn.Start(host))

		err := trn.Join(newFakePlayer("carol"))
		require.ErrorIs(t, err, apperror.ErrTournamentRunning)
	})
}

func TestTournament_Start(t *testing.T) {
	t.Run("Only the host may start", func(t *testing.T) {
		host := newFakePlayer("alice")
		trn, _, _, _ := newTestTournament(host, 2)
		bob := newFakePlayer("bob")
		require.NoError(t, trn.Join(bob))

		err := trn.Start(bob)
		require.ErrorIs(t, err, apperror.ErrNotTournamentHost)
	})

	t.Run("Requires a full roster", func(t *testing.T) {
		host := newFakePlayer("alice")
		trn, _, _, _ := newTestTournament(host, 4)
		require.NoError(t, trn.Join(newFakePlayer("bob")))

		err := trn.Start(host)
		require.ErrorIs(t, err, apperror.ErrTournamentNotFull)
	})

	t.Run("Spawns one match per pair", func(t *testing.T) {
		// Given: a full 4 player tournament
		host := newFakePlayer("alice")
		trn, spawner, _, _ := newTestTournament(host, 4)
		for _, name := range []string{"bob", "carol", "dave"} {
			require.NoError(t, trn.Join(newFakePlayer(name)))
		}

		// When: the host starts it
		require.NoError(t, trn.Start(host))

		// Then: the first round has two matches and everyone was told
		require.Equal(t, 2, spawner.count())
		assert.True(t, host.receivedPrefix("TSTARTED;"))
		assert.True(t, host.receivedPrefix("TMATCH;"))
	})
}

func TestTournament_Bracket(t *testing.T) {
	t.Run("Plays through to a champion", func(t *testing.T) {
		// Given: a started 4 player tournament
		host := newFakePlayer("alice")
		trn, spawner, scores, completed := newTestTournament(host, 4)
		for _, name := range []string{"bob", "carol", "dave"} {
			require.NoError(t, trn.Join(newFakePlayer(name)))
		}
		require.NoError(t, trn.Start(host))
		require.Equal(t, 2, spawner.count())

		// When: X wins both semifinals
		spawner.at(0).onFinish(entity.PlayerX)
		spawner.at(1).onFinish(entity.PlayerX)

		// Then: the final spawns after the round pause, pairing the winners
		require.Eventually(t, func() bool {
			return spawner.count() == 3
		}, time.Second, time.Millisecond)

		final := spawner.at(2)
		assert.Equal(t, spawner.at(0).x, final.x)
		assert.Equal(t, spawner.at(1).x, final.o)

		// When: O wins the final
		final.onFinish(entity.PlayerO)

		// Then: the champion is recorded exactly once and the bracket closes
		champion := final.o.Name()
		require.Equal(t, []string{champion}, scores.Wins())
		assert.True(t, host.receivedPrefix("TOVER;"+champion))
		require.Equal(t, []string{"t1"}, *completed)
	})

	t.Run("A drawn match advances X", func(t *testing.T) {
		host := newFakePlayer("alice")
		trn, spawner, scores, _ := newTestTournament(host, 2)
		require.NoError(t, trn.Join(newFakePlayer("bob")))
		require.NoError(t, trn.Start(host))
		require.Equal(t, 1, spawner.count())

		// When: the only match is a draw
		first := spawner.at(0)
		first.onFinish(entity.ResultDraw)

		// Then: the X side is the champion
		require.Equal(t, []string{first.x.Name()}, scores.Wins())
	})

	t.Run("Ignores a stale result after the round advanced", func(t *testing.T) {
		host := newFakePlayer("alice")
		trn, spawner, scores, _ := newTestTournament(host, 2)
		require.NoError(t, trn.Join(newFakePlayer("bob")))
		require.NoError(t, trn.Start(host))

		first := spawner.at(0)
		first.onFinish(entity.PlayerX)

		// When: the same match reports again
		first.onFinish(entity.PlayerO)

		// Then: only the first result counted
		require.Equal(t, []string{first.x.Name()}, scores.Wins())
	})
}

func TestTournament_Bye(t *testing.T) {
	// Given: a running round with an odd participant list
	host := newFakePlayer("alice")
	trn, spawner, _, _ := newTestTournament(host, 4)
	bob := newFakePlayer("bob")
	carol := newFakePlayer("carol")

	trn.mu.Lock()
	trn.players = []Player{host, bob, carol}
	trn.started = true
	trn.round = 1
	trn.roundPlayers = []Player{host, bob, carol}

	// When: the bye is applied and the round spawns
	trn.applyByeLocked(1)
	trn.startRoundLocked()
	trn.mu.Unlock()

	// Then: only the even pair gets a match
	require.Equal(t, 1, spawner.count())
	paired := spawner.at(0)
	assert.Equal(t, Player(host), paired.x)
	assert.Equal(t, Player(bob), paired.o)

	// Then: the odd player out advances without playing and is told so
	trn.mu.Lock()
	winners := append([]Player(nil), trn.winners...)
	trn.mu.Unlock()
	require.Equal(t, []Player{carol}, winners)
	assert.True(t, carol.receivedPrefix("TMSG;you have a bye in round 1"))
}

func TestTournament_Info(t *testing.T) {
	host := newFakePlayer("alice")
	trn, _, _, _ := newTestTournament(host, 4)
	require.NoError(t, trn.Join(newFakePlayer("bob")))

	require.Equal(t, "t1|Weekly Cup|alice|4|2|open", trn.Info())
}

func TestTournament_Leave(t *testing.T) {
	host := newFakePlayer("alice")
	trn, _, _, _ := newTestTournament(host, 4)
	bob := newFakePlayer("bob")
	require.NoError(t, trn.Join(bob))

	// When: bob leaves while the tournament is still open
	trn.Leave(bob)

	// Then: his slot frees up
	require.NoError(t, trn.Join(newFakePlayer("carol")))
	require.NoError(t, trn.Join(newFakePlayer("dave")))
	require.NoError(t, trn.Join(newFakePlayer("erin")))
}
