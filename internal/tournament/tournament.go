package tournament

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/atutic/TicTacToe/internal/apperror"
	"github.com/atutic/TicTacToe/internal/entity"
	"github.com/atutic/TicTacToe/internal/match"
	"github.com/atutic/TicTacToe/internal/protocol"
)

// Player is a connection enrolled in a tournament.
type Player = match.Participant

type ScoreService interface {
	RecordTournamentWin(ctx context.Context, name string) error
}

// SpawnFunc starts one bracket match between x and o. The returned session is
// already announced to both players and running; onFinish is invoked exactly
// once with the final result symbol.
type SpawnFunc func(x, o Player, turnTimeout time.Duration, onFinish func(winner string)) *match.Session

type Config struct {
	// TurnTimeout applies to every bracket match regardless of the players'
	// own settings.
	TurnTimeout time.Duration
	// RoundPause is the gap between one round completing and the next one
	// spawning, so spectators and clients can catch up.
	RoundPause time.Duration
	// DrawAdvance names the side that advances from a drawn bracket match,
	// PlayerX unless configured otherwise.
	DrawAdvance string
}

func (that *Config) applyDefaults() {
	if that.TurnTimeout <= 0 {
		that.TurnTimeout = 15 * time.Second
	}
	if that.RoundPause <= 0 {
		that.RoundPause = 2 * time.Second
	}
	if that.DrawAdvance != entity.PlayerO {
		that.DrawAdvance = entity.PlayerX
	}
}

type Deps struct {
	Scores ScoreService
	Spawn  SpawnFunc
	// OnComplete removes the tournament from the registry once a champion
	// is declared.
	OnComplete func(tournamentID string)
}

// Tournament is one single-elimination competition: Open while the roster
// fills, Running while rounds are played, gone once the champion is declared.
type Tournament struct {
	logger *slog.Logger
	ctx    context.Context

	id         string
	name       string
	host       Player
	maxPlayers int
	conf       Config
	deps       Deps

	mu             sync.Mutex
	players        []Player
	eliminated     []Player
	started        bool
	complete       bool
	round          int
	roundPlayers   []Player
	winners        []Player
	matchesInRound int
	matchesDone    int
	roundSessions  []*match.Session
}

// New creates an open tournament. The host is auto-enrolled; maxPlayers is
// normalized up to 2, 4 or 8.
func New(ctx context.Context, logger *slog.Logger, id, name string, host Player, maxPlayers int, conf Config, deps Deps) *Tournament {
	conf.applyDefaults()

	return &Tournament{
		logger:     logger.With("component", "tournament", "tournamentID", id),
		ctx:        ctx,
		id:         id,
		name:       name,
		host:       host,
		maxPlayers: normalizeMax(maxPlayers),
		conf:       conf,
		deps:       deps,
		players:    []Player{host},
	}
}

func normalizeMax(n int) int {
	switch {
	case n <= 2:
		return 2
	case n <= 4:
		return 4
	default:
		return 8
	}
}

func (that *Tournament) ID() string   { return that.id }
func (that *Tournament) Name() string { return that.name }

// Info renders the TROOMS listing fields: id|name|host|max|current|status.
func (that *Tournament) Info() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	status := "open"
	if that.started {
		status = "running"
	}

	return fmt.Sprintf("%s|%s|%s|%d|%d|%s",
		that.id, protocol.Sanitize(that.name), protocol.Sanitize(that.host.Name()),
		that.maxPlayers, len(that.players), status)
}

// Join enrolls a player while the tournament is still open.
func (that *Tournament) Join(player Player) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.started {
		return apperror.ErrTournamentRunning
	}
	if len(that.players) >= that.maxPlayers {
		return apperror.ErrTournamentFull
	}
	for _, enrolled := range that.players {
		if enrolled == player {
			return apperror.ErrAlreadyEnrolled
		}
	}

	that.players = append(that.players, player)
	that.broadcastLocked(protocol.Line(protocol.SrvTournamentMsg,
		fmt.Sprintf("%s joined the tournament (%d/%d)",
			protocol.Sanitize(player.Name()), len(that.players), that.maxPlayers)))

	return nil
}

// Leave drops a player from an open roster. Once running, the roster is
// frozen; an absent player forfeits through the match timer instead.
func (that *Tournament) Leave(player Player) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.started {
		return
	}
	for i, enrolled := range that.players {
		if enrolled == player {
			that.players = append(that.players[:i], that.players[i+1:]...)
			return
		}
	}
}

// Start freezes the roster, shuffles round-one pairings and spawns the first
// round. Only the host may start, and only with a full roster.
func (that *Tournament) Start(by Player) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if by != that.host {
		return apperror.ErrNotTournamentHost
	}
	if that.started {
		return apperror.ErrTournamentRunning
	}
	if len(that.players) < that.maxPlayers {
		return fmt.Errorf("%w: %d of %d", apperror.ErrTournamentNotFull, len(that.players), that.maxPlayers)
	}

	that.started = true
	that.broadcastLocked(protocol.Line(protocol.SrvTournamentStarted, that.id))

	that.roundPlayers = make([]Player, len(that.players))
	copy(that.roundPlayers, that.players)
	rand.Shuffle(len(that.roundPlayers), func(i, j int) {
		that.roundPlayers[i], that.roundPlayers[j] = that.roundPlayers[j], that.roundPlayers[i]
	})

	that.applyByeLocked(1)

	that.round = 1
	that.startRoundLocked()

	return nil
}

// applyByeLocked advances the last player of an odd-sized round without a
// match.
func (that *Tournament) applyByeLocked(round int) {
	if len(that.roundPlayers)%2 == 0 {
		return
	}

	bye := that.roundPlayers[len(that.roundPlayers)-1]
	that.roundPlayers = that.roundPlayers[:len(that.roundPlayers)-1]
	that.winners = append(that.winners, bye)
	bye.Send(protocol.Line(protocol.SrvTournamentMsg,
		fmt.Sprintf("you have a bye in round %d", round)))
}

func (that *Tournament) startRoundLocked() {
	log := that.logger.With("method", "startRound", "round", that.round)

	that.matchesInRound = len(that.roundPlayers) / 2
	that.matchesDone = 0
	that.roundSessions = nil

	that.broadcastLocked(protocol.Line(protocol.SrvTournamentMsg, "=== "+that.roundNameLocked()+" ==="))

	for i := 0; i+1 < len(that.roundPlayers); i += 2 {
		playerX := that.roundPlayers[i]
		playerO := that.roundPlayers[i+1]
		matchIndex := i / 2
		round := that.round

		that.broadcastLocked(protocol.Line(protocol.SrvTournamentMatch,
			fmt.Sprint(round), fmt.Sprint(matchIndex),
			protocol.Sanitize(playerX.Name()), protocol.Sanitize(playerO.Name())))

		session := that.deps.Spawn(playerX, playerO, that.conf.TurnTimeout, func(winner string) {
			that.onMatchFinished(round, matchIndex, playerX, playerO, winner)
		})
		that.roundSessions = append(that.roundSessions, session)
	}

	log.Info("round matches started", "matches", that.matchesInRound)

	// eliminated players watch the first match of the new round
	if len(that.roundSessions) > 0 && len(that.eliminated) > 0 {
		first := that.roundSessions[0]
		for _, spectator := range that.eliminated {
			spectator.Send(protocol.Line(protocol.SrvSpectateStart, first.ID(),
				protocol.Sanitize(first.PlayerXName()), protocol.Sanitize(first.PlayerOName())))
			spectator.BindSpectator(first)
			first.AddSpectator(spectator)
		}
	}
}

// onMatchFinished collects one bracket result. The last match of a round to
// report either spawns the next round or declares the champion.
func (that *Tournament) onMatchFinished(round, matchIndex int, playerX, playerO Player, winnerSymbol string) {
	that.mu.Lock()

	if that.complete || round != that.round {
		that.mu.Unlock()
		return
	}

	winner, loser := playerX, playerO
	switch winnerSymbol {
	case entity.PlayerO:
		winner, loser = playerO, playerX
	case entity.ResultDraw:
		if that.conf.DrawAdvance == entity.PlayerO {
			winner, loser = playerO, playerX
		}
	}

	that.winners = append(that.winners, winner)
	that.eliminated = append(that.eliminated, loser)
	that.matchesDone++

	that.broadcastLocked(protocol.Line(protocol.SrvTournamentResult,
		fmt.Sprint(round), fmt.Sprint(matchIndex), protocol.Sanitize(winner.Name())))

	if that.matchesDone < that.matchesInRound {
		that.mu.Unlock()
		return
	}

	if len(that.winners) == 1 {
		that.declareChampionLocked(winner)
		onComplete, id := that.deps.OnComplete, that.id
		that.mu.Unlock()

		if onComplete != nil {
			onComplete(id)
		}
		return
	}

	that.round++
	that.roundPlayers = that.winners
	that.winners = nil
	that.applyByeLocked(that.round)

	// brief pause so spectators and clients catch up before the next round
	time.AfterFunc(that.conf.RoundPause, func() {
		that.mu.Lock()
		defer that.mu.Unlock()
		that.startRoundLocked()
	})

	that.mu.Unlock()
}

func (that *Tournament) declareChampionLocked(champion Player) {
	log := that.logger.With("method", "declareChampion", "champion", champion.Name())

	that.complete = true

	if err := that.deps.Scores.RecordTournamentWin(that.ctx, champion.Name()); err != nil {
		log.Error("failed to record tournament win", "error", err)
	}

	that.broadcastLocked(protocol.Line(protocol.SrvTournamentOver, protocol.Sanitize(champion.Name())))

	log.Info("tournament complete")
}

func (that *Tournament) roundNameLocked() string {
	remaining := len(that.roundPlayers) + len(that.winners)
	switch {
	case remaining <= 2:
		return "final"
	case remaining <= 4:
		return "semifinal"
	case remaining <= 8:
		return "quarterfinal"
	default:
		return fmt.Sprintf("round %d", that.round)
	}
}

func (that *Tournament) broadcastLocked(line string) {
	for _, player := range that.players {
		player.Send(line)
	}
}
