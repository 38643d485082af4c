package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atutic/TicTacToe/internal/apperror"
	"github.com/atutic/TicTacToe/internal/entity"
	"github.com/atutic/TicTacToe/internal/match"
	"github.com/atutic/TicTacToe/internal/protocol"
	"github.com/atutic/TicTacToe/internal/tournament"
)

// Actor is one connected client as the registry sees it: a bindable match
// participant plus its lobby settings.
type Actor interface {
	match.Participant
	Mode() string
	TimerSec() int
	Symbol() string
}

type ScoreService interface {
	match.ScoreService
	tournament.ScoreService
	Scoreboard(ctx context.Context) ([]entity.ScoreEntry, error)
}

type HistoryLog interface {
	match.HistoryLog
	Query(ctx context.Context, playerFilter, fromDate, toDate string) ([]entity.HistoryRecord, error)
}

type Config struct {
	Match      match.Config
	Tournament tournament.Config
}

type room struct {
	id       string
	name     string
	host     Actor
	mode     string
	timerSec int
}

// Registry is the process-wide directory of connected actors, open rooms,
// active sessions and tournaments. It is the only component holding
// cross-session mutable state; all its maps tolerate concurrent access from
// any number of connection workers.
type Registry struct {
	logger *slog.Logger
	ctx    context.Context

	scores  ScoreService
	moveLog match.MoveLog
	history HistoryLog
	conf    Config

	mu          sync.RWMutex
	clients     map[Actor]struct{}
	rooms       map[string]*room
	sessions    map[string]*match.Session
	tournaments map[string]*tournament.Tournament
}

func New(ctx context.Context, logger *slog.Logger, scores ScoreService, moveLog match.MoveLog, history HistoryLog, conf Config) *Registry {
	return &Registry{
		logger:      logger.With("component", "registry"),
		ctx:         ctx,
		scores:      scores,
		moveLog:     moveLog,
		history:     history,
		conf:        conf,
		clients:     make(map[Actor]struct{}),
		rooms:       make(map[string]*room),
		sessions:    make(map[string]*match.Session),
		tournaments: make(map[string]*tournament.Tournament),
	}
}

func (that *Registry) Register(client Actor) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.clients[client] = struct{}{}
}

// Unregister removes a disconnected client from every registry structure:
// the client set, any room it hosted and any open tournament roster.
func (that *Registry) Unregister(client Actor) {
	that.mu.Lock()
	delete(that.clients, client)
	for id, openRoom := range that.rooms {
		if openRoom.host == client {
			delete(that.rooms, id)
		}
	}
	tournaments := make([]*tournament.Tournament, 0, len(that.tournaments))
	for _, trn := range that.tournaments {
		tournaments = append(tournaments, trn)
	}
	that.mu.Unlock()

	for _, trn := range tournaments {
		trn.Leave(client)
	}
}

// HostRoom opens a room awaiting a second player, or starts a bot match
// right away when the host's play mode is BOT. Returns the room id, empty for
// a bot match.
func (that *Registry) HostRoom(host Actor, name string) string {
	if host.Mode() == "BOT" {
		that.StartMatch(host, nil, "BOT", host.TimerSec(), nil)
		return ""
	}

	openRoom := &room{
		id:       newID(),
		name:     name,
		host:     host,
		mode:     host.Mode(),
		timerSec: host.TimerSec(),
	}

	that.mu.Lock()
	that.rooms[openRoom.id] = openRoom
	that.mu.Unlock()

	host.Send(protocol.Line(protocol.SrvHosted, openRoom.id))

	that.logger.Info("room hosted", "roomID", openRoom.id, "host", host.Name())

	return openRoom.id
}

// JoinRoom pairs the joiner with a waiting host: the host plays X, the
// joiner O.
func (that *Registry) JoinRoom(joiner Actor, roomID string) error {
	that.mu.Lock()
	openRoom, ok := that.rooms[roomID]
	if ok {
		delete(that.rooms, roomID)
	}
	that.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, roomID)
	}

	that.StartMatch(openRoom.host, joiner, openRoom.mode, openRoom.timerSec, nil)

	return nil
}

// Spectate attaches a client to a running (or just-finished) session as a
// read-only observer.
func (that *Registry) Spectate(spectator Actor, sessionID string) error {
	that.mu.RLock()
	session, ok := that.sessions[sessionID]
	that.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", apperror.ErrSessionNotFound, sessionID)
	}

	spectator.Send(protocol.Line(protocol.SrvSpectateStart, session.ID(),
		protocol.Sanitize(session.PlayerXName()), protocol.Sanitize(session.PlayerOName())))
	spectator.BindSpectator(session)
	session.AddSpectator(spectator)

	return nil
}

// StartMatch creates, registers, announces and starts one session. Pass
// o == nil for a bot match. onFinish, when set, receives the result symbol
// exactly once (used by the tournament engine).
func (that *Registry) StartMatch(x, o match.Participant, mode string, timerSec int, onFinish func(winner string)) *match.Session {
	id := newID()

	conf := that.conf.Match
	conf.TurnTimeout = time.Duration(timerSec) * time.Second

	deps := match.Deps{
		Scores:   that.scores,
		MoveLog:  that.moveLog,
		History:  that.history,
		OnFinish: onFinish,
		OnRemove: that.removeSession,
	}

	var oClient match.Client
	if o != nil {
		oClient = o
	}

	session := match.New(that.ctx, that.logger, id, x, oClient, conf, deps)

	that.mu.Lock()
	that.sessions[id] = session
	that.mu.Unlock()

	timer := fmt.Sprint(timerSec)

	x.Send(protocol.Line(protocol.SrvStart, id, entity.PlayerX,
		protocol.Sanitize(session.PlayerOName()), mode, timer))
	x.Send(protocol.Line(protocol.SrvWelcome, entity.PlayerX))
	x.Bind(session, entity.PlayerX, oClient)

	if o != nil {
		o.Send(protocol.Line(protocol.SrvStart, id, entity.PlayerO,
			protocol.Sanitize(x.Name()), mode, timer))
		o.Send(protocol.Line(protocol.SrvWelcome, entity.PlayerO))
		o.Bind(session, entity.PlayerO, x)
	}

	session.Start()

	that.logger.Info("match started", "sessionID", id, "playerX", session.PlayerXName(), "playerO", session.PlayerOName())

	return session
}

// StartRematch starts a fresh session between the same two identities with
// the sides swapped: the previous O opens the new game as X.
func (that *Registry) StartRematch(accepter, offerer Actor) {
	newX, newO := accepter, offerer
	if accepter.Symbol() == entity.PlayerX {
		newX, newO = offerer, accepter
	}

	that.StartMatch(newX, newO, "HUMAN", newX.TimerSec(), nil)
}

// HostTournament opens a new tournament with the host auto-enrolled.
func (that *Registry) HostTournament(host Actor, name string, maxPlayers int) *tournament.Tournament {
	id := newID()

	deps := tournament.Deps{
		Scores: that.scores,
		Spawn: func(x, o tournament.Player, turnTimeout time.Duration, onFinish func(winner string)) *match.Session {
			return that.StartMatch(x, o, "HUMAN", int(turnTimeout/time.Second), onFinish)
		},
		OnComplete: that.removeTournament,
	}

	trn := tournament.New(that.ctx, that.logger, id, name, host, maxPlayers, that.conf.Tournament, deps)

	that.mu.Lock()
	that.tournaments[id] = trn
	that.mu.Unlock()

	host.Send(protocol.Line(protocol.SrvTournamentHosted, id))

	that.logger.Info("tournament hosted", "tournamentID", id, "host", host.Name())

	return trn
}

func (that *Registry) JoinTournament(player Actor, tournamentID string) error {
	trn, err := that.tournamentByID(tournamentID)
	if err != nil {
		return err
	}

	return trn.Join(player)
}

func (that *Registry) StartTournament(player Actor, tournamentID string) error {
	trn, err := that.tournamentByID(tournamentID)
	if err != nil {
		return err
	}

	return trn.Start(player)
}

func (that *Registry) tournamentByID(id string) (*tournament.Tournament, error) {
	that.mu.RLock()
	trn, ok := that.tournaments[id]
	that.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrTournamentNotFound, id)
	}

	return trn, nil
}

// RoomsPayload renders the ROOMS listing: open rooms first, then active and
// just-finished sessions so clients can pick spectate targets.
func (that *Registry) RoomsPayload() string {
	that.mu.RLock()
	rooms := make([]*room, 0, len(that.rooms))
	for _, openRoom := range that.rooms {
		rooms = append(rooms, openRoom)
	}
	sessions := make([]*match.Session, 0, len(that.sessions))
	for _, session := range that.sessions {
		sessions = append(sessions, session)
	}
	that.mu.RUnlock()

	entries := make([]string, 0, len(rooms)+len(sessions))
	for _, openRoom := range rooms {
		entries = append(entries, fmt.Sprintf("%s|%s|%s|%s|%d|open",
			openRoom.id, protocol.Sanitize(openRoom.name), protocol.Sanitize(openRoom.host.Name()),
			openRoom.mode, openRoom.timerSec))
	}
	for _, session := range sessions {
		status := "running"
		if session.Finished() {
			status = "finished"
		}
		entries = append(entries, fmt.Sprintf("%s|%s vs %s|%s|%s|%d|%s",
			session.ID(), protocol.Sanitize(session.PlayerXName()), protocol.Sanitize(session.PlayerOName()),
			protocol.Sanitize(session.PlayerXName()), session.Mode(), session.TimerSeconds(), status))
	}

	return strings.Join(entries, ",")
}

// TournamentsPayload renders the TROOMS listing.
func (that *Registry) TournamentsPayload() string {
	that.mu.RLock()
	tournaments := make([]*tournament.Tournament, 0, len(that.tournaments))
	for _, trn := range that.tournaments {
		tournaments = append(tournaments, trn)
	}
	that.mu.RUnlock()

	entries := make([]string, 0, len(tournaments))
	for _, trn := range tournaments {
		entries = append(entries, trn.Info())
	}

	return strings.Join(entries, ",")
}

// ScoreboardPayload renders the SCOREBOARD listing, ordered by the rating
// service (Elo descending).
func (that *Registry) ScoreboardPayload(ctx context.Context) (string, error) {
	entries, err := that.scores.Scoreboard(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load scoreboard: %w", err)
	}

	rows := make([]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, fmt.Sprintf("%s|%d|%d|%d|%d|%d",
			protocol.Sanitize(entry.Name), entry.Wins, entry.Losses, entry.Draws, entry.Elo, entry.TournamentWins))
	}

	return strings.Join(rows, ","), nil
}

func (that *Registry) History(ctx context.Context, playerFilter, fromDate, toDate string) ([]entity.HistoryRecord, error) {
	records, err := that.history.Query(ctx, playerFilter, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	return records, nil
}

func (that *Registry) removeSession(id string) {
	that.mu.Lock()
	defer that.mu.Unlock()
	delete(that.sessions, id)
}

func (that *Registry) removeTournament(id string) {
	that.mu.Lock()
	defer that.mu.Unlock()
	delete(that.tournaments, id)
}

// newID generates a short opaque id, never reused while live.
func newID() string {
	return uuid.NewString()[:8]
}
