package match

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/atutic/TicTacToe/internal/apperror"
	"github.com/atutic/TicTacToe/internal/entity"
	"github.com/atutic/TicTacToe/internal/protocol"
	"github.com/atutic/TicTacToe/internal/service"
)

// BotName is the display name used for the bot side of a match.
const BotName = "BOT"

// Client is one connection attached to a session, as participant or spectator.
type Client interface {
	// Send delivers one protocol line to the client. It must not block on
	// session state.
	Send(line string)
	Name() string
	// MatchEnded clears the client's session binding but keeps its last
	// opponent so a rematch can still be negotiated.
	MatchEnded()
	// Detach releases a spectator back to the lobby.
	Detach()
}

// Participant is a client that can be bound into a session with a symbol.
type Participant interface {
	Client
	Bind(session *Session, symbol string, opponent Client)
	BindSpectator(session *Session)
}

type ScoreService interface {
	RecordResult(ctx context.Context, winner, loser string) error
	RecordDraw(ctx context.Context, a, b string) error
}

type MoveLog interface {
	Load(ctx context.Context, a, b string) ([]entity.Move, error)
	Append(ctx context.Context, a, b string, move entity.Move) error
	Delete(ctx context.Context, a, b string) error
}

type HistoryLog interface {
	Append(ctx context.Context, record entity.HistoryRecord) error
}

// Config carries the per-session timing knobs. Zero values fall back to the
// defaults below, which keeps test sessions fast to construct.
type Config struct {
	TurnTimeout    time.Duration
	BotDelay       time.Duration
	SpectateDelay  time.Duration
	RemoveDelay    time.Duration
}

const (
	defaultTurnTimeout   = 15 * time.Second
	defaultBotDelay      = 400 * time.Millisecond
	defaultSpectateDelay = 500 * time.Millisecond
	defaultRemoveDelay   = 10 * time.Second
)

func (that *Config) applyDefaults() {
	if that.TurnTimeout <= 0 {
		that.TurnTimeout = defaultTurnTimeout
	}
	if that.BotDelay <= 0 {
		that.BotDelay = defaultBotDelay
	}
	if that.SpectateDelay <= 0 {
		that.SpectateDelay = defaultSpectateDelay
	}
	if that.RemoveDelay <= 0 {
		that.RemoveDelay = defaultRemoveDelay
	}
}

// Deps are the session's external collaborators. OnFinish is invoked exactly
// once with the final result symbol; OnRemove fires a fixed delay after the
// session finished so late LIST/SPECTATE requests still see it.
type Deps struct {
	Scores   ScoreService
	MoveLog  MoveLog
	History  HistoryLog
	OnFinish func(winner string)
	OnRemove func(sessionID string)
}

// Session owns one match: board, turn timer, bot scheduling, chat and
// spectator fan-out, and result finalization. All state mutation happens
// under one mutex, held across the whole mutate-then-broadcast step so every
// recipient observes events in the same order.
type Session struct {
	logger *slog.Logger
	id     string

	// ctx is used for collaborator calls triggered by timers, which have no
	// caller-supplied context.
	ctx context.Context

	x       Client
	o       Client // nil when playing against the bot
	botMode bool
	bot     service.BotService
	conf    Config
	deps    Deps

	mu         sync.Mutex
	game       *entity.Game
	finished   bool
	winner     string
	moves      []entity.Move
	spectators map[Client]struct{}
	turnTimer  *time.Timer
	timerEpoch int
	notify     func()
}

// New creates a session between x and o. Pass o == nil for a bot match; the
// bot always plays O. The session is inert until Start is called.
func New(ctx context.Context, logger *slog.Logger, id string, x, o Client, conf Config, deps Deps) *Session {
	conf.applyDefaults()

	return &Session{
		logger:     logger.With("component", "session", "sessionID", id),
		id:         id,
		ctx:        ctx,
		x:          x,
		o:          o,
		botMode:    o == nil,
		bot:        service.NewBotService(),
		conf:       conf,
		deps:       deps,
		game:       entity.NewGame(),
		spectators: make(map[Client]struct{}),
	}
}

func (that *Session) ID() string { return that.id }

func (that *Session) Mode() string {
	if that.botMode {
		return "BOT"
	}
	return "HUMAN"
}

func (that *Session) TimerSeconds() int {
	return int(that.conf.TurnTimeout / time.Second)
}

func (that *Session) Finished() bool {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.finished
}

func (that *Session) Winner() string {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.winner
}

func (that *Session) PlayerX() Client { return that.x }
func (that *Session) PlayerO() Client { return that.o }

func (that *Session) PlayerXName() string { return that.x.Name() }

func (that *Session) PlayerOName() string {
	if that.botMode {
		return BotName
	}
	return that.o.Name()
}

// Start replays any persisted partial game between these two identities,
// announces whose turn it is and arms the first turn timer.
func (that *Session) Start() {
	log := that.logger.With("method", "Start")

	that.mu.Lock()
	defer that.runNotify(that.mu.Unlock)

	saved, err := that.deps.MoveLog.Load(that.ctx, that.PlayerXName(), that.PlayerOName())
	if err != nil {
		log.Error("failed to load saved moves", "error", err)
	}

	for _, move := range saved {
		if err = that.game.MakeTurn(move.Row, move.Col, move.Symbol); err != nil {
			log.Error("skipping corrupt saved move", "error", err)
			continue
		}
		that.moves = append(that.moves, move)
		that.broadcastLocked(protocol.Line(protocol.SrvValidMove,
			fmt.Sprint(move.Row), fmt.Sprint(move.Col), move.Symbol))
	}

	turn := that.game.Turn
	that.broadcastLocked(protocol.Line(protocol.SrvTurn, turn))
	that.armTimerLocked(turn)

	if that.botMode && turn == entity.PlayerO {
		that.scheduleBotLocked()
	}
}

// SubmitMove handles a move coming from a connection. Moves on a finished
// session are silently ignored; the bot submits through its own timer, never
// through here.
func (that *Session) SubmitMove(from Client, row, col int) error {
	that.mu.Lock()
	defer that.runNotify(that.mu.Unlock)

	if that.finished {
		return nil
	}

	var symbol string
	switch {
	case from == that.x:
		symbol = entity.PlayerX
	case !that.botMode && from == that.o:
		symbol = entity.PlayerO
	default:
		return apperror.ErrSpectatorForbidden
	}

	return that.applyMoveLocked(symbol, row, col)
}

// Chat fans a sanitized chat line out to both participants and every
// spectator, with the sender's display name attached.
func (that *Session) Chat(from Client, text string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.broadcastLocked(protocol.Line(protocol.SrvChat, protocol.Sanitize(from.Name()), protocol.Sanitize(text)))
}

// AddSpectator registers the client for all broadcasts and, after a short
// delay for its view to initialize, replays the board cell by cell.
func (that *Session) AddSpectator(spectator Client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.spectators[spectator] = struct{}{}
	that.broadcastLocked(protocol.Line(protocol.SrvSpectatorJoined, protocol.Sanitize(spectator.Name())))

	time.AfterFunc(that.conf.SpectateDelay, func() {
		that.sendCatchUp(spectator)
	})
}

func (that *Session) RemoveSpectator(spectator Client) {
	that.mu.Lock()
	defer that.mu.Unlock()
	delete(that.spectators, spectator)
}

// HandlePeerLoss processes one participant leaving (LEAVE or disconnect).
// A tournament match must report a result, so the remaining side wins by
// forfeit; an ordinary match is abandoned without scoring and its move log
// is kept so the pair can resume later.
func (that *Session) HandlePeerLoss(leaver Client) {
	that.mu.Lock()
	defer that.runNotify(that.mu.Unlock)

	if that.finished {
		return
	}

	if that.deps.OnFinish == nil {
		that.abortLocked()
		return
	}

	winner := entity.PlayerX
	if leaver == that.x {
		winner = entity.PlayerO
	}
	that.finishLocked(winner, "opponent left, "+winner+" wins by forfeit")
}

func (that *Session) applyMoveLocked(symbol string, row, col int) error {
	if err := that.game.MakeTurn(row, col, symbol); err != nil {
		return err
	}

	move := entity.Move{Row: row, Col: col, Symbol: symbol}
	that.moves = append(that.moves, move)

	if err := that.deps.MoveLog.Append(that.ctx, that.PlayerXName(), that.PlayerOName(), move); err != nil {
		that.logger.Error("failed to persist move", "error", err)
	}

	that.broadcastLocked(protocol.Line(protocol.SrvValidMove, fmt.Sprint(row), fmt.Sprint(col), symbol))

	if result := that.game.DetermineGameResult(); result != entity.ResultNone {
		that.finishLocked(result, "")
		return nil
	}

	turn := that.game.Turn
	that.broadcastLocked(protocol.Line(protocol.SrvTurn, turn))
	that.armTimerLocked(turn)

	if that.botMode && turn == entity.PlayerO {
		that.scheduleBotLocked()
	}

	return nil
}

// armTimerLocked cancels any pending turn timer and starts a fresh one. The
// epoch guards against a stale timer that fires between Stop and the lock.
func (that *Session) armTimerLocked(turn string) {
	that.timerEpoch++
	epoch := that.timerEpoch

	if that.turnTimer != nil {
		that.turnTimer.Stop()
	}

	that.turnTimer = time.AfterFunc(that.conf.TurnTimeout, func() {
		that.onTurnTimeout(epoch, turn)
	})
}

func (that *Session) onTurnTimeout(epoch int, turn string) {
	that.mu.Lock()
	defer that.runNotify(that.mu.Unlock)

	if that.finished || epoch != that.timerEpoch {
		return
	}

	winner := entity.OpponentMark(turn)
	that.finishLocked(winner, "turn timer expired, "+turn+" forfeits")
}

func (that *Session) scheduleBotLocked() {
	time.AfterFunc(that.conf.BotDelay, that.makeBotMove)
}

func (that *Session) makeBotMove() {
	log := that.logger.With("method", "makeBotMove")

	that.mu.Lock()
	defer that.runNotify(that.mu.Unlock)

	if that.finished || that.game.Turn != entity.PlayerO {
		return
	}

	row, col, err := that.bot.PickMove(that.game.Snapshot(), entity.PlayerO, entity.PlayerX)
	if err != nil {
		log.Error("bot has no move", "error", err)
		return
	}

	if err = that.applyMoveLocked(entity.PlayerO, row, col); err != nil {
		log.Error("bot move rejected", "error", err)
	}
}

// finishLocked finalizes the match exactly once: scores the result, writes
// the history record, deletes the move log, broadcasts the result, detaches
// spectators and releases both participants for a possible rematch.
func (that *Session) finishLocked(winner, reason string) {
	if that.finished {
		return
	}
	that.finished = true
	that.winner = winner
	that.stopTimerLocked()

	log := that.logger.With("method", "finish", "winner", winner)

	px, po := that.PlayerXName(), that.PlayerOName()

	var err error
	switch winner {
	case entity.ResultDraw:
		err = that.deps.Scores.RecordDraw(that.ctx, px, po)
	case entity.PlayerX:
		err = that.deps.Scores.RecordResult(that.ctx, px, po)
	case entity.PlayerO:
		err = that.deps.Scores.RecordResult(that.ctx, po, px)
	}
	if err != nil {
		log.Error("failed to record result", "error", err)
	}

	record := entity.HistoryRecord{
		Timestamp: time.Now(),
		PlayerX:   px,
		PlayerO:   po,
		Winner:    winner,
		Moves:     compactMoves(that.moves),
	}
	if err = that.deps.History.Append(that.ctx, record); err != nil {
		log.Error("failed to append history record", "error", err)
	}

	if err = that.deps.MoveLog.Delete(that.ctx, px, po); err != nil {
		log.Error("failed to delete move log", "error", err)
	}

	if reason != "" {
		that.broadcastLocked(protocol.Line(protocol.SrvMessage, reason))
	}
	that.broadcastLocked(protocol.Line(protocol.SrvGameOver, winner))

	that.detachSpectatorsLocked()

	that.x.MatchEnded()
	if that.o != nil {
		that.o.MatchEnded()
	}

	if that.deps.OnFinish != nil {
		onFinish := that.deps.OnFinish
		that.notify = func() { onFinish(winner) }
	}

	that.scheduleRemovalLocked()

	log.Info("match finished")
}

// abortLocked ends the match without a result. The move log stays so a later
// match between the same pair resumes where this one stopped.
func (that *Session) abortLocked() {
	that.finished = true
	that.stopTimerLocked()

	for spectator := range that.spectators {
		spectator.Send(protocol.Line(protocol.SrvMessage, "match abandoned"))
	}
	that.detachSpectatorsLocked()

	that.scheduleRemovalLocked()

	that.logger.Info("match abandoned")
}

func (that *Session) detachSpectatorsLocked() {
	for spectator := range that.spectators {
		spectator.Detach()
	}
	that.spectators = make(map[Client]struct{})
}

func (that *Session) scheduleRemovalLocked() {
	if that.deps.OnRemove == nil {
		return
	}

	onRemove, id := that.deps.OnRemove, that.id
	time.AfterFunc(that.conf.RemoveDelay, func() {
		onRemove(id)
	})
}

func (that *Session) stopTimerLocked() {
	that.timerEpoch++
	if that.turnTimer != nil {
		that.turnTimer.Stop()
		that.turnTimer = nil
	}
}

func (that *Session) broadcastLocked(line string) {
	that.x.Send(line)
	if that.o != nil {
		that.o.Send(line)
	}
	for spectator := range that.spectators {
		spectator.Send(line)
	}
}

// sendCatchUp replays the board to one late-joining spectator.
func (that *Session) sendCatchUp(spectator Client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.spectators[spectator]; !ok {
		return
	}

	board := that.game.Snapshot()
	for row := range board {
		for col := range board[row] {
			if board[row][col] == entity.EmptyCell {
				continue
			}
			spectator.Send(protocol.Line(protocol.SrvValidMove,
				fmt.Sprint(row), fmt.Sprint(col), board[row][col]))
		}
	}

	if that.finished {
		spectator.Send(protocol.Line(protocol.SrvGameOver, that.winner))
		return
	}
	spectator.Send(protocol.Line(protocol.SrvTurn, that.game.Turn))
}

// runNotify releases the session lock and then fires the finish listener, if
// finalization armed one, outside the lock. Keeps the lock order
// session -> tournament acyclic.
func (that *Session) runNotify(unlock func()) {
	notify := that.notify
	that.notify = nil
	unlock()

	if notify != nil {
		notify()
	}
}

func compactMoves(moves []entity.Move) string {
	parts := make([]string, 0, len(moves))
	for _, move := range moves {
		parts = append(parts, fmt.Sprintf("%d%d%s", move.Row, move.Col, move.Symbol))
	}
	return strings.Join(parts, "-")
}
