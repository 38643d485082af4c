package tcp

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"

	"github.com/atutic/TicTacToe/internal/match"
	"github.com/atutic/TicTacToe/internal/protocol"
)

const (
	modeHuman = "HUMAN"
	modeBot   = "BOT"

	symbolSpectator = "S"

	placeholderName = "Player"

	minTimerSec = 3
)

// Client is the connection actor: one goroutine reading and dispatching
// commands sequentially for one socket, holding that connection's identity,
// settings and current match binding.
type Client struct {
	server *Server
	conn   net.Conn

	writeMu sync.Mutex
	writer  *bufio.Writer

	mu       sync.Mutex
	name     string
	mode     string
	timerSec int

	session        *match.Session
	symbol         string
	opponent       match.Client
	rematchOffered bool
}

func newClient(server *Server, conn net.Conn) *Client {
	return &Client{
		server:   server,
		conn:     conn,
		writer:   bufio.NewWriter(conn),
		mode:     modeHuman,
		timerSec: server.defaultTimerSec,
	}
}

// Send delivers one protocol line. Write failures only mean the peer is
// gone; the read loop notices and cleans up.
func (that *Client) Send(line string) {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if _, err := that.writer.WriteString(line + "\n"); err != nil {
		return
	}
	_ = that.writer.Flush()
}

func (that *Client) Name() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	if strings.TrimSpace(that.name) == "" {
		return placeholderName
	}
	return that.name
}

func (that *Client) Mode() string {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.mode
}

func (that *Client) TimerSec() int {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.timerSec
}

func (that *Client) Symbol() string {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.symbol
}

// Bind attaches this actor to a session as a participant.
func (that *Client) Bind(session *match.Session, symbol string, opponent match.Client) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.session = session
	that.symbol = symbol
	that.opponent = opponent
	that.rematchOffered = false
}

// BindSpectator attaches this actor to a session as a read-only observer.
func (that *Client) BindSpectator(session *match.Session) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.session = session
	that.symbol = symbolSpectator
	that.opponent = nil
	that.rematchOffered = false
}

// MatchEnded drops the session binding but keeps symbol and opponent so a
// rematch can still be negotiated.
func (that *Client) MatchEnded() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.session = nil
	that.rematchOffered = false
}

// Detach releases the actor back to an unattached lobby state.
func (that *Client) Detach() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.session = nil
	that.symbol = ""
	that.opponent = nil
	that.rematchOffered = false
}

func (that *Client) currentSession() *match.Session {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.session
}

// peer returns the opponent as a connection actor, nil for bot matches.
func (that *Client) peer() *Client {
	that.mu.Lock()
	defer that.mu.Unlock()

	peer, _ := that.opponent.(*Client)
	return peer
}

func (that *Client) setRematchOffered(offered bool) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.rematchOffered = offered
}

func (that *Client) rematchOfferPending() bool {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.rematchOffered
}

// serve is the connection worker: it reads lines, dispatches commands and
// performs disconnect cleanup when the stream ends.
func (that *Client) serve(ctx context.Context) {
	log := that.server.logger.With("method", "serve", "remote", that.conn.RemoteAddr().String())

	that.server.registry.Register(that)
	that.Send(protocol.Line(protocol.SrvMessage, "connected, please send LOGIN;yourName"))

	scanner := bufio.NewScanner(that.conn)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		parts := strings.Split(line, protocol.Separator)

		handler, ok := that.server.handlers[parts[0]]
		if !ok {
			that.Send(protocol.Line(protocol.SrvError, "unknown command: "+protocol.Sanitize(parts[0])))
			continue
		}

		err := handler(ctx, that, parts)
		if err == errQuit {
			break
		}
		if err != nil {
			that.Send(protocol.Line(protocol.SrvError, protocol.Sanitize(err.Error())))
		}
	}

	that.disconnect()
	if err := that.conn.Close(); err != nil {
		log.Debug("failed to close connection", "error", err)
	}

	log.Info("client disconnected", "name", that.Name())
}

// disconnect handles an actor leaving, expectedly or not: spectators are
// dropped from their session, participants forfeit or abandon the match and
// the peer is released back to the lobby.
func (that *Client) disconnect() {
	that.mu.Lock()
	session := that.session
	symbol := that.symbol
	that.mu.Unlock()

	if symbol == symbolSpectator {
		if session != nil {
			session.RemoveSpectator(that)
		}
		that.server.registry.Unregister(that)
		return
	}

	if session != nil && !session.Finished() {
		session.HandlePeerLoss(that)
	}

	if peer := that.peer(); peer != nil {
		peer.Send(protocol.SrvOpponentLeft)
		peer.Detach()
	}

	that.server.registry.Unregister(that)
}
