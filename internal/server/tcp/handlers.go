package tcp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/atutic/TicTacToe/internal/apperror"
	"github.com/atutic/TicTacToe/internal/protocol"
)

// errQuit signals a clean client-requested shutdown of the read loop.
var errQuit = errors.New("client quit")

var errBadCoordinates = errors.New("invalid coordinate format")

const historyTimestampFormat = "2006-01-02T15:04:05"

func (that *Server) registerHandlers() {
	that.handlers[protocol.CmdLogin] = that.handleLogin
	that.handlers[protocol.CmdSettings] = that.handleSettings

	that.handlers[protocol.CmdList] = that.handleList
	that.handlers[protocol.CmdHost] = that.handleHost
	that.handlers[protocol.CmdJoin] = that.handleJoin
	that.handlers[protocol.CmdSpectate] = that.handleSpectate

	that.handlers[protocol.CmdMove] = that.handleMove
	that.handlers[protocol.CmdChat] = that.handleChat
	that.handlers[protocol.CmdLeave] = that.handleLeave

	that.handlers[protocol.CmdRematch] = that.handleRematchOffer
	that.handlers[protocol.CmdRematchAccept] = that.handleRematchAccept
	that.handlers[protocol.CmdRematchDecline] = that.handleRematchDecline

	that.handlers[protocol.CmdScores] = that.handleScores
	that.handlers[protocol.CmdHistory] = that.handleHistory

	that.handlers[protocol.CmdHostTournament] = that.handleHostTournament
	that.handlers[protocol.CmdJoinTournament] = that.handleJoinTournament
	that.handlers[protocol.CmdStartTournament] = that.handleStartTournament
	that.handlers[protocol.CmdListTournaments] = that.handleListTournaments

	that.handlers[protocol.CmdQuit] = func(_ context.Context, _ *Client, _ []string) error {
		return errQuit
	}
}

func (that *Server) handleLogin(_ context.Context, client *Client, parts []string) error {
	name := ""
	if len(parts) >= 2 {
		name = strings.TrimSpace(protocol.Sanitize(parts[1]))
	}

	client.mu.Lock()
	client.name = name
	client.mu.Unlock()

	if name == "" {
		client.Send(protocol.Line(protocol.SrvMessage, "login invalid, you are '"+placeholderName+"'"))
		return nil
	}

	client.Send(protocol.Line(protocol.SrvMessage, "login successful: "+name))

	return nil
}

func (that *Server) handleSettings(_ context.Context, client *Client, parts []string) error {
	client.mu.Lock()
	if len(parts) >= 2 && strings.TrimSpace(parts[1]) != "" {
		mode := strings.ToUpper(strings.TrimSpace(parts[1]))
		if mode != modeHuman && mode != modeBot {
			client.mu.Unlock()
			return fmt.Errorf("unknown mode %q, expected %s or %s", mode, modeHuman, modeBot)
		}
		client.mode = mode
	}
	if len(parts) >= 3 {
		if timerSec, err := strconv.Atoi(strings.TrimSpace(parts[2])); err == nil {
			if timerSec < minTimerSec {
				timerSec = minTimerSec
			}
			client.timerSec = timerSec
		}
	}
	mode, timerSec := client.mode, client.timerSec
	client.mu.Unlock()

	client.Send(protocol.Line(protocol.SrvMessage, fmt.Sprintf("settings: %s, %ds", mode, timerSec)))

	return nil
}

func (that *Server) handleList(_ context.Context, client *Client, _ []string) error {
	client.Send(protocol.Line(protocol.SrvRooms, that.registry.RoomsPayload()))
	return nil
}

func (that *Server) handleHost(_ context.Context, client *Client, parts []string) error {
	name := ""
	if len(parts) >= 2 {
		name = strings.TrimSpace(protocol.Sanitize(parts[1]))
	}

	that.registry.HostRoom(client, name)

	return nil
}

func (that *Server) handleJoin(_ context.Context, client *Client, parts []string) error {
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return errors.New("JOIN requires a room id")
	}

	return that.registry.JoinRoom(client, strings.TrimSpace(parts[1]))
}

func (that *Server) handleSpectate(_ context.Context, client *Client, parts []string) error {
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return errors.New("SPECTATE requires a session id")
	}

	return that.registry.Spectate(client, strings.TrimSpace(parts[1]))
}

func (that *Server) handleMove(_ context.Context, client *Client, parts []string) error {
	session := client.currentSession()
	if session == nil {
		return apperror.ErrNotInMatch
	}

	if len(parts) < 3 {
		return errBadCoordinates
	}

	row, errRow := strconv.Atoi(strings.TrimSpace(parts[1]))
	col, errCol := strconv.Atoi(strings.TrimSpace(parts[2]))
	if errRow != nil || errCol != nil {
		return errBadCoordinates
	}

	return session.SubmitMove(client, row, col)
}

func (that *Server) handleChat(_ context.Context, client *Client, parts []string) error {
	if len(parts) < 2 {
		return nil
	}

	text := strings.TrimSpace(protocol.Sanitize(parts[1]))
	if text == "" {
		return nil
	}

	// an active session fans chat out to both sides and all spectators
	if session := client.currentSession(); session != nil {
		session.Chat(client, text)
		return nil
	}

	// match over but the opponent reference survives for the rematch
	// negotiation: route the line directly
	if peer := client.peer(); peer != nil {
		line := protocol.Line(protocol.SrvChat, protocol.Sanitize(client.Name()), text)
		client.Send(line)
		peer.Send(line)
	}

	return nil
}

// handleLeave returns the client to the lobby: an implicit rematch decline
// plus, if the match is still running, its forced termination. A spectator
// only detaches from the session it watches.
func (that *Server) handleLeave(_ context.Context, client *Client, _ []string) error {
	session := client.currentSession()

	if client.Symbol() == symbolSpectator {
		if session != nil {
			session.RemoveSpectator(client)
		}
		client.Detach()
		client.Send(protocol.Line(protocol.SrvMessage, "back in the lobby"))
		client.Send(protocol.Line(protocol.SrvRooms, that.registry.RoomsPayload()))
		return nil
	}

	peer := client.peer()

	if peer != nil {
		peer.Send(protocol.Line(protocol.SrvRematchDeclined, "opponent went back to the lobby"))
	}

	if session != nil && !session.Finished() {
		session.HandlePeerLoss(client)
	}

	if peer != nil {
		peer.Send(protocol.SrvOpponentLeft)
		peer.Detach()
	}

	client.Detach()
	client.Send(protocol.Line(protocol.SrvMessage, "back in the lobby"))
	client.Send(protocol.Line(protocol.SrvRooms, that.registry.RoomsPayload()))

	return nil
}

func (that *Server) handleRematchOffer(_ context.Context, client *Client, _ []string) error {
	peer := client.peer()
	if peer == nil {
		return apperror.ErrNoOpponent
	}

	peer.setRematchOffered(true)
	peer.Send(protocol.Line(protocol.SrvRematchOffer, protocol.Sanitize(client.Name())))
	client.Send(protocol.Line(protocol.SrvMessage, "rematch offer sent"))

	return nil
}

func (that *Server) handleRematchAccept(_ context.Context, client *Client, _ []string) error {
	peer := client.peer()
	if peer == nil {
		return apperror.ErrNoOpponent
	}
	if client.currentSession() != nil {
		return apperror.ErrMatchStillOn
	}
	if !client.rematchOfferPending() {
		return apperror.ErrNoRematchOffer
	}

	client.setRematchOffered(false)
	that.registry.StartRematch(client, peer)

	return nil
}

func (that *Server) handleRematchDecline(_ context.Context, client *Client, _ []string) error {
	if peer := client.peer(); peer != nil {
		peer.Send(protocol.Line(protocol.SrvRematchDeclined, "rematch declined"))
	}

	client.setRematchOffered(false)

	return nil
}

func (that *Server) handleScores(ctx context.Context, client *Client, _ []string) error {
	payload, err := that.registry.ScoreboardPayload(ctx)
	if err != nil {
		that.logger.Error("failed to build scoreboard", "error", err)
		return errors.New("scoreboard unavailable")
	}

	client.Send(protocol.Line(protocol.SrvScoreboard, payload))

	return nil
}

func (that *Server) handleHistory(ctx context.Context, client *Client, parts []string) error {
	playerFilter, fromDate, toDate := "", "", ""
	if len(parts) >= 2 {
		playerFilter = strings.TrimSpace(parts[1])
	}
	if len(parts) >= 3 {
		fromDate = strings.TrimSpace(parts[2])
	}
	if len(parts) >= 4 {
		toDate = strings.TrimSpace(parts[3])
	}

	records, err := that.registry.History(ctx, playerFilter, fromDate, toDate)
	if err != nil {
		that.logger.Error("failed to query history", "error", err)
		return errors.New("history unavailable")
	}

	for _, record := range records {
		client.Send(protocol.Line(protocol.SrvHistoryLine,
			record.Timestamp.Format(historyTimestampFormat),
			protocol.Sanitize(record.PlayerX), protocol.Sanitize(record.PlayerO),
			record.Winner, record.Moves))
	}
	client.Send(protocol.SrvHistoryEnd)

	return nil
}

func (that *Server) handleHostTournament(_ context.Context, client *Client, parts []string) error {
	name := "Tournament"
	if len(parts) >= 2 && strings.TrimSpace(parts[1]) != "" {
		name = strings.TrimSpace(protocol.Sanitize(parts[1]))
	}

	maxPlayers := 4
	if len(parts) >= 3 {
		if parsed, err := strconv.Atoi(strings.TrimSpace(parts[2])); err == nil {
			maxPlayers = parsed
		}
	}

	that.registry.HostTournament(client, name, maxPlayers)

	return nil
}

func (that *Server) handleJoinTournament(_ context.Context, client *Client, parts []string) error {
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return errors.New("TJOIN requires a tournament id")
	}

	return that.registry.JoinTournament(client, strings.TrimSpace(parts[1]))
}

func (that *Server) handleStartTournament(_ context.Context, client *Client, parts []string) error {
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return errors.New("TSTART requires a tournament id")
	}

	return that.registry.StartTournament(client, strings.TrimSpace(parts[1]))
}

func (that *Server) handleListTournaments(_ context.Context, client *Client, _ []string) error {
	client.Send(protocol.Line(protocol.SrvTournaments, that.registry.TournamentsPayload()))
	return nil
}
