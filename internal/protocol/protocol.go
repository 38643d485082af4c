package protocol

import "strings"

// Separator delimits fields inside one protocol line. The wire format has no
// escaping mechanism, so user text must be passed through Sanitize first.
const Separator = ";"

// Client to server commands.
const (
	CmdLogin    = "LOGIN"    // LOGIN;name
	CmdSettings = "SETTINGS" // SETTINGS;mode;timerSec
	CmdList     = "LIST"
	CmdHost     = "HOST"     // HOST;roomName
	CmdJoin     = "JOIN"     // JOIN;roomId
	CmdSpectate = "SPECTATE" // SPECTATE;sessionId
	CmdMove     = "MOVE"     // MOVE;row;col
	CmdChat     = "CHAT"     // CHAT;text
	CmdScores   = "SCORES"
	CmdHistory  = "HISTORY" // HISTORY;playerFilter;fromDate;toDate
	CmdLeave    = "LEAVE"
	CmdQuit     = "QUIT"

	CmdRematch        = "REMATCH"
	CmdRematchAccept  = "RACCEPT"
	CmdRematchDecline = "RDECL"

	CmdHostTournament  = "THOST"  // THOST;name;maxPlayers
	CmdJoinTournament  = "TJOIN"  // TJOIN;tournamentId
	CmdStartTournament = "TSTART" // TSTART;tournamentId
	CmdListTournaments = "TLIST"
)

// Server to client events.
const (
	SrvWelcome   = "WELCOME"    // WELCOME;symbol
	SrvMessage   = "MESSAGE"    // MESSAGE;text
	SrvError     = "ERROR"      // ERROR;text
	SrvRooms     = "ROOMS"      // ROOMS;id|name|host|mode|timer|status,...
	SrvHosted    = "HOSTED"     // HOSTED;roomId
	SrvStart     = "START"      // START;sessionId;mySymbol;opponentName;mode;timerSec
	SrvTurn      = "TURN"       // TURN;symbol
	SrvValidMove = "VALID_MOVE" // VALID_MOVE;row;col;symbol
	SrvGameOver  = "GAME_OVER"  // GAME_OVER;X|O|D
	SrvChat      = "CHAT"       // CHAT;fromName;text

	SrvRematchOffer    = "ROFFER" // ROFFER;fromName
	SrvRematchDeclined = "RDECL"  // RDECL;reason
	SrvOpponentLeft    = "OLEFT"

	SrvScoreboard  = "SCOREBOARD" // SCOREBOARD;name|wins|losses|draws|elo|tournamentWins,...
	SrvHistoryLine = "HLINE"      // HLINE;timestamp;X;O;winner;moves
	SrvHistoryEnd  = "HEND"

	SrvSpectatorJoined = "SJOIN"  // SJOIN;name
	SrvSpectateStart   = "SSTART" // SSTART;sessionId;playerX;playerO

	SrvTournaments       = "TROOMS" // TROOMS;id|name|host|max|current|status,...
	SrvTournamentHosted  = "THOSTED"
	SrvTournamentStarted = "TSTARTED"
	SrvTournamentMatch   = "TMATCH"  // TMATCH;round;matchIndex;playerX;playerO
	SrvTournamentResult  = "TRESULT" // TRESULT;round;matchIndex;winnerName
	SrvTournamentOver    = "TOVER"   // TOVER;winnerName
	SrvTournamentMsg     = "TMSG"    // TMSG;text
)

// Line assembles one protocol line from its fields.
func Line(fields ...string) string {
	return strings.Join(fields, Separator)
}

// Sanitize substitutes the field separator inside user-provided text.
func Sanitize(text string) string {
	return strings.ReplaceAll(text, Separator, ",")
}
