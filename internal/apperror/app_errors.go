package apperror

import "errors"

var (
	ErrNotYourTurn        = errors.New("it's not your turn")
	ErrCellOccupied       = errors.New("cell is already occupied")
	ErrInvalidCell        = errors.New("invalid cell coordinates")
	ErrSpectatorForbidden = errors.New("spectators cannot make moves")
	ErrNotInMatch         = errors.New("you are not in a match")

	ErrNoOpponent     = errors.New("no opponent for a rematch")
	ErrNoRematchOffer = errors.New("no rematch offer outstanding")
	ErrMatchStillOn   = errors.New("match is still in progress")

	ErrRoomNotFound    = errors.New("room not found")
	ErrSessionNotFound = errors.New("session not found")

	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTournamentRunning  = errors.New("tournament is already running")
	ErrTournamentFull     = errors.New("tournament is full")
	ErrAlreadyEnrolled    = errors.New("you are already in the tournament")
	ErrNotTournamentHost  = errors.New("only the host can start the tournament")
	ErrTournamentNotFull  = errors.New("tournament does not have enough players yet")
)
