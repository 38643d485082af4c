package entity

import (
	"fmt"

	"github.com/atutic/TicTacToe/internal/apperror"
)

const (
	PlayerX = "X"
	PlayerO = "O"

	// ResultDraw is reported when the board fills without three in a line.
	ResultDraw = "D"
	// ResultNone means the game is still in progress.
	ResultNone = ""

	EmptyCell = ""
)

// BoardSize is fixed; the win condition below assumes a 3x3 grid.
const BoardSize = 3

// winLines enumerates all 8 winning lines as cell coordinates:
// 3 rows, 3 columns and both diagonals.
var winLines = [8][3][2]int{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

// Move is one accepted move, in the order it was played.
type Move struct {
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	Symbol string `json:"symbol"`
}

// Game is the state of one board: the grid and whose turn it is.
// X always opens. All mutation goes through MakeTurn.
type Game struct {
	Board [BoardSize][BoardSize]string
	Turn  string
}

func NewGame() *Game {
	return &Game{Turn: PlayerX}
}

// MakeTurn writes playerMark into the cell and flips the turn marker.
// On any rule violation the board is left untouched.
func (that *Game) MakeTurn(row, col int, playerMark string) error {
	if row < 0 || row >= BoardSize || col < 0 || col >= BoardSize {
		return fmt.Errorf("%w: %d,%d", apperror.ErrInvalidCell, row, col)
	}

	if that.Turn != playerMark {
		return apperror.ErrNotYourTurn
	}

	if that.Board[row][col] != EmptyCell {
		return apperror.ErrCellOccupied
	}

	that.Board[row][col] = playerMark
	that.Turn = OpponentMark(playerMark)

	return nil
}

// DetermineGameResult returns PlayerX or PlayerO for a win, ResultDraw for a
// full board without a winner and ResultNone while the game is in progress.
func (that *Game) DetermineGameResult() string {
	for _, line := range winLines {
		a := that.Board[line[0][0]][line[0][1]]
		b := that.Board[line[1][0]][line[1][1]]
		c := that.Board[line[2][0]][line[2][1]]
		if a != EmptyCell && a == b && b == c {
			return a
		}
	}

	// the game continues until every cell is taken
	for row := range that.Board {
		for col := range that.Board[row] {
			if that.Board[row][col] == EmptyCell {
				return ResultNone
			}
		}
	}

	return ResultDraw
}

// Snapshot returns a copy of the grid for the bot and for spectator catch-up.
func (that *Game) Snapshot() [BoardSize][BoardSize]string {
	return that.Board
}

func OpponentMark(playerMark string) string {
	if playerMark == PlayerX {
		return PlayerO
	}
	return PlayerX
}
