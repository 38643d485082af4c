package service

import (
	"errors"
	"math/rand"

	"github.com/atutic/TicTacToe/internal/entity"
)

var ErrNoAvailableMoves = errors.New("no available moves")

type BotService interface {
	PickMove(board [entity.BoardSize][entity.BoardSize]string, mark, opponentMark string) (int, int, error)
}

type botService struct{}

func NewBotService() BotService {
	return &botService{}
}

// PickMove selects the bot's move on a board snapshot: complete an own line,
// otherwise block the opponent's, otherwise center, otherwise a random free
// corner, otherwise any random free cell.
func (that *botService) PickMove(board [entity.BoardSize][entity.BoardSize]string, mark, opponentMark string) (int, int, error) {
	if row, col, ok := findCompletingCell(board, mark); ok {
		return row, col, nil
	}

	if row, col, ok := findCompletingCell(board, opponentMark); ok {
		return row, col, nil
	}

	if board[1][1] == entity.EmptyCell {
		return 1, 1, nil
	}

	corners := [4][2]int{{0, 0}, {0, 2}, {2, 0}, {2, 2}}
	freeCorners := make([][2]int, 0, len(corners))
	for _, corner := range corners {
		if board[corner[0]][corner[1]] == entity.EmptyCell {
			freeCorners = append(freeCorners, corner)
		}
	}
	if len(freeCorners) > 0 {
		chosen := freeCorners[rand.Intn(len(freeCorners))] //nolint: gosec // it's ok
		return chosen[0], chosen[1], nil
	}

	free := make([][2]int, 0, entity.BoardSize*entity.BoardSize)
	for row := range board {
		for col := range board[row] {
			if board[row][col] == entity.EmptyCell {
				free = append(free, [2]int{row, col})
			}
		}
	}
	if len(free) == 0 {
		return 0, 0, ErrNoAvailableMoves
	}

	chosen := free[rand.Intn(len(free))] //nolint: gosec // it's ok
	return chosen[0], chosen[1], nil
}

// findCompletingCell scans all 8 lines for one holding two cells of mark and
// one empty cell, and returns that empty cell.
func findCompletingCell(board [entity.BoardSize][entity.BoardSize]string, mark string) (int, int, bool) {
	lines := [8][3][2]int{
		{{0, 0}, {0, 1}, {0, 2}},
		{{1, 0}, {1, 1}, {1, 2}},
		{{2, 0}, {2, 1}, {2, 2}},
		{{0, 0}, {1, 0}, {2, 0}},
		{{0, 1}, {1, 1}, {2, 1}},
		{{0, 2}, {1, 2}, {2, 2}},
		{{0, 0}, {1, 1}, {2, 2}},
		{{0, 2}, {1, 1}, {2, 0}},
	}

	for _, line := range lines {
		marks := 0
		emptyRow, emptyCol := -1, -1
		for _, cell := range line {
			switch board[cell[0]][cell[1]] {
			case mark:
				marks++
			case entity.EmptyCell:
				emptyRow, emptyCol = cell[0], cell[1]
			}
		}
		if marks == 2 && emptyRow >= 0 {
			return emptyRow, emptyCol, true
		}
	}

	return 0, 0, false
}
