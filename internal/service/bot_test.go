package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atutic/TicTacToe/internal/entity"
)

func TestBotService_PickMove(t *testing.T) {
	bot := NewBotService()

	t.Run("Completes own winning line", func(t *testing.T) {
		// Given: O has two in the top row and X threatens a column
		board := [3][3]string{
			{"O", "O", ""},
			{"X", "", ""},
			{"X", "", ""},
		}

		// When: the bot picks a move
		row, col, err := bot.PickMove(board, entity.PlayerO, entity.PlayerX)

		// Then: it finishes its own line instead of blocking
		require.NoError(t, err)
		assert.Equal(t, 0, row)
		assert.Equal(t, 2, col)
	})

	t.Run("Blocks the opponent", func(t *testing.T) {
		// Given: X has two in the left column, O cannot win this turn
		board := [3][3]string{
			{"X", "", ""},
			{"X", "", "O"},
			{"", "", ""},
		}

		// When: the bot picks a move
		row, col, err := bot.PickMove(board, entity.PlayerO, entity.PlayerX)

		// Then: it blocks the column
		require.NoError(t, err)
		assert.Equal(t, 2, row)
		assert.Equal(t, 0, col)
	})

	t.Run("Takes the center when free", func(t *testing.T) {
		board := [3][3]string{
			{"X", "", ""},
			{"", "", ""},
			{"", "", ""},
		}

		row, col, err := bot.PickMove(board, entity.PlayerO, entity.PlayerX)

		require.NoError(t, err)
		assert.Equal(t, 1, row)
		assert.Equal(t, 1, col)
	})

	t.Run("Takes a corner when the center is gone", func(t *testing.T) {
		// Given: no line to complete or block, center occupied
		board := [3][3]string{
			{"", "", ""},
			{"", "X", ""},
			{"", "", ""},
		}

		row, col, err := bot.PickMove(board, entity.PlayerO, entity.PlayerX)

		// Then: one of the four corners is chosen
		require.NoError(t, err)
		assert.Contains(t, [][2]int{{0, 0}, {0, 2}, {2, 0}, {2, 2}}, [2]int{row, col})
	})

	t.Run("Falls back to any free cell", func(t *testing.T) {
		// Given: center and all corners occupied
		board := [3][3]string{
			{"X", "", "O"},
			{"", "O", ""},
			{"X", "", "X"},
		}

		row, col, err := bot.PickMove(board, entity.PlayerO, entity.PlayerX)

		require.NoError(t, err)
		assert.Equal(t, entity.EmptyCell, board[row][col])
	})

	t.Run("Error on a full board", func(t *testing.T) {
		board := [3][3]string{
			{"X", "O", "X"},
			{"X", "O", "O"},
			{"O", "X", "X"},
		}

		_, _, err := bot.PickMove(board, entity.PlayerO, entity.PlayerX)

		require.ErrorIs(t, err, ErrNoAvailableMoves)
	})
}
