package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-brain/internal/apperror"
)

const (
	StatusOngoing = "ongoing"
	StatusWon     = "won"
	StatusDrawn   = "drawn"
)

// noCell marks a game in which nobody has moved yet.
const noCell = -1

var WinCombos = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Game is the state machine of a single match. X always moves first.
type Game struct {
	ID         string  `json:"id"`
	Board      Board   `json:"board"`
	Winner     Mark    `json:"winner"`
	Status     string  `json:"status"`
	LastMover  Mark    `json:"last_mover"`
	LastCell   int     `json:"last_cell"`
	Trajectory []Board `json:"trajectory,omitempty"`
}

func NewGame(id string) *Game {
	return &Game{
		ID:        id,
		Board:     EmptyBoard(),
		Winner:    Empty,
		Status:    StatusOngoing,
		LastMover: Empty,
		LastCell:  noCell,
	}
}

// Turn returns the mark that moves next.
func (that *Game) Turn() Mark {
	if that.LastMover == X {
		return O
	}
	return X
}

// MakeMove places the mark whose turn it is at position.
func (that *Game) MakeMove(position int) error {
	if that.IsFinished() {
		return apperror.ErrGameFinished
	}

	if position < 0 || position >= BoardSize {
		return fmt.Errorf("%w: cell %d is out of range", apperror.ErrInvalidMove, position)
	}

	if that.Board[position] != Empty {
		return fmt.Errorf("%w: cell %d is occupied", apperror.ErrInvalidMove, position)
	}

	mark := that.Turn()
	that.Board[position] = mark
	that.LastMover = mark
	that.LastCell = position
	that.Trajectory = append(that.Trajectory, that.Board)

	that.EvaluateTerminal()

	return nil
}

// EvaluateTerminal updates winner and status. Wins are checked before fullness.
func (that *Game) EvaluateTerminal() {
	if winner := that.Board.Winner(); winner != Empty {
		that.Winner = winner
		that.Status = StatusWon
		return
	}

	if that.Board.IsFull() {
		that.Winner = Empty
		that.Status = StatusDrawn
		return
	}

	that.Status = StatusOngoing
}

func (that *Game) ValidMoves() []int {
	return that.Board.EmptyCells()
}

// LastMoveBlockedWin reports whether the last filled cell would have completed
// a line for the opponent of the last mover.
func (that *Game) LastMoveBlockedWin() bool {
	if that.LastCell == noCell {
		return false
	}

	other := that.LastMover.Opponent()
	for _, combo := range WinCombos {
		hits := 0
		onLine := false
		for _, cell := range combo {
			switch {
			case cell == that.LastCell:
				onLine = true
			case that.Board[cell] == other:
				hits++
			}
		}
		if onLine && hits == 2 {
			return true
		}
	}

	return false
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusWon || that.Status == StatusDrawn
}

func (that *Game) IsDraw() bool {
	return that.Status == StatusDrawn
}

func (that *Game) Render() string {
	return that.Board.Render()
}
