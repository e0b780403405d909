package entity

import (
	"fmt"
	"strings"

	"github.com/rocketscienceinc/tictactoe-brain/internal/apperror"
)

// Mark is the content of a single cell.
type Mark byte

const (
	Empty Mark = '_'
	X     Mark = 'X'
	O     Mark = 'O'
)

// BoardSize is the number of cells on the board.
const BoardSize = 9

// Opponent returns the other player's mark. Empty has no opponent.
func (m Mark) Opponent() Mark {
	switch m {
	case X:
		return O
	case O:
		return X
	default:
		return Empty
	}
}

func (m Mark) String() string {
	if m == Empty {
		return ""
	}
	return string(m)
}

func (m Mark) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mark) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", string(Empty):
		*m = Empty
	case string(X):
		*m = X
	case string(O):
		*m = O
	default:
		return fmt.Errorf("%w: unknown mark %q", apperror.ErrInvalidBoard, text)
	}
	return nil
}

// Board is the 3x3 grid stored row by row.
type Board [BoardSize]Mark

// EmptyBoard returns a board with every cell empty.
func EmptyBoard() Board {
	var b Board
	for i := range b {
		b[i] = Empty
	}
	return b
}

// ParseBoard reads the canonical 9 character form, e.g. "X___O____".
func ParseBoard(s string) (Board, error) {
	var b Board
	if len(s) != BoardSize {
		return b, fmt.Errorf("%w: %q has %d cells", apperror.ErrInvalidBoard, s, len(s))
	}

	var xCount, oCount int
	for i := range BoardSize {
		switch Mark(s[i]) {
		case Empty:
		case X:
			xCount++
		case O:
			oCount++
		default:
			return b, fmt.Errorf("%w: %q has unknown mark %q", apperror.ErrInvalidBoard, s, s[i])
		}
		b[i] = Mark(s[i])
	}

	// X always moves first
	if xCount != oCount && xCount != oCount+1 {
		return b, fmt.Errorf("%w: %q has %d X and %d O", apperror.ErrInvalidBoard, s, xCount, oCount)
	}

	return b, nil
}

func (b Board) String() string {
	var sb strings.Builder
	sb.Grow(BoardSize)
	for _, m := range b {
		sb.WriteByte(byte(m))
	}
	return sb.String()
}

func (b Board) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *Board) UnmarshalText(text []byte) error {
	parsed, err := ParseBoard(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// EmptyCells returns the indices of empty cells in ascending order.
func (b Board) EmptyCells() []int {
	cells := make([]int, 0, BoardSize)
	for i, m := range b {
		if m == Empty {
			cells = append(cells, i)
		}
	}
	return cells
}

// IsFull reports whether no empty cell remains.
func (b Board) IsFull() bool {
	for _, m := range b {
		if m == Empty {
			return false
		}
	}
	return true
}

// With returns a copy of the board with mark placed at cell.
func (b Board) With(cell int, mark Mark) Board {
	b[cell] = mark
	return b
}

// Winner returns the mark that completed a line, or Empty.
func (b Board) Winner() Mark {
	for _, combo := range WinCombos {
		a, c, d := b[combo[0]], b[combo[1]], b[combo[2]]
		if a != Empty && a == c && c == d {
			return a
		}
	}
	return Empty
}

// Render draws the board as three rows, showing the index of every empty cell.
func (b Board) Render() string {
	var sb strings.Builder
	for row := range 3 {
		sb.WriteString("|")
		for col := range 3 {
			i := row*3 + col
			if b[i] == Empty {
				fmt.Fprintf(&sb, " %d |", i)
			} else {
				fmt.Fprintf(&sb, " %c |", b[i])
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
