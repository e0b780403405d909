package agent

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-brain/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-brain/internal/brain"
	"github.com/rocketscienceinc/tictactoe-brain/internal/entity"
)

// Candidate is one move the agent could make next.
type Candidate struct {
	Target entity.Board
	Cell   int
	Reward float64
}

type Option func(a *Agent)

func WithFalloff(falloff float64) Option {
	return func(a *Agent) {
		a.falloff = falloff
	}
}

// Agent plays one mark and learns into its own store. The move history belongs
// to the current match only; the store outlives it.
type Agent struct {
	mark    entity.Mark
	store   *brain.Store
	falloff float64
	history []entity.Board
}

func New(mark entity.Mark, store *brain.Store, options ...Option) *Agent {
	a := &Agent{
		mark:    mark,
		store:   store,
		falloff: brain.DefaultFalloff,
	}
	for _, option := range options {
		option(a)
	}
	return a
}

func (that *Agent) Mark() entity.Mark {
	return that.mark
}

func (that *Agent) Store() *brain.Store {
	return that.store
}

// Observe appends a board reached in the current match and records the path.
func (that *Agent) Observe(state entity.Board) {
	that.history = append(that.history, state)
	that.store.Record(that.history)
}

// History returns a copy of the boards observed so far.
func (that *Agent) History() []entity.Board {
	return append([]entity.Board(nil), that.history...)
}

func (that *Agent) Reset() {
	that.history = nil
}

// Resume continues a match already in progress. Unlike Observe it does not
// record the path, so a bot that only plays leaves the store untouched.
func (that *Agent) Resume(history []entity.Board) {
	that.history = append([]entity.Board(nil), history...)
}

// CurrentBoard is the last observed board, or the empty board before any move.
func (that *Agent) CurrentBoard() entity.Board {
	if len(that.history) == 0 {
		return entity.EmptyBoard()
	}
	return that.history[len(that.history)-1]
}

// CandidateMoves lists every empty cell in ascending order together with the
// reward the store holds for reaching the resulting board.
func (that *Agent) CandidateMoves() ([]Candidate, error) {
	current := that.CurrentBoard()

	cells := current.EmptyCells()
	if len(cells) == 0 {
		return nil, fmt.Errorf("%w: board %s", apperror.ErrEmptyCandidateSet, current)
	}

	next := make([]entity.Board, len(that.history)+1)
	copy(next, that.history)

	candidates := make([]Candidate, 0, len(cells))
	for _, cell := range cells {
		target := current.With(cell, that.mark)
		next[len(next)-1] = target

		candidates = append(candidates, Candidate{
			Target: target,
			Cell:   cell,
			Reward: that.store.Lookup(next),
		})
	}

	return candidates, nil
}

// PropagateReward credits the moves of the current match. The history is kept
// when resetHistory is false so a later terminal reward still reaches the start.
func (that *Agent) PropagateReward(total float64, resetHistory bool) error {
	if err := that.store.Propagate(that.history, total, that.falloff); err != nil {
		return fmt.Errorf("failed to propagate reward for %s: %w", that.mark, err)
	}

	if resetHistory {
		that.Reset()
	}

	return nil
}
