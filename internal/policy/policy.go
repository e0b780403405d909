// Package policy turns a list of candidate moves into one chosen move.
// Policies never touch the learning state.
package policy

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/rocketscienceinc/tictactoe-brain/internal/agent"
	"github.com/rocketscienceinc/tictactoe-brain/internal/apperror"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// DefaultEpsilon keeps every candidate selectable at the bottom of the scale.
const DefaultEpsilon = 0.01

type Selector interface {
	Select(candidates []agent.Candidate) (agent.Candidate, error)
}

// Exploratory samples candidates with probability proportional to a shifted
// logistic of their min-max scaled reward.
type Exploratory struct {
	mu      sync.Mutex
	epsilon float64
	src     rand.Source
}

func NewExploratory(epsilon float64, src rand.Source) *Exploratory {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Exploratory{epsilon: epsilon, src: src}
}

// Weights returns the unnormalised sampling weight of every candidate.
func (that *Exploratory) Weights(candidates []agent.Candidate) []float64 {
	rewards := make([]float64, len(candidates))
	for i, c := range candidates {
		rewards[i] = c.Reward
	}

	lo, hi := floats.Min(rewards), floats.Max(rewards)

	weights := make([]float64, len(rewards))
	for i, r := range rewards {
		scaled := 0.0
		if hi != lo {
			scaled = (r - lo) / (hi - lo)
		}
		weights[i] = 1/(1+math.Exp(-scaled)) + that.epsilon
	}

	return weights
}

func (that *Exploratory) Select(candidates []agent.Candidate) (agent.Candidate, error) {
	if len(candidates) == 0 {
		return agent.Candidate{}, apperror.ErrEmptyCandidateSet
	}

	weights := that.Weights(candidates)

	that.mu.Lock()
	idx, ok := sampleuv.NewWeighted(weights, that.src).Take()
	that.mu.Unlock()

	if !ok {
		return agent.Candidate{}, fmt.Errorf("failed to sample from %d candidates", len(candidates))
	}

	return candidates[idx], nil
}

// Greedy picks the highest reward, breaking ties uniformly at random.
type Greedy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewGreedy(src rand.Source) *Greedy {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Greedy{rng: rand.New(src)}
}

func (that *Greedy) Select(candidates []agent.Candidate) (agent.Candidate, error) {
	if len(candidates) == 0 {
		return agent.Candidate{}, apperror.ErrEmptyCandidateSet
	}

	best := []int{0}
	for i := 1; i < len(candidates); i++ {
		switch r := candidates[i].Reward; {
		case r > candidates[best[0]].Reward:
			best = []int{i}
		case r == candidates[best[0]].Reward:
			best = append(best, i)
		}
	}

	that.mu.Lock()
	pick := best[that.rng.IntN(len(best))]
	that.mu.Unlock()

	return candidates[pick], nil
}

// Scripted replays a fixed sequence of cells, one per call.
type Scripted struct {
	mu    sync.Mutex
	cells []int
	next  int
}

func NewScripted(cells ...int) *Scripted {
	return &Scripted{cells: cells}
}

func (that *Scripted) Select(candidates []agent.Candidate) (agent.Candidate, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.next >= len(that.cells) {
		return agent.Candidate{}, apperror.ErrScriptExhausted
	}

	cell := that.cells[that.next]
	for _, c := range candidates {
		if c.Cell == cell {
			that.next++
			return c, nil
		}
	}

	return agent.Candidate{}, fmt.Errorf("%w: scripted cell %d is not a candidate", apperror.ErrInvalidMove, cell)
}
