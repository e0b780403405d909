package policy

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/rocketscienceinc/tictactoe-brain/internal/agent"
	"github.com/rocketscienceinc/tictactoe-brain/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const trials = 20000

func candidates(rewards ...float64) []agent.Candidate {
	out := make([]agent.Candidate, len(rewards))
	for i, r := range rewards {
		out[i] = agent.Candidate{Cell: i, Reward: r}
	}
	return out
}

// uniformPValue returns the chi-square goodness of fit p-value of counts
// against a uniform distribution.
func uniformPValue(counts []float64) float64 {
	total := 0.0
	for _, c := range counts {
		total += c
	}

	expected := make([]float64, len(counts))
	for i := range expected {
		expected[i] = total / float64(len(counts))
	}

	chi := stat.ChiSquare(counts, expected)
	return distuv.ChiSquared{K: float64(len(counts) - 1)}.Survival(chi)
}

func TestExploratory_Weights(t *testing.T) {
	t.Run("Equal rewards give equal weights", func(t *testing.T) {
		p := NewExploratory(DefaultEpsilon, rand.NewPCG(1, 2))

		weights := p.Weights(candidates(0.3, 0.3, 0.3))

		for _, w := range weights {
			assert.InDelta(t, 0.5+DefaultEpsilon, w, 1e-12)
		}
	})

	t.Run("Min-max scaling then shifted logistic", func(t *testing.T) {
		p := NewExploratory(DefaultEpsilon, rand.NewPCG(1, 2))

		weights := p.Weights(candidates(-1, 0, 1))

		assert.InDelta(t, 0.5+DefaultEpsilon, weights[0], 1e-12)
		assert.InDelta(t, 1/(1+math.Exp(-0.5))+DefaultEpsilon, weights[1], 1e-12)
		assert.InDelta(t, 1/(1+math.Exp(-1))+DefaultEpsilon, weights[2], 1e-12)
	})
}

func TestExploratory_Select(t *testing.T) {
	t.Run("Equal rewards sample uniformly", func(t *testing.T) {
		// Given: nine candidates with the same reward
		p := NewExploratory(DefaultEpsilon, rand.NewPCG(7, 11))
		cands := candidates(0, 0, 0, 0, 0, 0, 0, 0, 0)

		// When: sampling many times
		counts := make([]float64, len(cands))
		for range trials {
			c, err := p.Select(cands)
			require.NoError(t, err)
			counts[c.Cell]++
		}

		// Then: the counts are consistent with a uniform distribution
		assert.Greater(t, uniformPValue(counts), 0.001)
	})

	t.Run("Higher reward is picked more often but never exclusively", func(t *testing.T) {
		p := NewExploratory(DefaultEpsilon, rand.NewPCG(3, 5))
		cands := candidates(0, 1)

		counts := make([]float64, 2)
		for range trials {
			c, err := p.Select(cands)
			require.NoError(t, err)
			counts[c.Cell]++
		}

		// expected share of the better move: w1/(w0+w1)
		w0, w1 := 0.5+DefaultEpsilon, 1/(1+math.Exp(-1))+DefaultEpsilon
		assert.Greater(t, counts[1], counts[0])
		assert.Positive(t, counts[0])
		assert.InDelta(t, w1/(w0+w1), counts[1]/trials, 0.02)
	})

	t.Run("Empty candidate set", func(t *testing.T) {
		_, err := NewExploratory(DefaultEpsilon, nil).Select(nil)

		require.ErrorIs(t, err, apperror.ErrEmptyCandidateSet)
	})
}

func TestGreedy_Select(t *testing.T) {
	t.Run("Returns the maximum", func(t *testing.T) {
		p := NewGreedy(rand.NewPCG(1, 1))

		for range 100 {
			c, err := p.Select(candidates(0.1, -0.33, 0.9, 0.2))
			require.NoError(t, err)
			assert.Equal(t, 2, c.Cell)
		}
	})

	t.Run("Breaks a two-way tie evenly", func(t *testing.T) {
		// Given: two candidates tied for the maximum
		p := NewGreedy(rand.NewPCG(9, 9))
		cands := candidates(0.5, 0.1, 0.5)

		// When: selecting many times
		counts := make([]float64, 3)
		for range trials {
			c, err := p.Select(cands)
			require.NoError(t, err)
			counts[c.Cell]++
		}

		// Then: only the tied moves are chosen and with similar frequency
		assert.Zero(t, counts[1])
		assert.Greater(t, uniformPValue([]float64{counts[0], counts[2]}), 0.001)
	})

	t.Run("Empty candidate set", func(t *testing.T) {
		_, err := NewGreedy(nil).Select(nil)

		require.ErrorIs(t, err, apperror.ErrEmptyCandidateSet)
	})
}

func TestScripted_Select(t *testing.T) {
	// Given: a script of two cells
	p := NewScripted(4, 0)
	cands := candidates(0, 0, 0, 0, 0)

	// When/Then: cells come out in order
	c, err := p.Select(cands)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Cell)

	// When/Then: a cell that is not a candidate is an invalid move
	_, err = p.Select(cands[1:])
	require.ErrorIs(t, err, apperror.ErrInvalidMove)

	c, err = p.Select(cands)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Cell)

	// Then: the script runs out
	_, err = p.Select(cands)
	require.ErrorIs(t, err, apperror.ErrScriptExhausted)
}
