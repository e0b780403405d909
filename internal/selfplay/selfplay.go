package selfplay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/rocketscienceinc/tictactoe-brain/internal/agent"
	"github.com/rocketscienceinc/tictactoe-brain/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-brain/internal/entity"
	"github.com/rocketscienceinc/tictactoe-brain/internal/metrics"
	"github.com/rocketscienceinc/tictactoe-brain/internal/policy"
)

var ErrWrongMark = errors.New("agent plays the wrong mark")

// Rewards is the reward schedule applied during and at the end of a match.
type Rewards struct {
	Win   float64
	Lose  float64
	Draw  float64
	Block float64
}

func DefaultRewards() Rewards {
	return Rewards{
		Win:   1,
		Lose:  -0.33,
		Draw:  0.2,
		Block: 0.5,
	}
}

type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// Outcome describes one finished match.
type Outcome struct {
	Winner entity.Mark
	Moves  []int
	Final  entity.Board
	Blocks int
}

type Summary struct {
	Played int
	XWins  int
	OWins  int
	Draws  int
}

type player struct {
	agent    *agent.Agent
	selector policy.Selector
}

type Trainer struct {
	logger *slog.Logger

	players map[entity.Mark]player
	rewards Rewards

	checkpointEvery int
	checkpointer    Checkpointer

	metrics *metrics.Metrics
}

type Option func(t *Trainer)

func WithRewards(rewards Rewards) Option {
	return func(t *Trainer) {
		t.rewards = rewards
	}
}

// WithCheckpoint saves the tables every n matches and once at the end of Run.
// n <= 0 only saves at the end.
func WithCheckpoint(n int, checkpointer Checkpointer) Option {
	return func(t *Trainer) {
		t.checkpointEvery = n
		t.checkpointer = checkpointer
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Trainer) {
		t.metrics = m
	}
}

// New pairs an X agent with an O agent. Each agent has its own selector.
func New(logger *slog.Logger, x, o *agent.Agent, selectX, selectO policy.Selector, options ...Option) (*Trainer, error) {
	if x.Mark() != entity.X || o.Mark() != entity.O {
		return nil, fmt.Errorf("%w: got %s and %s, want X and O", ErrWrongMark, x.Mark(), o.Mark())
	}

	t := &Trainer{
		logger: logger.With("component", "selfplay"),
		players: map[entity.Mark]player{
			entity.X: {agent: x, selector: selectX},
			entity.O: {agent: o, selector: selectO},
		},
		rewards: DefaultRewards(),
	}
	for _, option := range options {
		option(t)
	}

	return t, nil
}

// PlayMatch plays one match to the end and distributes the rewards.
// Any error aborts the match and clears both histories.
func (that *Trainer) PlayMatch() (Outcome, error) {
	outcome, err := that.playMatch()
	if err != nil {
		for _, p := range that.players {
			p.agent.Reset()
		}
		return outcome, err
	}

	return outcome, nil
}

func (that *Trainer) playMatch() (Outcome, error) {
	game := entity.NewGame("selfplay")
	for _, p := range that.players {
		p.agent.Reset()
	}

	var outcome Outcome
	for !game.IsFinished() {
		actor := that.players[game.Turn()]

		candidates, err := actor.agent.CandidateMoves()
		if err != nil {
			return outcome, fmt.Errorf("failed to list candidates for %s: %w", actor.agent.Mark(), err)
		}

		if err = crossCheck(game, actor.agent, candidates); err != nil {
			return outcome, err
		}

		choice, err := actor.selector.Select(candidates)
		if err != nil {
			return outcome, fmt.Errorf("failed to select a move for %s: %w", actor.agent.Mark(), err)
		}

		if err = game.MakeMove(choice.Cell); err != nil {
			return outcome, fmt.Errorf("failed to make move: %w", err)
		}
		outcome.Moves = append(outcome.Moves, choice.Cell)

		// both agents follow the shared trajectory
		for _, p := range that.players {
			p.agent.Observe(game.Board)
		}

		if game.LastMoveBlockedWin() {
			outcome.Blocks++
			that.metrics.Blocked(game.LastMover.String())
			if err = that.reward(game.LastMover, that.rewards.Block, 0, false); err != nil {
				return outcome, err
			}
		}
	}

	outcome.Winner = game.Winner
	outcome.Final = game.Board

	var err error
	if game.IsDraw() {
		err = that.reward(entity.X, that.rewards.Draw, that.rewards.Draw, true)
	} else {
		err = that.reward(game.Winner, that.rewards.Win, that.rewards.Lose, true)
	}
	if err != nil {
		return outcome, err
	}

	that.metrics.MatchFinished(outcome.Winner.String())

	return outcome, nil
}

// reward gives mark its reward and the opponent theirs.
func (that *Trainer) reward(mark entity.Mark, own, other float64, resetHistory bool) error {
	if err := that.players[mark].agent.PropagateReward(own, resetHistory); err != nil {
		return err
	}

	if err := that.players[mark.Opponent()].agent.PropagateReward(other, resetHistory); err != nil {
		return err
	}

	return nil
}

// crossCheck makes sure the agent sees the same board and cells as the game.
func crossCheck(game *entity.Game, actor *agent.Agent, candidates []agent.Candidate) error {
	if actor.CurrentBoard() != game.Board {
		return fmt.Errorf("%w: agent %s sees %s, game is %s",
			apperror.ErrCandidateMismatch, actor.Mark(), actor.CurrentBoard(), game.Board)
	}

	cells := make([]int, len(candidates))
	for i, c := range candidates {
		cells[i] = c.Cell
	}

	if valid := game.ValidMoves(); !slices.Equal(valid, cells) {
		return fmt.Errorf("%w: valid %v, candidates %v", apperror.ErrCandidateMismatch, valid, cells)
	}

	return nil
}

// Run plays epochs matches. The context is only checked between matches; a
// started match always runs to the end. The tables are checkpointed on the
// way out, including when the context is cancelled.
func (that *Trainer) Run(ctx context.Context, epochs int) (Summary, error) {
	log := that.logger.With("method", "Run")

	var summary Summary
	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			log.Info("training interrupted", "played", summary.Played)
			if cpErr := that.checkpoint(ctx, log); cpErr != nil {
				return summary, cpErr
			}
			return summary, fmt.Errorf("training stopped after %d matches: %w", summary.Played, err)
		}

		outcome, err := that.PlayMatch()
		if err != nil {
			return summary, fmt.Errorf("match %d aborted: %w", epoch, err)
		}

		summary.Played++
		switch outcome.Winner {
		case entity.X:
			summary.XWins++
		case entity.O:
			summary.OWins++
		default:
			summary.Draws++
		}

		log.Debug("match finished", "epoch", epoch, "winner", outcome.Winner.String(), "moves", outcome.Moves)

		if that.checkpointEvery > 0 && summary.Played%that.checkpointEvery == 0 && summary.Played < epochs {
			if err = that.checkpoint(ctx, log); err != nil {
				return summary, err
			}
		}
	}

	if err := that.checkpoint(ctx, log); err != nil {
		return summary, err
	}

	log.Info("training complete",
		"played", summary.Played, "x_wins", summary.XWins, "o_wins", summary.OWins, "draws", summary.Draws)

	return summary, nil
}

func (that *Trainer) checkpoint(ctx context.Context, log *slog.Logger) error {
	for mark, p := range that.players {
		that.metrics.TableSize(mark.String(), p.agent.Store().Len())
	}

	if that.checkpointer == nil {
		return nil
	}

	// a cancelled run still gets its final save
	if err := that.checkpointer.Checkpoint(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to checkpoint: %w", err)
	}

	log.Info("checkpoint saved",
		"x_nodes", that.players[entity.X].agent.Store().Len(),
		"o_nodes", that.players[entity.O].agent.Store().Len())

	return nil
}
