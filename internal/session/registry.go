// Package session keeps interactive games keyed by a caller supplied id and
// optionally answers every move with a bot that plays from a credit table.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-brain/internal/agent"
	"github.com/rocketscienceinc/tictactoe-brain/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-brain/internal/brain"
	"github.com/rocketscienceinc/tictactoe-brain/internal/entity"
	"github.com/rocketscienceinc/tictactoe-brain/internal/metrics"
	"github.com/rocketscienceinc/tictactoe-brain/internal/policy"
	"github.com/rocketscienceinc/tictactoe-brain/internal/repository"
	"github.com/rocketscienceinc/tictactoe-brain/internal/selfplay"
)

const (
	eventCreated  = "created"
	eventFinished = "finished"
)

type gameRepo interface {
	CreateOrUpdate(ctx context.Context, game *entity.Game) error
	GetByID(ctx context.Context, id string) (*entity.Game, error)
	DeleteByID(ctx context.Context, id string) error
}

// Result is the state of a session after a move.
type Result struct {
	Game     *entity.Game
	Winner   entity.Mark
	Finished bool
	// BotCell is the cell the bot answered with, or -1.
	BotCell int
}

type bot struct {
	store    *brain.Store
	mark     entity.Mark
	selector policy.Selector
	rewards  selfplay.Rewards
	learn    bool
}

type Registry struct {
	logger *slog.Logger

	games   gameRepo
	bot     *bot
	metrics *metrics.Metrics

	mu    sync.Mutex
	locks map[string]*idLock
}

// idLock is dropped from the map once no caller holds or waits for it.
type idLock struct {
	mu   sync.Mutex
	refs int
}

type Option func(r *Registry)

// WithBot answers every move of the other mark. With learn the outcome of
// each finished session is propagated into store.
func WithBot(store *brain.Store, mark entity.Mark, selector policy.Selector, rewards selfplay.Rewards, learn bool) Option {
	return func(r *Registry) {
		r.bot = &bot{
			store:    store,
			mark:     mark,
			selector: selector,
			rewards:  rewards,
			learn:    learn,
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

func New(logger *slog.Logger, games gameRepo, options ...Option) *Registry {
	r := &Registry{
		logger: logger.With("component", "session"),
		games:  games,
		locks:  make(map[string]*idLock),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// lock serialises calls on one session id.
func (that *Registry) lock(id string) func() {
	that.mu.Lock()
	l, ok := that.locks[id]
	if !ok {
		l = &idLock{}
		that.locks[id] = l
	}
	l.refs++
	that.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		that.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(that.locks, id)
		}
		that.mu.Unlock()
	}
}

// Create starts a new game under id. When the bot plays X it opens the game.
func (that *Registry) Create(ctx context.Context, id string) (*entity.Game, error) {
	log := that.logger.With("method", "Create", "session_id", id)

	unlock := that.lock(id)
	defer unlock()

	_, err := that.games.GetByID(ctx, id)
	if err == nil {
		return nil, fmt.Errorf("%w: %s", apperror.ErrGameAlreadyExists, id)
	}
	if !errors.Is(err, repository.ErrGameNotFound) {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	game := entity.NewGame(id)
	if that.bot != nil && that.bot.mark == entity.X {
		if _, err = that.botMove(game); err != nil {
			return nil, err
		}
	}

	if err = that.games.CreateOrUpdate(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to save game: %w", err)
	}

	that.metrics.SessionEvent(eventCreated)
	log.Info("session created")

	return game, nil
}

// Move plays position for the side to move and lets the bot answer. An
// invalid move leaves the session untouched. A finished game is removed in
// the same call.
func (that *Registry) Move(ctx context.Context, id string, position int) (Result, error) {
	log := that.logger.With("method", "Move", "session_id", id)

	unlock := that.lock(id)
	defer unlock()

	game, err := that.get(ctx, id)
	if err != nil {
		return Result{}, err
	}

	if that.bot != nil && game.Turn() == that.bot.mark {
		return Result{}, fmt.Errorf("%w: it is the bot's turn", apperror.ErrInvalidMove)
	}

	if err = game.MakeMove(position); err != nil {
		return Result{}, fmt.Errorf("failed to make move: %w", err)
	}

	result := Result{Game: game, BotCell: -1}
	if that.bot != nil && !game.IsFinished() {
		if result.BotCell, err = that.botMove(game); err != nil {
			return Result{}, err
		}
	}

	result.Winner = game.Winner
	result.Finished = game.IsFinished()

	if !result.Finished {
		if err = that.games.CreateOrUpdate(ctx, game); err != nil {
			return Result{}, fmt.Errorf("failed to save game: %w", err)
		}
		return result, nil
	}

	if err = that.games.DeleteByID(ctx, id); err != nil {
		return Result{}, fmt.Errorf("failed to delete finished game: %w", err)
	}
	that.metrics.SessionEvent(eventFinished)
	that.metrics.MatchFinished(game.Winner.String())

	if err = that.learn(game); err != nil {
		log.Error("failed to learn from session", "error", err)
	}

	log.Info("session finished", "winner", game.Winner.String())

	return result, nil
}

// Render returns the board of session id as text.
func (that *Registry) Render(ctx context.Context, id string) (string, error) {
	unlock := that.lock(id)
	defer unlock()

	game, err := that.get(ctx, id)
	if err != nil {
		return "", err
	}

	return game.Render(), nil
}

// Get returns the game of session id.
func (that *Registry) Get(ctx context.Context, id string) (*entity.Game, error) {
	unlock := that.lock(id)
	defer unlock()

	return that.get(ctx, id)
}

func (that *Registry) get(ctx context.Context, id string) (*entity.Game, error) {
	game, err := that.games.GetByID(ctx, id)
	if errors.Is(err, repository.ErrGameNotFound) {
		return nil, fmt.Errorf("%w: %s", apperror.ErrUnknownSession, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return game, nil
}

// botMove lets the bot play one move on game and returns the chosen cell.
func (that *Registry) botMove(game *entity.Game) (int, error) {
	player := agent.New(that.bot.mark, that.bot.store)
	player.Resume(game.Trajectory)

	candidates, err := player.CandidateMoves()
	if err != nil {
		return -1, fmt.Errorf("failed to list bot candidates: %w", err)
	}

	choice, err := that.bot.selector.Select(candidates)
	if err != nil {
		return -1, fmt.Errorf("failed to select bot move: %w", err)
	}

	if err = game.MakeMove(choice.Cell); err != nil {
		return -1, fmt.Errorf("failed to make bot move: %w", err)
	}

	return choice.Cell, nil
}

// learn credits the bot's store with the outcome of a finished session.
func (that *Registry) learn(game *entity.Game) error {
	if that.bot == nil || !that.bot.learn {
		return nil
	}

	player := agent.New(that.bot.mark, that.bot.store)
	for _, state := range game.Trajectory {
		player.Observe(state)
	}

	var reward float64
	switch game.Winner {
	case that.bot.mark:
		reward = that.bot.rewards.Win
	case entity.Empty:
		reward = that.bot.rewards.Draw
	default:
		reward = that.bot.rewards.Lose
	}

	if err := player.PropagateReward(reward, true); err != nil {
		return fmt.Errorf("failed to propagate session outcome: %w", err)
	}

	return nil
}
