package repository

import (
	"context"
	"sync"

	"github.com/rocketscienceinc/tictactoe-brain/internal/entity"
)

type memoryGame struct {
	mu    sync.RWMutex
	games map[string]entity.Game
}

// NewMemoryGameRepository keeps games in process memory. Games are copied in
// and out so callers never share state with the repository.
func NewMemoryGameRepository() GameRepository {
	return &memoryGame{
		games: make(map[string]entity.Game),
	}
}

func (that *memoryGame) CreateOrUpdate(_ context.Context, game *entity.Game) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	stored := *game
	stored.Trajectory = append([]entity.Board(nil), game.Trajectory...)
	that.games[game.ID] = stored

	return nil
}

func (that *memoryGame) GetByID(_ context.Context, id string) (*entity.Game, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	stored, ok := that.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}

	game := stored
	game.Trajectory = append([]entity.Board(nil), stored.Trajectory...)

	return &game, nil
}

func (that *memoryGame) DeleteByID(_ context.Context, id string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.games[id]; !ok {
		return ErrGameNotFound
	}
	delete(that.games, id)

	return nil
}
