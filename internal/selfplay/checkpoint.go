package selfplay

import (
	"context"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-brain/internal/brain"
)

// FileCheckpointer saves every store to its file, keyed by path.
type FileCheckpointer map[string]*brain.Store

func (that FileCheckpointer) Checkpoint(_ context.Context) error {
	for path, store := range that {
		if err := brain.Save(path, store); err != nil {
			return fmt.Errorf("failed to save %s: %w", path, err)
		}
	}
	return nil
}

type brainSaver interface {
	Save(ctx context.Context, name string, store *brain.Store) error
}

// RedisCheckpointer saves every store under its name through a brain repository.
type RedisCheckpointer struct {
	repo   brainSaver
	stores map[string]*brain.Store
}

func NewRedisCheckpointer(repo brainSaver, stores map[string]*brain.Store) *RedisCheckpointer {
	return &RedisCheckpointer{
		repo:   repo,
		stores: stores,
	}
}

func (that *RedisCheckpointer) Checkpoint(ctx context.Context) error {
	for name, store := range that.stores {
		if err := that.repo.Save(ctx, name, store); err != nil {
			return fmt.Errorf("failed to save brain %s: %w", name, err)
		}
	}
	return nil
}
