package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/tictactoe-brain/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-brain/internal/brain"
)

var ErrBrainNotFound = errors.New("brain not found")

// BrainRepository keeps a flattened credit table in a redis hash, one field per path key.
type BrainRepository interface {
	Save(ctx context.Context, name string, store *brain.Store) error
	Load(ctx context.Context, name string) (*brain.Store, error)
}

type dbBrain struct {
	client *redis.Client
}

func NewBrainRepository(client *redis.Client) BrainRepository {
	return &dbBrain{
		client: client,
	}
}

func brainKey(name string) string {
	return "brain:" + name
}

// Save replaces the whole hash in one transaction.
func (that *dbBrain) Save(ctx context.Context, name string, store *brain.Store) error {
	flat := store.Flatten()

	fields := make(map[string]any, len(flat))
	for key, entry := range flat {
		entryJSON, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("%w: could not marshal entry %s: %w", apperror.ErrPersistence, key, err)
		}
		fields[key] = entryJSON
	}

	pipe := that.client.TxPipeline()
	pipe.Del(ctx, brainKey(name))
	if len(fields) > 0 {
		pipe.HSet(ctx, brainKey(name), fields)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: failed to save brain %s: %w", apperror.ErrPersistence, name, err)
	}

	return nil
}

func (that *dbBrain) Load(ctx context.Context, name string) (*brain.Store, error) {
	fields, err := that.client.HGetAll(ctx, brainKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load brain %s: %w", apperror.ErrPersistence, name, err)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %w: %s", apperror.ErrPersistence, ErrBrainNotFound, name)
	}

	flat := make(map[string]brain.Entry, len(fields))
	for key, value := range fields {
		var entry brain.Entry
		if err = json.Unmarshal([]byte(value), &entry); err != nil {
			return nil, fmt.Errorf("%w: failed to unmarshal entry %s: %w", apperror.ErrPersistence, key, err)
		}
		flat[key] = entry
	}

	store, err := brain.FromFlat(flat)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild brain %s: %w", name, err)
	}

	return store, nil
}
