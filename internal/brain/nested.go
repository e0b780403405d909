package brain

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/rocketscienceinc/tictactoe-brain/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-brain/internal/entity"
)

// nestedRewardKey holds the reward of a board in the nested layout. Every
// other member of a board object is a following board.
const nestedRewardKey = "reward"

// LoadNested reads a JSON table in the nested layout, where each board maps to
// an object carrying its "reward" and one member per following board:
//
//	{"X________": {"reward": 0.5, "X___O____": {"reward": 1}}}
//
// The layout keeps no visit counts. A non-zero reward is imported as one
// visit, a zero reward as a recorded but unrewarded node.
func LoadNested(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", apperror.ErrPersistence, path, err)
	}

	store := New()
	if err = store.importNested(data, nil); err != nil {
		return nil, fmt.Errorf("%w: failed to import %s: %w", apperror.ErrPersistence, path, err)
	}

	return store, nil
}

// importNested adds every board below prefix. The store must not be shared yet.
func (that *Store) importNested(data []byte, prefix []entity.Board) error {
	level := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &level); err != nil {
		return err
	}

	for key, raw := range level {
		if key == nestedRewardKey {
			continue
		}

		state, err := entity.ParseBoard(key)
		if err != nil {
			return err
		}
		path := append(slices.Clone(prefix), state)

		var value struct {
			Reward *float64 `json:"reward"`
		}
		if err = json.Unmarshal(raw, &value); err != nil {
			return fmt.Errorf("failed to decode %s: %w", PathKey(path), err)
		}

		var entry Entry
		if value.Reward != nil && *value.Reward != 0 {
			entry = Entry{Reward: *value.Reward, Visits: 1}
		}

		that.descend(path, func(i int, current *node) {
			if i == len(path)-1 {
				current.entry = entry
			}
		})

		if err = that.importNested(raw, path); err != nil {
			return err
		}
	}

	return nil
}
