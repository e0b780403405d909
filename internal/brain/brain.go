// Package brain holds the credit assignment table shared by the agents.
//
// The table is a trie whose edges are board states. A path of boards played
// in one match addresses exactly one node, so two matches that reach the same
// board through different move orders keep separate rewards.
package brain

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/rocketscienceinc/tictactoe-brain/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-brain/internal/entity"
)

// DefaultFalloff halves the credit of every earlier move.
const DefaultFalloff = 2

// keySeparator joins board states into a flattened path key.
const keySeparator = "-"

// Entry is the value stored at a trie node. Visits counts the propagations
// merged into the node; zero means the node was recorded but never rewarded.
type Entry struct {
	Reward float64 `json:"reward" yaml:"reward"`
	Visits int     `json:"visits" yaml:"visits"`
}

func (that *Entry) merge(reward float64) {
	if that.Visits == 0 {
		that.Reward = reward
	} else {
		that.Reward = (that.Reward + reward) / 2
	}
	that.Visits++
}

type node struct {
	entry    Entry
	children map[entity.Board]*node
}

func (that *node) child(state entity.Board) *node {
	if that.children == nil {
		return nil
	}
	return that.children[state]
}

// Store is safe for concurrent use. Every operation holds the lock for the
// whole path so two merges into one node never interleave.
type Store struct {
	mu    sync.RWMutex
	root  *node
	nodes int
}

func New() *Store {
	return &Store{root: &node{}}
}

// Record adds the path to the trie, creating unseen nodes with a zero reward.
func (that *Store) Record(path []entity.Board) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.descend(path, nil)
}

// Propagate spreads reward backwards over path: the most recent state gets
// the full reward and each earlier one is divided by falloff once more.
func (that *Store) Propagate(path []entity.Board, reward, falloff float64) error {
	if falloff <= 0 || math.IsNaN(falloff) {
		return fmt.Errorf("%w: got %v", apperror.ErrInvalidFalloff, falloff)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	n := len(path)
	that.descend(path, func(i int, current *node) {
		current.entry.merge(reward / math.Pow(falloff, float64(n-1-i)))
	})

	return nil
}

// Lookup returns the reward stored for path, or 0 if it was never recorded.
func (that *Store) Lookup(path []entity.Board) float64 {
	entry, _ := that.Get(path)
	return entry.Reward
}

// Get returns the entry stored for path and whether the node exists.
func (that *Store) Get(path []entity.Board) (Entry, bool) {
	if len(path) == 0 {
		return Entry{}, false
	}

	that.mu.RLock()
	defer that.mu.RUnlock()

	current := that.root
	for _, state := range path {
		current = current.child(state)
		if current == nil {
			return Entry{}, false
		}
	}

	return current.entry, true
}

// Len returns the number of nodes in the table.
func (that *Store) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.nodes
}

// Flatten exports every node keyed by its dash-joined path.
func (that *Store) Flatten() map[string]Entry {
	that.mu.RLock()
	defer that.mu.RUnlock()

	flat := make(map[string]Entry, that.nodes)

	var walk func(prefix string, current *node)
	walk = func(prefix string, current *node) {
		for state, next := range current.children {
			key := state.String()
			if prefix != "" {
				key = prefix + keySeparator + key
			}
			flat[key] = next.entry
			walk(key, next)
		}
	}
	walk("", that.root)

	return flat
}

// FromFlat rebuilds a store from the output of Flatten.
func FromFlat(flat map[string]Entry) (*Store, error) {
	store := New()

	// descend creates missing prefixes, a prefix seen later overwrites its zero entry
	for key, entry := range flat {
		path, err := ParsePathKey(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperror.ErrPersistence, err)
		}

		store.descend(path, func(i int, current *node) {
			if i == len(path)-1 {
				current.entry = entry
			}
		})
	}

	return store, nil
}

// PathKey joins a path into its flattened key.
func PathKey(path []entity.Board) string {
	parts := make([]string, len(path))
	for i, state := range path {
		parts[i] = state.String()
	}
	return strings.Join(parts, keySeparator)
}

// ParsePathKey splits a flattened key back into board states.
func ParsePathKey(key string) ([]entity.Board, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty path key", apperror.ErrInvalidBoard)
	}

	parts := strings.Split(key, keySeparator)
	path := make([]entity.Board, len(parts))
	for i, part := range parts {
		state, err := entity.ParseBoard(part)
		if err != nil {
			return nil, fmt.Errorf("failed to parse path key %q: %w", key, err)
		}
		path[i] = state
	}

	return path, nil
}

// descend walks path from the root creating missing nodes, calling visit on
// each node along the way. The caller must hold the write lock.
func (that *Store) descend(path []entity.Board, visit func(i int, current *node)) {
	current := that.root
	for i, state := range path {
		next := current.child(state)
		if next == nil {
			if current.children == nil {
				current.children = make(map[entity.Board]*node)
			}
			next = &node{}
			current.children[state] = next
			that.nodes++
		}
		if visit != nil {
			visit(i, next)
		}
		current = next
	}
}
