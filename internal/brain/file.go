package brain

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rocketscienceinc/tictactoe-brain/internal/apperror"
	"gopkg.in/yaml.v3"
)

type codec struct {
	marshal   func(v any) ([]byte, error)
	unmarshal func(data []byte, v any) error
}

var codecs = map[string]codec{
	".json": {
		marshal: func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "    ")
		},
		unmarshal: json.Unmarshal,
	},
	".yaml": {marshal: yaml.Marshal, unmarshal: yaml.Unmarshal},
	".yml":  {marshal: yaml.Marshal, unmarshal: yaml.Unmarshal},
}

func codecFor(path string) (codec, error) {
	ext := strings.ToLower(filepath.Ext(path))

	c, ok := codecs[ext]
	if !ok {
		return codec{}, fmt.Errorf("%w: %w: file extension %q", apperror.ErrPersistence, apperror.ErrUnsupportedStorage, ext)
	}

	return c, nil
}

// Save writes the flattened table to path. The format follows the extension.
func Save(path string, store *Store) error {
	c, err := codecFor(path)
	if err != nil {
		return err
	}

	data, err := c.marshal(store.Flatten())
	if err != nil {
		return fmt.Errorf("%w: failed to encode %s: %w", apperror.ErrPersistence, path, err)
	}

	// write next to the target and rename so a crash never leaves half a table
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %w", apperror.ErrPersistence, err)
	}
	defer os.Remove(tmp.Name()) //nolint: errcheck // already renamed on success

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: failed to write %s: %w", apperror.ErrPersistence, path, err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to close %s: %w", apperror.ErrPersistence, path, err)
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: failed to replace %s: %w", apperror.ErrPersistence, path, err)
	}

	return nil
}

// Load reads a table written by Save. A missing file is an error.
func Load(path string) (*Store, error) {
	c, err := codecFor(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", apperror.ErrPersistence, path, err)
	}

	flat := map[string]Entry{}
	if err = c.unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s: %w", apperror.ErrPersistence, path, err)
	}

	store, err := FromFlat(flat)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild table from %s: %w", path, err)
	}

	return store, nil
}

// LoadOrNew loads path, falling back to an empty table only when the file does
// not exist and the caller allowed it. found is false after a fallback.
func LoadOrNew(path string, allowMissing bool) (store *Store, found bool, err error) {
	store, err = Load(path)
	if err == nil {
		return store, true, nil
	}

	if allowMissing && errors.Is(err, os.ErrNotExist) {
		return New(), false, nil
	}

	return nil, false, err
}
