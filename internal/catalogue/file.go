package catalogue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/starford/wssync/internal/models"
	"github.com/starford/wssync/internal/storage"
)

// DefaultFile is the catalogue file name under the target root.
const DefaultFile = "items.json"

// Encode renders entries as a 2-space indented JSON array without escaping
// HTML or non-ASCII characters.
func Encode(entries []models.Entry) ([]byte, error) {
	if entries == nil {
		entries = []models.Entry{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return nil, fmt.Errorf("catalogue: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Save overwrites the catalogue file at name (relative to the target root).
func Save(store storage.Provider, name string, entries []models.Entry) error {
	data, err := Encode(entries)
	if err != nil {
		return err
	}
	if err := store.Write(name, data); err != nil {
		return fmt.Errorf("catalogue: save %s: %w", name, err)
	}
	return nil
}

// Load reads the catalogue file. A missing file gives an empty catalogue;
// a malformed one is logged and also treated as empty.
func Load(store storage.Provider, name string, logger *slog.Logger) ([]models.Entry, error) {
	data, err := store.Read(name)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalogue: load %s: %w", name, err)
	}
	var entries []models.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("failed to parse catalogue",
			slog.String("path", name),
			slog.String("error", err.Error()))
		return []models.Entry{}, nil
	}
	if entries == nil {
		entries = []models.Entry{}
	}
	return entries, nil
}
