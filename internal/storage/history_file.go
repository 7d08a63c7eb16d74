package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/scenario-simulator/internal/errors"
	"github.com/scenario-simulator/internal/models"
)

// WriteHistoryFile writes a history document as indented JSON, creating parent directories
func WriteHistoryFile(path string, doc *models.HistoryDocument) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return errors.NewStorageError("create export directory", mkErr)
		}
	}

	f, err := os.Create(path) // #nosec G304 - path is chosen by the operator
	if err != nil {
		return errors.NewStorageError("create history file", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = errors.NewStorageError("close history file", closeErr)
		}
	}()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(doc); err != nil {
		return errors.NewStorageError("write history file", err)
	}

	return nil
}

// ReadHistoryFile reads a history document. Missing or undecodable files are format errors.
func ReadHistoryFile(path string) (*models.HistoryDocument, error) {
	f, err := os.Open(path) // #nosec G304 - path is chosen by the operator
	if err != nil {
		return nil, errors.NewInvalidFormatError(fmt.Sprintf("cannot open %s", path), err)
	}
	defer func() { _ = f.Close() }()

	var doc models.HistoryDocument
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, errors.NewInvalidFormatError("cannot decode JSON", err)
	}

	return &doc, nil
}
