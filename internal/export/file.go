package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
)

type Format int

const (
	FormatCSV Format = iota
	FormatJSON
	FormatViewCSV
)

// ResolvePath picks the format from the extension. Anything that is not
// .json is written as CSV and gets a .csv suffix.
func ResolvePath(path string, format Format) (string, Format) {
	if format == FormatViewCSV {
		return ensureCSV(path), FormatViewCSV
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return path, FormatJSON
	}
	return ensureCSV(path), FormatCSV
}

func ensureCSV(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return path
	}
	return path + ".csv"
}

// WriteFile exports rows to path and returns the path actually written.
func WriteFile(path string, format Format, rows []domain.ReputationRecord, encoding string) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("export: nothing to export")
	}

	path, format = ResolvePath(path, format)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("export: create directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export: create %s: %w", path, err)
	}

	switch format {
	case FormatJSON:
		err = WriteJSON(file, rows)
	case FormatViewCSV:
		err = WriteViewCSV(file, rows, encoding)
	default:
		err = WriteCSV(file, rows, encoding)
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", err
	}

	log.Info("Exported results", "path", path, "rows", len(rows))
	return path, nil
}

// ReadFile loads a JSON export.
func ReadFile(path string) ([]domain.ReputationRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("export: open %s: %w", path, err)
	}
	defer file.Close()

	return ReadJSON(file)
}
