package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/scenario-simulator/internal/models"
)

// SideFiles points at optional JSON files that override the stored news feed and
// scene narrative
type SideFiles struct {
	NewsPath        string
	DescriptionPath string
}

// ReadNewsFile reads a JSON array of {date, content} objects.
// Items missing either field are dropped.
func ReadNewsFile(path string) ([]models.RawNews, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read news file: %w", err)
	}

	var items []map[string]interface{}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse news file %s: %w", path, err)
	}

	news := make([]models.RawNews, 0, len(items))
	for _, item := range items {
		date, okDate := item["date"].(string)
		content, okContent := item["content"].(string)
		if !okDate || !okContent {
			continue
		}
		news = append(news, models.RawNews{Date: date, Content: content})
	}
	return news, nil
}

// ReadDescriptionFile reads the scene narrative. The file holds either an object
// with a description field, an array of lines, or a bare string.
func ReadDescriptionFile(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from operator configuration
	if err != nil {
		return "", fmt.Errorf("failed to read description file: %w", err)
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", fmt.Errorf("failed to parse description file %s: %w", path, err)
	}

	switch v := raw.(type) {
	case map[string]interface{}:
		if desc, ok := v["description"].(string); ok {
			return desc, nil
		}
		return string(data), nil
	case []interface{}:
		lines := make([]string, 0, len(v))
		for _, line := range v {
			lines = append(lines, fmt.Sprint(line))
		}
		return strings.Join(lines, "\n"), nil
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

func (f SideFiles) news() ([]models.RawNews, bool, error) {
	if f.NewsPath == "" {
		return nil, false, nil
	}
	news, err := ReadNewsFile(f.NewsPath)
	return news, true, err
}

func (f SideFiles) description() (string, bool, error) {
	if f.DescriptionPath == "" {
		return "", false, nil
	}
	desc, err := ReadDescriptionFile(f.DescriptionPath)
	return desc, true, err
}
