package output

import (
	"encoding/json"
	"fmt"

	"github.com/cofront/conductor/internal/vm"
)

// JSONFormatter formats status rows as JSON.
type JSONFormatter struct{}

// FormatStatus formats a list of status rows as a JSON array.
func (f *JSONFormatter) FormatStatus(rows []vm.StatusRow) (string, error) {
	if len(rows) == 0 {
		return "[]\n", nil
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal status to JSON: %w", err)
	}

	return string(data) + "\n", nil
}
