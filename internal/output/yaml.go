package output

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cofront/conductor/internal/vm"
)

// YAMLFormatter formats status rows as YAML.
type YAMLFormatter struct{}

// FormatStatus formats a list of status rows as a YAML sequence.
func (f *YAMLFormatter) FormatStatus(rows []vm.StatusRow) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}

	data, err := yaml.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("failed to marshal status to YAML: %w", err)
	}

	return string(data), nil
}
