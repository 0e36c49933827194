package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/cofront/conductor/internal/vm"
)

// TableFormatter formats status rows as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatStatus formats a list of status rows as a table.
func (f *TableFormatter) FormatStatus(rows []vm.StatusRow) (string, error) {
	if len(rows) == 0 {
		return "No VMs found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tSTATE\tIP")
	}

	for _, row := range rows {
		ip := row.IP
		if ip == "" {
			ip = "-"
		}
		state := row.State
		if state == "" {
			state = "-"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", row.Name, state, ip)
	}

	_ = w.Flush()
	return buf.String(), nil
}
