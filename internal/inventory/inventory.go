// Package inventory persists the flat list of VM names created by the last
// batch. The file is the tool's only durable state; everything else lives in
// libvirt. Downstream commands read it to know which names to poll or act on.
package inventory

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFileName is the list file created under the cloud-init working
// directory.
const DefaultFileName = "vm-list.txt"

// Store reads and writes the newline-delimited VM name list.
type Store struct {
	path string
}

// NewStore creates a store for the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Write replaces the list with the given names (truncate then append).
func (s *Store) Write(names []string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create inventory directory: %w", err)
	}

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(s.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write inventory %s: %w", s.path, err)
	}
	return nil
}

// Read returns the recorded names in file order. A missing file is an empty
// inventory, not an error.
func (s *Store) Read() ([]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open inventory %s: %w", s.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inventory %s: %w", s.path, err)
	}

	return names, nil
}

// Remove deletes single names from the list, preserving order of the rest.
// Used when individual VMs are destroyed outside a full batch teardown.
func (s *Store) Remove(name string) error {
	names, err := s.Read()
	if err != nil {
		return err
	}

	kept := names[:0]
	for _, n := range names {
		if n != name {
			kept = append(kept, n)
		}
	}
	if len(kept) == len(names) {
		return nil
	}

	return s.Write(kept)
}
