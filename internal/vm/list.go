package vm

import (
	"context"
	"fmt"
	"sort"

	"github.com/cofront/conductor/internal/naming"
)

// Info describes one conductor-managed VM found on the hypervisor.
type Info struct {
	Name    string
	Distro  string
	Version string
	Index   int
	State   string
}

// List returns all conductor-managed VMs, identified by the configured name
// prefix, ordered by distro, version, then instance index. Domains that do
// not follow the conductor naming scheme are ignored even if they carry the
// prefix.
func (m *Manager) List(_ context.Context) ([]Info, error) {
	domains, _, err := m.lv.ConnectListAllDomains(1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}

	prefix := m.cfg.VMs.NamePrefix
	vms := make([]Info, 0, len(domains))
	for _, dom := range domains {
		parsed, ok := naming.Parse(prefix, dom.Name)
		if !ok {
			continue
		}

		state, _, err := m.lv.DomainGetState(dom, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to get state of %q: %w", dom.Name, err)
		}

		vms = append(vms, Info{
			Name:    dom.Name,
			Distro:  parsed.Distro,
			Version: parsed.Version,
			Index:   parsed.Index,
			State:   stateToString(state),
		})
	}

	sort.Slice(vms, func(i, j int) bool {
		if vms[i].Distro != vms[j].Distro {
			return vms[i].Distro < vms[j].Distro
		}
		if vms[i].Version != vms[j].Version {
			return vms[i].Version < vms[j].Version
		}
		return vms[i].Index < vms[j].Index
	})

	return vms, nil
}

// ListNames returns just the names from List, in the same order.
func (m *Manager) ListNames(ctx context.Context) ([]string, error) {
	vms, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(vms))
	for i, v := range vms {
		names[i] = v.Name
	}
	return names, nil
}
