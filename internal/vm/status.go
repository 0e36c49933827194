package vm

import (
	"context"

	"github.com/digitalocean/go-libvirt"
)

// StatusRow is one line of status output: a VM name, its hypervisor state,
// and the IPv4 address bound to it (empty while the guest is still booting
// or when the domain is gone).
type StatusRow struct {
	Name  string `json:"name" yaml:"name"`
	State string `json:"state" yaml:"state"`
	IP    string `json:"ip" yaml:"ip"`
}

// Status reports the state and IP of each named VM. A name with no matching
// domain is reported as absent rather than failing the whole command; the
// inventory can be stale after manual virsh cleanup.
func (m *Manager) Status(_ context.Context, names []string) []StatusRow {
	rows := make([]StatusRow, 0, len(names))
	for _, name := range names {
		rows = append(rows, m.statusOne(name))
	}
	return rows
}

func (m *Manager) statusOne(name string) StatusRow {
	dom, err := m.lv.DomainLookupByName(name)
	if err != nil {
		return StatusRow{Name: name, State: "absent"}
	}

	row := StatusRow{Name: name, State: "unknown"}
	if state, _, err := m.lv.DomainGetState(dom, 0); err == nil {
		row.State = stateToString(state)
	}
	row.IP = m.domainIPv4(dom)
	return row
}

// domainIPv4 returns the first IPv4 address from the domain's DHCP lease,
// or "" when no address is bound yet. Lookup errors are treated as
// "no address": domains report none until the guest requests a lease.
func (m *Manager) domainIPv4(dom libvirt.Domain) string {
	ifaces, err := m.lv.DomainInterfaceAddresses(dom, addrSourceLease, 0)
	if err != nil {
		return ""
	}

	for _, iface := range ifaces {
		for _, addr := range iface.Addrs {
			if addr.Type == ipAddrTypeIPv4 && addr.Addr != "" {
				return addr.Addr
			}
		}
	}
	return ""
}
