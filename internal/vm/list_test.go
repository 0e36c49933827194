package vm

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/digitalocean/go-libvirt"
)

func TestList(t *testing.T) {
	m, lv, _ := newTestManager(t)
	lv.connectListAllDomainsFunc = func(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
		return []libvirt.Domain{
			{Name: "conductor-test-fedora-42-2"},
			{Name: "unrelated-vm"},
			{Name: "conductor-test-debian-12-1"},
			{Name: "conductor-test-fedora-42-1"},
			{Name: "conductor-test-weird"}, // prefix but not conductor format
		}, 4, nil
	}

	vms, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}

	gotNames := make([]string, len(vms))
	for i, v := range vms {
		gotNames[i] = v.Name
	}
	want := []string{
		"conductor-test-debian-12-1",
		"conductor-test-fedora-42-1",
		"conductor-test-fedora-42-2",
	}
	if !reflect.DeepEqual(gotNames, want) {
		t.Errorf("List() names = %v, want %v", gotNames, want)
	}

	if vms[0].Distro != "debian" || vms[0].Version != "12" || vms[0].Index != 1 {
		t.Errorf("parsed fields wrong: %+v", vms[0])
	}
	if vms[0].State != "running" {
		t.Errorf("State = %q, want running", vms[0].State)
	}
}

func TestListEmpty(t *testing.T) {
	m, _, _ := newTestManager(t)

	vms, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(vms) != 0 {
		t.Errorf("List() = %v, want empty", vms)
	}
}

func TestListError(t *testing.T) {
	m, lv, _ := newTestManager(t)
	lv.connectListAllDomainsFunc = func(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
		return nil, 0, fmt.Errorf("connection reset")
	}

	if _, err := m.List(context.Background()); err == nil {
		t.Fatal("expected error from List()")
	}
}

func TestStatus(t *testing.T) {
	m, lv, _ := newTestManager(t)
	lv.domainLookupByNameFunc = func(name string) (libvirt.Domain, error) {
		if name == "conductor-test-fedora-42-1" {
			return libvirt.Domain{Name: name}, nil
		}
		return libvirt.Domain{}, fmt.Errorf("domain not found: %s", name)
	}
	lv.domainInterfaceAddressesFunc = func(dom libvirt.Domain, source uint32, flags uint32) ([]libvirt.DomainInterface, error) {
		return []libvirt.DomainInterface{
			{
				Name: "vnet0",
				Addrs: []libvirt.DomainIPAddr{
					{Type: ipAddrTypeIPv4, Addr: "192.168.122.41", Prefix: 24},
				},
			},
		}, nil
	}

	rows := m.Status(context.Background(), []string{
		"conductor-test-fedora-42-1",
		"conductor-test-debian-12-1",
	})

	if len(rows) != 2 {
		t.Fatalf("Status() returned %d rows, want 2", len(rows))
	}
	if rows[0].State != "running" || rows[0].IP != "192.168.122.41" {
		t.Errorf("row 0 = %+v, want running/192.168.122.41", rows[0])
	}
	if rows[1].State != "absent" || rows[1].IP != "" {
		t.Errorf("row 1 = %+v, want absent with no IP", rows[1])
	}
}

func TestStatusIPv6Ignored(t *testing.T) {
	m, lv, _ := newTestManager(t)
	lv.domainLookupByNameFunc = func(name string) (libvirt.Domain, error) {
		return libvirt.Domain{Name: name}, nil
	}
	lv.domainInterfaceAddressesFunc = func(dom libvirt.Domain, source uint32, flags uint32) ([]libvirt.DomainInterface, error) {
		return []libvirt.DomainInterface{
			{
				Addrs: []libvirt.DomainIPAddr{
					{Type: 1, Addr: "fe80::1", Prefix: 64}, // VIR_IP_ADDR_TYPE_IPV6
				},
			},
		}, nil
	}

	rows := m.Status(context.Background(), []string{"conductor-test-fedora-42-1"})
	if rows[0].IP != "" {
		t.Errorf("IPv6-only guest should report no IP, got %q", rows[0].IP)
	}
}
