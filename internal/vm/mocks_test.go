package vm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/digitalocean/go-libvirt"
)

// mockLibvirtClient is a mock implementation of the libvirtClient interface
// for testing. Behavior is configurable per test via function fields; every
// call is also recorded for verification.
type mockLibvirtClient struct {
	mu sync.Mutex

	// Configurable behavior
	domainLookupByNameFunc       func(name string) (libvirt.Domain, error)
	domainDefineXMLFunc          func(xml string) (libvirt.Domain, error)
	domainCreateFunc             func(dom libvirt.Domain) error
	domainGetStateFunc           func(dom libvirt.Domain, flags uint32) (int32, int32, error)
	domainShutdownFunc           func(dom libvirt.Domain) error
	domainDestroyFunc            func(dom libvirt.Domain) error
	domainUndefineFlagsFunc      func(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error
	connectListAllDomainsFunc    func(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)
	domainInterfaceAddressesFunc func(dom libvirt.Domain, source uint32, flags uint32) ([]libvirt.DomainInterface, error)
	domainSetMetadataFunc        func(dom libvirt.Domain, typ int32, metadata libvirt.OptString, key libvirt.OptString, uri libvirt.OptString, flags libvirt.DomainModificationImpact) error
	domainGetMetadataFunc        func(dom libvirt.Domain, typ int32, uri libvirt.OptString, flags libvirt.DomainModificationImpact) (string, error)

	// Call tracking
	domainLookupByNameCalls       []string
	domainDefineXMLCalls          []string
	domainCreateCalls             []libvirt.Domain
	domainGetStateCalls           []libvirt.Domain
	domainShutdownCalls           []libvirt.Domain
	domainDestroyCalls            []libvirt.Domain
	domainUndefineFlagsCalls      []libvirt.Domain
	connectListAllDomainsCalls    int
	domainInterfaceAddressesCalls []libvirt.Domain
	domainSetMetadataCalls        []libvirt.Domain
}

// newMockLibvirtClient creates a mock where no domains exist yet, defines
// succeed, and every defined domain is reported running afterwards.
func newMockLibvirtClient() *mockLibvirtClient {
	m := &mockLibvirtClient{}

	m.domainLookupByNameFunc = func(name string) (libvirt.Domain, error) {
		// Defined domains become findable, like the real daemon.
		for _, defined := range m.domainDefineXMLCalls {
			// XML carries the name; a substring check keeps the mock simple.
			if containsName(defined, name) {
				return libvirt.Domain{Name: name}, nil
			}
		}
		return libvirt.Domain{}, fmt.Errorf("domain not found: %s", name)
	}
	m.domainDefineXMLFunc = func(xml string) (libvirt.Domain, error) {
		return libvirt.Domain{Name: "defined"}, nil
	}
	m.domainCreateFunc = func(dom libvirt.Domain) error { return nil }
	m.domainGetStateFunc = func(dom libvirt.Domain, flags uint32) (int32, int32, error) {
		return domainStateRunning, 0, nil
	}
	m.domainShutdownFunc = func(dom libvirt.Domain) error { return nil }
	m.domainDestroyFunc = func(dom libvirt.Domain) error { return nil }
	m.domainUndefineFlagsFunc = func(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error {
		return nil
	}
	m.connectListAllDomainsFunc = func(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
		return nil, 0, nil
	}
	m.domainInterfaceAddressesFunc = func(dom libvirt.Domain, source uint32, flags uint32) ([]libvirt.DomainInterface, error) {
		return nil, nil
	}
	m.domainSetMetadataFunc = func(dom libvirt.Domain, typ int32, metadata libvirt.OptString, key libvirt.OptString, uri libvirt.OptString, flags libvirt.DomainModificationImpact) error {
		return nil
	}
	m.domainGetMetadataFunc = func(dom libvirt.Domain, typ int32, uri libvirt.OptString, flags libvirt.DomainModificationImpact) (string, error) {
		return "", fmt.Errorf("no metadata")
	}

	return m
}

func containsName(xml, name string) bool {
	return name != "" && strings.Contains(xml, "<name>"+name+"</name>")
}

func (m *mockLibvirtClient) DomainLookupByName(name string) (libvirt.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainLookupByNameCalls = append(m.domainLookupByNameCalls, name)
	return m.domainLookupByNameFunc(name)
}

func (m *mockLibvirtClient) DomainDefineXML(xml string) (libvirt.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainDefineXMLCalls = append(m.domainDefineXMLCalls, xml)
	return m.domainDefineXMLFunc(xml)
}

func (m *mockLibvirtClient) DomainCreate(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainCreateCalls = append(m.domainCreateCalls, dom)
	return m.domainCreateFunc(dom)
}

func (m *mockLibvirtClient) DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainGetStateCalls = append(m.domainGetStateCalls, dom)
	return m.domainGetStateFunc(dom, flags)
}

func (m *mockLibvirtClient) DomainShutdown(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainShutdownCalls = append(m.domainShutdownCalls, dom)
	return m.domainShutdownFunc(dom)
}

func (m *mockLibvirtClient) DomainDestroy(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainDestroyCalls = append(m.domainDestroyCalls, dom)
	return m.domainDestroyFunc(dom)
}

func (m *mockLibvirtClient) DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainUndefineFlagsCalls = append(m.domainUndefineFlagsCalls, dom)
	return m.domainUndefineFlagsFunc(dom, flags)
}

func (m *mockLibvirtClient) ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectListAllDomainsCalls++
	return m.connectListAllDomainsFunc(needResults, flags)
}

func (m *mockLibvirtClient) DomainInterfaceAddresses(dom libvirt.Domain, source uint32, flags uint32) ([]libvirt.DomainInterface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainInterfaceAddressesCalls = append(m.domainInterfaceAddressesCalls, dom)
	return m.domainInterfaceAddressesFunc(dom, source, flags)
}

func (m *mockLibvirtClient) DomainSetMetadata(dom libvirt.Domain, typ int32, metadata libvirt.OptString, key libvirt.OptString, uri libvirt.OptString, flags libvirt.DomainModificationImpact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainSetMetadataCalls = append(m.domainSetMetadataCalls, dom)
	return m.domainSetMetadataFunc(dom, typ, metadata, key, uri, flags)
}

func (m *mockLibvirtClient) DomainGetMetadata(dom libvirt.Domain, typ int32, uri libvirt.OptString, flags libvirt.DomainModificationImpact) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.domainGetMetadataFunc(dom, typ, uri, flags)
}

// mockDiskManager is a mock implementation of the diskManager interface.
type mockDiskManager struct {
	mu sync.Mutex

	createDiskFunc      func(ctx context.Context, vmName, baseImage string, sizeGB int) error
	writeISOFunc        func(vmName string, isoData []byte) (string, error)
	removeArtifactsFunc func(vmName string) error
	checkDiskSpaceFunc  func(sizeGB int) error

	createDiskCalls      []string
	writeISOCalls        []string
	removeArtifactsCalls []string
}

func newMockDiskManager() *mockDiskManager {
	return &mockDiskManager{
		createDiskFunc: func(ctx context.Context, vmName, baseImage string, sizeGB int) error {
			return nil
		},
		writeISOFunc: func(vmName string, isoData []byte) (string, error) {
			return "/var/lib/libvirt/images/" + vmName + "-cloudinit.iso", nil
		},
		removeArtifactsFunc: func(vmName string) error { return nil },
		checkDiskSpaceFunc:  func(sizeGB int) error { return nil },
	}
}

func (m *mockDiskManager) DiskPath(vmName string) string {
	return "/var/lib/libvirt/images/" + vmName + ".qcow2"
}

func (m *mockDiskManager) ISOPath(vmName string) string {
	return "/var/lib/libvirt/images/" + vmName + "-cloudinit.iso"
}

func (m *mockDiskManager) CreateDisk(ctx context.Context, vmName, baseImage string, sizeGB int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createDiskCalls = append(m.createDiskCalls, vmName)
	return m.createDiskFunc(ctx, vmName, baseImage, sizeGB)
}

func (m *mockDiskManager) WriteISO(vmName string, isoData []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeISOCalls = append(m.writeISOCalls, vmName)
	return m.writeISOFunc(vmName, isoData)
}

func (m *mockDiskManager) RemoveArtifacts(vmName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeArtifactsCalls = append(m.removeArtifactsCalls, vmName)
	return m.removeArtifactsFunc(vmName)
}

func (m *mockDiskManager) CheckDiskSpace(sizeGB int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkDiskSpaceFunc(sizeGB)
}
