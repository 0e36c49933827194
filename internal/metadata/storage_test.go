package metadata

import (
	"encoding/xml"
	"errors"
	"testing"
	"time"

	"github.com/digitalocean/go-libvirt"
)

// mockLibvirtClient is a mock implementation of libvirtClient for testing.
type mockLibvirtClient struct {
	// For controlling behavior
	setMetadataError error
	getMetadataError error
	getMetadataValue string

	// For verification
	lastSetMetadata  string
	lastSetKey       string
	lastSetURI       string
	lastSetFlags     libvirt.DomainModificationImpact
	setMetadataCalls int
	getMetadataCalls int
}

func (m *mockLibvirtClient) DomainSetMetadata(
	dom libvirt.Domain,
	typ int32,
	metadata libvirt.OptString,
	key libvirt.OptString,
	uri libvirt.OptString,
	flags libvirt.DomainModificationImpact,
) error {
	m.setMetadataCalls++
	if len(metadata) > 0 {
		m.lastSetMetadata = metadata[0]
	}
	if len(key) > 0 {
		m.lastSetKey = key[0]
	}
	if len(uri) > 0 {
		m.lastSetURI = uri[0]
	}
	m.lastSetFlags = flags

	return m.setMetadataError
}

func (m *mockLibvirtClient) DomainGetMetadata(
	dom libvirt.Domain,
	typ int32,
	uri libvirt.OptString,
	flags libvirt.DomainModificationImpact,
) (string, error) {
	m.getMetadataCalls++
	return m.getMetadataValue, m.getMetadataError
}

func newTestRecord(name string) Record {
	return Record{
		Name:      name,
		Distro:    "fedora",
		Version:   "42",
		UUID:      "7c9a2c6e-27dd-44d9-90be-07e1a34a52f9",
		CreatedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestStore(t *testing.T) {
	mock := &mockLibvirtClient{}
	domain := libvirt.Domain{}

	err := Store(mock, domain, newTestRecord("conductor-test-fedora-42-1"))
	if err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	if mock.setMetadataCalls != 1 {
		t.Errorf("Expected 1 DomainSetMetadata call, got %d", mock.setMetadataCalls)
	}
	if mock.lastSetKey != Key {
		t.Errorf("Expected key %q, got %q", Key, mock.lastSetKey)
	}
	if mock.lastSetURI != Namespace {
		t.Errorf("Expected URI %q, got %q", Namespace, mock.lastSetURI)
	}
	if mock.lastSetFlags != 0 {
		t.Errorf("Expected flags 0 (replace), got %d", mock.lastSetFlags)
	}

	// Verify the XML can be parsed back
	var md domainMetadata
	if err := xml.Unmarshal([]byte(mock.lastSetMetadata), &md); err != nil {
		t.Fatalf("Failed to parse stored XML: %v", err)
	}
	if md.Xmlns != Namespace {
		t.Errorf("Expected xmlns %q, got %q", Namespace, md.Xmlns)
	}
	if md.Record == "" {
		t.Error("Expected non-empty YAML record")
	}
}

func TestStore_SetMetadataError(t *testing.T) {
	mock := &mockLibvirtClient{
		setMetadataError: errors.New("libvirt error"),
	}

	err := Store(mock, libvirt.Domain{}, newTestRecord("test-vm"))
	if err == nil {
		t.Fatal("Expected error from Store(), got nil")
	}
	if !errors.Is(err, mock.setMetadataError) {
		t.Error("Expected error to wrap libvirt error")
	}
}

func TestStoreLoadRoundTrip(t *testing.T) {
	mock := &mockLibvirtClient{}
	rec := newTestRecord("conductor-test-suse-sles15.5-2")
	rec.Distro = "suse"
	rec.Version = "sles15.5"

	if err := Store(mock, libvirt.Domain{}, rec); err != nil {
		t.Fatalf("Store() failed: %v", err)
	}

	// Feed the stored XML back through Load.
	mock.getMetadataValue = mock.lastSetMetadata

	got, err := Load(mock, libvirt.Domain{})
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if got.Name != rec.Name {
		t.Errorf("Name = %q, want %q", got.Name, rec.Name)
	}
	if got.Distro != rec.Distro || got.Version != rec.Version {
		t.Errorf("Distro/Version = %q/%q, want %q/%q", got.Distro, got.Version, rec.Distro, rec.Version)
	}
	if got.UUID != rec.UUID {
		t.Errorf("UUID = %q, want %q", got.UUID, rec.UUID)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
}

func TestLoad_GetMetadataError(t *testing.T) {
	mock := &mockLibvirtClient{
		getMetadataError: errors.New("metadata not found"),
	}

	if _, err := Load(mock, libvirt.Domain{}); err == nil {
		t.Fatal("Expected error from Load(), got nil")
	}
}

func TestLoad_MalformedXML(t *testing.T) {
	mock := &mockLibvirtClient{
		getMetadataValue: "<metadata><unclosed>",
	}

	if _, err := Load(mock, libvirt.Domain{}); err == nil {
		t.Fatal("Expected error for malformed XML, got nil")
	}
}

func TestDelete(t *testing.T) {
	mock := &mockLibvirtClient{}

	if err := Delete(mock, libvirt.Domain{}); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	if mock.setMetadataCalls != 1 {
		t.Errorf("Expected 1 DomainSetMetadata call, got %d", mock.setMetadataCalls)
	}
	if mock.lastSetMetadata != "" {
		t.Errorf("Expected empty metadata value for removal, got %q", mock.lastSetMetadata)
	}
	if mock.lastSetFlags != 1 {
		t.Errorf("Expected flags 1 (remove), got %d", mock.lastSetFlags)
	}
}

func TestExists(t *testing.T) {
	mock := &mockLibvirtClient{getMetadataValue: "<metadata/>"}
	if !Exists(mock, libvirt.Domain{}) {
		t.Error("Exists() should be true when metadata is present")
	}

	mock = &mockLibvirtClient{getMetadataError: errors.New("not found")}
	if Exists(mock, libvirt.Domain{}) {
		t.Error("Exists() should be false when metadata lookup fails")
	}
}
