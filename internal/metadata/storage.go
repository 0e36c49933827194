// Package metadata persists per-VM provenance (distribution, version,
// creation time) in libvirt's custom XML metadata feature. The record
// travels with the domain itself, so status and destroy operations need no
// external state beyond libvirt.
package metadata

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/digitalocean/go-libvirt"
	"gopkg.in/yaml.v3"
)

const (
	// Namespace is the XML namespace for conductor metadata.
	Namespace = "http://conductor.cofront.xyz/v1"

	// Key is the key used to store/retrieve metadata from libvirt.
	Key = "conductor-vm"
)

// libvirtClient is the subset of go-libvirt used by this package.
type libvirtClient interface {
	DomainSetMetadata(dom libvirt.Domain, typ int32, metadata libvirt.OptString, key libvirt.OptString, uri libvirt.OptString, flags libvirt.DomainModificationImpact) error
	DomainGetMetadata(dom libvirt.Domain, typ int32, uri libvirt.OptString, flags libvirt.DomainModificationImpact) (string, error)
}

// Record is the provenance stored with each conductor-managed domain.
type Record struct {
	Name      string    `yaml:"name"`
	Distro    string    `yaml:"distro"`
	Version   string    `yaml:"version"`
	UUID      string    `yaml:"uuid"`
	CreatedAt time.Time `yaml:"created_at"`
}

// domainMetadata is the XML wrapper for the record. The record itself is
// stored as YAML text so it is readable when inspecting the domain XML
// directly with virsh.
type domainMetadata struct {
	XMLName xml.Name `xml:"metadata"`
	Xmlns   string   `xml:"xmlns,attr"`
	Record  string   `xml:",innerxml"`
}

// Store saves the record to libvirt domain metadata.
func Store(l libvirtClient, domain libvirt.Domain, rec Record) error {
	yamlData, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal VM record to YAML: %w", err)
	}

	md := domainMetadata{
		Xmlns:  Namespace,
		Record: string(yamlData),
	}

	xmlData, err := xml.MarshalIndent(md, "  ", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata to XML: %w", err)
	}

	err = l.DomainSetMetadata(
		domain,
		int32(libvirt.DomainMetadataElement),
		libvirt.OptString{string(xmlData)},
		libvirt.OptString{Key},
		libvirt.OptString{Namespace},
		libvirt.DomainModificationImpact(0), // replace
	)
	if err != nil {
		return fmt.Errorf("failed to set libvirt domain metadata: %w", err)
	}

	return nil
}

// Load retrieves the record from libvirt domain metadata.
func Load(l libvirtClient, domain libvirt.Domain) (Record, error) {
	xmlStr, err := l.DomainGetMetadata(
		domain,
		int32(libvirt.DomainMetadataElement),
		libvirt.OptString{Namespace},
		libvirt.DomainModificationImpact(0),
	)
	if err != nil {
		return Record{}, fmt.Errorf("failed to get libvirt domain metadata: %w", err)
	}

	var md domainMetadata
	if err := xml.Unmarshal([]byte(xmlStr), &md); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal metadata XML: %w", err)
	}

	var rec Record
	if err := yaml.Unmarshal([]byte(md.Record), &rec); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal VM record from YAML: %w", err)
	}

	return rec, nil
}

// Delete removes conductor metadata from a domain. Typically called during
// VM destruction cleanup.
func Delete(l libvirtClient, domain libvirt.Domain) error {
	err := l.DomainSetMetadata(
		domain,
		int32(libvirt.DomainMetadataElement),
		libvirt.OptString{""}, // empty string removes metadata
		libvirt.OptString{Key},
		libvirt.OptString{Namespace},
		libvirt.DomainModificationImpact(1), // remove
	)
	if err != nil {
		return fmt.Errorf("failed to delete libvirt domain metadata: %w", err)
	}

	return nil
}

// Exists checks if conductor metadata exists for a domain. Domains without
// a record were not created by this tool.
func Exists(l libvirtClient, domain libvirt.Domain) bool {
	_, err := l.DomainGetMetadata(
		domain,
		int32(libvirt.DomainMetadataElement),
		libvirt.OptString{Namespace},
		libvirt.DomainModificationImpact(0),
	)
	return err == nil
}
