package vm

import (
	"context"

	"github.com/digitalocean/go-libvirt"
)

// libvirtClient defines the libvirt operations needed for VM management.
// This wraps operations from *libvirt.Libvirt to allow for testing.
//
// In production, this is satisfied by *libvirt.Libvirt directly.
// In tests, this is satisfied by mock implementations.
type libvirtClient interface {
	// DomainLookupByName looks up a domain by name
	DomainLookupByName(name string) (libvirt.Domain, error)

	// DomainDefineXML defines a domain from XML
	DomainDefineXML(xml string) (libvirt.Domain, error)

	// DomainCreate starts a domain
	DomainCreate(dom libvirt.Domain) error

	// DomainGetState gets the state of a domain
	DomainGetState(dom libvirt.Domain, flags uint32) (state int32, reason int32, err error)

	// DomainShutdown gracefully shuts down a domain
	DomainShutdown(dom libvirt.Domain) error

	// DomainDestroy force-stops a domain
	DomainDestroy(dom libvirt.Domain) error

	// DomainUndefineFlags undefines a domain with flags (e.g., NVRAM cleanup)
	DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error

	// ConnectListAllDomains lists all domains (active and inactive)
	ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)

	// DomainInterfaceAddresses queries guest interface addresses
	DomainInterfaceAddresses(dom libvirt.Domain, source uint32, flags uint32) ([]libvirt.DomainInterface, error)

	// DomainSetMetadata stores custom metadata on a domain
	DomainSetMetadata(dom libvirt.Domain, typ int32, metadata libvirt.OptString, key libvirt.OptString, uri libvirt.OptString, flags libvirt.DomainModificationImpact) error

	// DomainGetMetadata retrieves custom metadata from a domain
	DomainGetMetadata(dom libvirt.Domain, typ int32, uri libvirt.OptString, flags libvirt.DomainModificationImpact) (string, error)
}

// diskManager defines the image-file operations needed for VM management.
// This allows for dependency injection and testing.
//
// In production, this is satisfied by *disk.Manager.
type diskManager interface {
	// DiskPath returns the root disk path for a VM
	DiskPath(vmName string) string

	// ISOPath returns the cloud-init ISO path for a VM
	ISOPath(vmName string) string

	// CreateDisk copies the base image and grows it to sizeGB
	CreateDisk(ctx context.Context, vmName, baseImage string, sizeGB int) error

	// WriteISO writes the cloud-init ISO next to the root disk
	WriteISO(vmName string, isoData []byte) (string, error)

	// RemoveArtifacts deletes the VM's disk and ISO files
	RemoveArtifacts(vmName string) error

	// CheckDiskSpace verifies the image directory has room
	CheckDiskSpace(sizeGB int) error
}
