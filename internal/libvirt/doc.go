// Package libvirt provides a client wrapper for interacting with libvirt.
//
// This package wraps github.com/digitalocean/go-libvirt to provide:
//   - Connection management (connect, disconnect, ping)
//   - Domain XML generation for disposable test VMs
//
// The Client type provides a high-level interface for libvirt operations,
// while exposing the underlying *libvirt.Libvirt for packages that need
// direct access to the libvirt API.
//
// Connection Management:
//
// The package establishes connections to the local libvirt daemon via Unix socket:
//
//	client, err := libvirt.Connect("", 0)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	// Check connection
//	if err := client.Ping(); err != nil {
//	    return err
//	}
//
// Domain XML Generation:
//
// GenerateDomainXML builds the fixed test-VM layout (qcow2 root disk,
// cloud-init ISO cdrom, one NIC on the NAT network, serial console):
//
//	xml, err := libvirt.GenerateDomainXML(libvirt.DomainSpec{
//	    Name:      "conductor-test-fedora-42-1",
//	    MemoryMiB: 2048,
//	    VCPUs:     2,
//	    DiskPath:  "/var/lib/libvirt/images/conductor-test-fedora-42-1.qcow2",
//	    ISOPath:   "/var/lib/libvirt/images/conductor-test-fedora-42-1-cloudinit.iso",
//	})
//	if err != nil {
//	    return err
//	}
//
//	dom, err := client.Libvirt().DomainDefineXML(xml)
//	if err != nil {
//	    return err
//	}
//
// Consumer-Side Interfaces:
//
// This package does not define interfaces. Instead, consumers (internal/vm,
// internal/metadata) define their own libvirt client interfaces specifying
// only the operations they need. The *libvirt.Libvirt type satisfies these
// interfaces implicitly, enabling clean dependency injection.
package libvirt
