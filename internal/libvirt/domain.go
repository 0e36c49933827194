package libvirt

import (
	"fmt"

	"libvirt.org/go/libvirtxml"
)

const (
	// DefaultNetwork is the libvirt NAT network test VMs attach to.
	DefaultNetwork = "default"
)

// DomainSpec describes one test VM for domain XML generation. Disk and ISO
// are plain file paths; the tool manages its own image files rather than
// libvirt storage pools so the artifacts stay inspectable with standard
// filesystem tooling.
type DomainSpec struct {
	Name      string
	MemoryMiB uint
	VCPUs     uint
	OSVariant string
	DiskPath  string
	ISOPath   string
	Network   string
}

// libosinfoNamespace is the metadata namespace tools like virt-manager use
// to pick up the guest OS identity.
const libosinfoNamespace = "http://libosinfo.org/xmlns/libvirt/domain/1.0"

// osinfoMetadata builds the libosinfo metadata block carrying the OS-variant
// hint, the XML-define equivalent of virt-install's --os-variant. Nil when
// no hint is known; the hint only tunes virtual hardware defaults.
func osinfoMetadata(variant string) *libvirtxml.DomainMetadata {
	if variant == "" {
		return nil
	}
	return &libvirtxml.DomainMetadata{
		XML: fmt.Sprintf(`<libosinfo:libosinfo xmlns:libosinfo=%q><libosinfo:os id=%q/></libosinfo:libosinfo>`,
			libosinfoNamespace, variant),
	}
}

// GenerateDomainXML generates libvirt domain XML for a test VM.
//
// The layout is fixed: a qcow2 root disk on virtio (vda), the cloud-init
// ISO as a read-only SATA cdrom (sda), one virtio NIC on the NAT network,
// and a serial console. No graphics device is attached; everything these
// VMs do is reachable over SSH or the serial console.
func GenerateDomainXML(spec DomainSpec) (string, error) {
	if spec.Name == "" {
		return "", fmt.Errorf("domain name is required")
	}
	if spec.DiskPath == "" {
		return "", fmt.Errorf("disk path is required for domain %s", spec.Name)
	}

	memory := spec.MemoryMiB
	if memory == 0 {
		memory = 2048
	}
	vcpus := spec.VCPUs
	if vcpus == 0 {
		vcpus = 2
	}
	network := spec.Network
	if network == "" {
		network = DefaultNetwork
	}

	domain := &libvirtxml.Domain{
		Type:     "kvm",
		Name:     spec.Name,
		Metadata: osinfoMetadata(spec.OSVariant),
		Memory: &libvirtxml.DomainMemory{
			Value: memory,
			Unit:  "MiB",
		},
		VCPU: &libvirtxml.DomainVCPU{
			Placement: "static",
			Value:     vcpus,
		},
		OS: &libvirtxml.DomainOS{
			Type: &libvirtxml.DomainOSType{
				Arch: "x86_64",
				Type: "hvm",
			},
			BIOS: &libvirtxml.DomainBIOS{
				UseSerial: "yes",
			},
		},
		Features: &libvirtxml.DomainFeatureList{
			ACPI: &libvirtxml.DomainFeature{},
			APIC: &libvirtxml.DomainFeatureAPIC{},
		},
		CPU: &libvirtxml.DomainCPU{
			Mode: "host-model",
			Model: &libvirtxml.DomainCPUModel{
				Fallback: "allow",
			},
		},
		Clock: &libvirtxml.DomainClock{
			Offset: "utc",
			Timer: []libvirtxml.DomainTimer{
				{Name: "rtc", TickPolicy: "catchup"},
				{Name: "pit", TickPolicy: "delay"},
				{Name: "hpet", Present: "no"},
			},
		},
		OnPoweroff: "destroy",
		OnReboot:   "restart",
		OnCrash:    "restart",
		Devices: &libvirtxml.DomainDeviceList{
			MemBalloon: &libvirtxml.DomainMemBalloon{
				Model: "virtio",
			},
			RNGs: []libvirtxml.DomainRNG{
				{
					Model: "virtio",
					Backend: &libvirtxml.DomainRNGBackend{
						Random: &libvirtxml.DomainRNGBackendRandom{
							Device: "/dev/urandom",
						},
					},
				},
			},
		},
	}

	rootDisk := libvirtxml.DomainDisk{
		Device: "disk",
		Driver: &libvirtxml.DomainDiskDriver{
			Name:  "qemu",
			Type:  "qcow2",
			Cache: "none",
		},
		Source: &libvirtxml.DomainDiskSource{
			File: &libvirtxml.DomainDiskSourceFile{
				File: spec.DiskPath,
			},
		},
		Target: &libvirtxml.DomainDiskTarget{
			Dev: "vda",
			Bus: "virtio",
		},
		Boot: &libvirtxml.DomainDeviceBoot{
			Order: 1,
		},
	}
	domain.Devices.Disks = append(domain.Devices.Disks, rootDisk)

	if spec.ISOPath != "" {
		cdrom := libvirtxml.DomainDisk{
			Device: "cdrom",
			Driver: &libvirtxml.DomainDiskDriver{
				Name: "qemu",
				Type: "raw",
			},
			Source: &libvirtxml.DomainDiskSource{
				File: &libvirtxml.DomainDiskSourceFile{
					File: spec.ISOPath,
				},
			},
			Target: &libvirtxml.DomainDiskTarget{
				Dev: "sda",
				Bus: "sata",
			},
			ReadOnly: &libvirtxml.DomainDiskReadOnly{},
		}
		domain.Devices.Disks = append(domain.Devices.Disks, cdrom)
	}

	domain.Devices.Interfaces = []libvirtxml.DomainInterface{
		{
			Source: &libvirtxml.DomainInterfaceSource{
				Network: &libvirtxml.DomainInterfaceSourceNetwork{
					Network: network,
				},
			},
			Model: &libvirtxml.DomainInterfaceModel{
				Type: "virtio",
			},
		},
	}

	// Serial console only; these are headless throwaway guests.
	domain.Devices.Serials = []libvirtxml.DomainSerial{
		{
			Source: &libvirtxml.DomainChardevSource{
				Pty: &libvirtxml.DomainChardevSourcePty{},
			},
			Target: &libvirtxml.DomainSerialTarget{
				Port: func() *uint { p := uint(0); return &p }(),
			},
		},
	}
	domain.Devices.Consoles = []libvirtxml.DomainConsole{
		{
			Source: &libvirtxml.DomainChardevSource{
				Pty: &libvirtxml.DomainChardevSourcePty{},
			},
			Target: &libvirtxml.DomainConsoleTarget{
				Type: "serial",
				Port: func() *uint { p := uint(0); return &p }(),
			},
		},
	}

	xml, err := domain.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal domain XML for %s: %w", spec.Name, err)
	}

	return xml, nil
}
