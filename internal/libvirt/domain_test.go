package libvirt

import (
	"strings"
	"testing"

	"libvirt.org/go/libvirtxml"
)

func TestGenerateDomainXML(t *testing.T) {
	tests := []struct {
		name    string
		spec    DomainSpec
		wantErr bool
	}{
		{
			name: "full spec",
			spec: DomainSpec{
				Name:      "conductor-test-fedora-42-1",
				MemoryMiB: 4096,
				VCPUs:     4,
				DiskPath:  "/var/lib/libvirt/images/conductor-test-fedora-42-1.qcow2",
				ISOPath:   "/var/lib/libvirt/images/conductor-test-fedora-42-1-cloudinit.iso",
				Network:   "default",
			},
			wantErr: false,
		},
		{
			name: "defaults applied",
			spec: DomainSpec{
				Name:     "conductor-test-debian-12-1",
				DiskPath: "/var/lib/libvirt/images/conductor-test-debian-12-1.qcow2",
			},
			wantErr: false,
		},
		{
			name: "no ISO",
			spec: DomainSpec{
				Name:      "conductor-test-ubuntu-24_04-1",
				MemoryMiB: 2048,
				VCPUs:     2,
				DiskPath:  "/var/lib/libvirt/images/conductor-test-ubuntu-24_04-1.qcow2",
			},
			wantErr: false,
		},
		{
			name:    "missing name",
			spec:    DomainSpec{DiskPath: "/tmp/x.qcow2"},
			wantErr: true,
		},
		{
			name:    "missing disk",
			spec:    DomainSpec{Name: "conductor-test-fedora-42-1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			xml, err := GenerateDomainXML(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Errorf("GenerateDomainXML() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			if xml == "" {
				t.Error("GenerateDomainXML() returned empty XML")
				return
			}

			// The generated XML must round-trip through libvirtxml.
			var domain libvirtxml.Domain
			if err := domain.Unmarshal(xml); err != nil {
				t.Errorf("Generated XML cannot be unmarshaled: %v\nXML:\n%s", err, xml)
				return
			}

			validateDomainStructure(t, &domain, tt.spec)
		})
	}
}

func TestGenerateDomainXML_OSVariantHint(t *testing.T) {
	spec := DomainSpec{
		Name:      "conductor-test-fedora-42-1",
		DiskPath:  "/var/lib/libvirt/images/conductor-test-fedora-42-1.qcow2",
		OSVariant: "fedora40",
	}

	xml, err := GenerateDomainXML(spec)
	if err != nil {
		t.Fatalf("GenerateDomainXML() error = %v", err)
	}

	if !strings.Contains(xml, `<libosinfo:os id="fedora40"/>`) {
		t.Errorf("domain XML missing libosinfo os hint:\n%s", xml)
	}
	if !strings.Contains(xml, libosinfoNamespace) {
		t.Errorf("domain XML missing libosinfo namespace declaration:\n%s", xml)
	}

	spec.OSVariant = ""
	plain, err := GenerateDomainXML(spec)
	if err != nil {
		t.Fatalf("GenerateDomainXML() without variant error = %v", err)
	}
	if strings.Contains(plain, "libosinfo") {
		t.Errorf("domain XML without a variant should carry no libosinfo metadata:\n%s", plain)
	}
	if plain == xml {
		t.Error("variant hint had no effect on the generated XML")
	}
}

func validateDomainStructure(t *testing.T, domain *libvirtxml.Domain, spec DomainSpec) {
	t.Helper()

	if domain.Type != "kvm" {
		t.Errorf("domain type = %v, want kvm", domain.Type)
	}
	if domain.Name != spec.Name {
		t.Errorf("domain name = %v, want %v", domain.Name, spec.Name)
	}

	if domain.Memory == nil {
		t.Error("domain memory is nil")
	} else {
		wantMemory := spec.MemoryMiB
		if wantMemory == 0 {
			wantMemory = 2048
		}
		if domain.Memory.Value != wantMemory {
			t.Errorf("memory value = %v, want %v", domain.Memory.Value, wantMemory)
		}
		if domain.Memory.Unit != "MiB" {
			t.Errorf("memory unit = %v, want MiB", domain.Memory.Unit)
		}
	}

	if domain.VCPU == nil {
		t.Error("domain VCPU is nil")
	} else {
		wantVCPUs := spec.VCPUs
		if wantVCPUs == 0 {
			wantVCPUs = 2
		}
		if domain.VCPU.Value != wantVCPUs {
			t.Errorf("vcpu value = %v, want %v", domain.VCPU.Value, wantVCPUs)
		}
	}

	if domain.Devices == nil {
		t.Fatal("domain devices is nil")
	}

	wantDisks := 1
	if spec.ISOPath != "" {
		wantDisks = 2
	}
	if len(domain.Devices.Disks) != wantDisks {
		t.Fatalf("disk count = %v, want %v", len(domain.Devices.Disks), wantDisks)
	}

	root := domain.Devices.Disks[0]
	if root.Device != "disk" {
		t.Errorf("root disk device = %v, want disk", root.Device)
	}
	if root.Source == nil || root.Source.File == nil || root.Source.File.File != spec.DiskPath {
		t.Errorf("root disk source = %+v, want file %v", root.Source, spec.DiskPath)
	}
	if root.Target == nil || root.Target.Dev != "vda" || root.Target.Bus != "virtio" {
		t.Errorf("root disk target = %+v, want vda/virtio", root.Target)
	}
	if root.Driver == nil || root.Driver.Type != "qcow2" {
		t.Errorf("root disk driver = %+v, want qcow2", root.Driver)
	}

	if spec.ISOPath != "" {
		cdrom := domain.Devices.Disks[1]
		if cdrom.Device != "cdrom" {
			t.Errorf("cdrom device = %v, want cdrom", cdrom.Device)
		}
		if cdrom.Source == nil || cdrom.Source.File == nil || cdrom.Source.File.File != spec.ISOPath {
			t.Errorf("cdrom source = %+v, want file %v", cdrom.Source, spec.ISOPath)
		}
		if cdrom.Target == nil || cdrom.Target.Dev != "sda" || cdrom.Target.Bus != "sata" {
			t.Errorf("cdrom target = %+v, want sda/sata", cdrom.Target)
		}
		if cdrom.ReadOnly == nil {
			t.Error("cdrom should be read-only")
		}
	}

	if len(domain.Devices.Interfaces) != 1 {
		t.Fatalf("interface count = %v, want 1", len(domain.Devices.Interfaces))
	}
	iface := domain.Devices.Interfaces[0]
	wantNetwork := spec.Network
	if wantNetwork == "" {
		wantNetwork = DefaultNetwork
	}
	if iface.Source == nil || iface.Source.Network == nil || iface.Source.Network.Network != wantNetwork {
		t.Errorf("interface source = %+v, want network %v", iface.Source, wantNetwork)
	}
	if iface.Model == nil || iface.Model.Type != "virtio" {
		t.Errorf("interface model = %+v, want virtio", iface.Model)
	}

	// Headless layout: serial console, no graphics.
	if len(domain.Devices.Serials) != 1 {
		t.Errorf("serial count = %v, want 1", len(domain.Devices.Serials))
	}
	if len(domain.Devices.Consoles) != 1 {
		t.Errorf("console count = %v, want 1", len(domain.Devices.Consoles))
	}
	if len(domain.Devices.Graphics) != 0 {
		t.Errorf("graphics count = %v, want 0", len(domain.Devices.Graphics))
	}
}
