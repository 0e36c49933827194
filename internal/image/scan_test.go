package image

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestScan(t *testing.T) {
	dir := t.TempDir()
	l := NewLocator(dir)

	files := []string{
		"fedora-cloud-base-42.qcow2",
		"fedora-cloud-base-41.qcow2",
		"fedora-cloud-base-42.qcow2.bak", // ignored: wrong suffix
		"debian-cloud-base-12.qcow2",
		"ubuntu-cloud-base-24_04.qcow2",
		"rhel-10.0-x86_64-kvm.qcow2",
		"rhel-9-x86_64-kvm.qcow2",
		"rhel-cloud-base-8_10.qcow2",
		"suse-cloud-base-sles_15_5.qcow2",
		"suse-cloud-base-15_6.qcow2",
		"suse-cloud-base-tumbleweed.qcow2",
		"random-disk.qcow2", // ignored: no pattern
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("stub"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	detected, err := l.Scan()
	if err != nil {
		t.Fatal(err)
	}

	if got := detected["fedora"]; !reflect.DeepEqual(got, []string{"42", "41"}) {
		t.Errorf("fedora = %v, want [42 41]", got)
	}
	if got := detected["debian"]; !reflect.DeepEqual(got, []string{"12"}) {
		t.Errorf("debian = %v, want [12]", got)
	}
	if got := detected["ubuntu"]; !reflect.DeepEqual(got, []string{"24.04"}) {
		t.Errorf("ubuntu = %v, want [24.04]", got)
	}

	rhel := detected["rhel"]
	if len(rhel) != 3 {
		t.Fatalf("rhel = %v, want 3 versions", rhel)
	}
	for _, want := range []string{"10.0", "9", "8.10"} {
		found := false
		for _, v := range rhel {
			if v == want {
				found = true
			}
		}
		if !found {
			t.Errorf("rhel versions %v missing %q", rhel, want)
		}
	}

	suse := detected["suse"]
	for _, want := range []string{"sles15.5", "15.6", "tumbleweed"} {
		found := false
		for _, v := range suse {
			if v == want {
				found = true
			}
		}
		if !found {
			t.Errorf("suse versions %v missing %q", suse, want)
		}
	}

	if _, ok := detected["centos"]; ok {
		t.Error("centos should not be detected")
	}
}

func TestScanMissingDirectory(t *testing.T) {
	l := NewLocator("/does/not/exist")
	if _, err := l.Scan(); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestScanRoundTrip(t *testing.T) {
	// Every scanned version must resolve back to the file it was found in.
	dir := t.TempDir()
	l := NewLocator(dir)

	files := []string{
		"ubuntu-cloud-base-22_04.qcow2",
		"suse-cloud-base-sles_15_5.qcow2",
		"rhel-10.0-x86_64-kvm.qcow2",
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("stub"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	detected, err := l.Scan()
	if err != nil {
		t.Fatal(err)
	}

	for distro, versions := range detected {
		for _, v := range versions {
			exists, err := l.Exists(distro, v)
			if err != nil {
				t.Fatalf("Exists(%s, %s): %v", distro, v, err)
			}
			if !exists {
				t.Errorf("scanned %s %s does not resolve back to a present file", distro, v)
			}
		}
	}
}
