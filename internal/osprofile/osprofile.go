// Package osprofile holds per-distribution knowledge as data: package
// manager commands, guest user defaults, and the libvirt os-variant hints
// used at domain creation.
//
// Everything distro-specific that used to be an if/elif chain lives in the
// tables here, keyed by distro (and version prefix for variants), so the
// other packages stay branch-free.
package osprofile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Profile describes how to drive one distribution's guests.
type Profile struct {
	// PackageManager is the guest package manager binary (dnf, apt-get, zypper).
	PackageManager string
	// UpdateCmd refreshes metadata and applies updates non-interactively.
	UpdateCmd string
	// InstallCmd installs packages non-interactively; package names are appended.
	InstallCmd string
	// PythonPackages are the distro's python3 + pip package names.
	PythonPackages []string
	// Shell is the login shell for the provisioned user.
	Shell string
	// RootUserBlock adds an explicit root user entry to user-data. Needed on
	// images that ship with the root account locked for console debugging.
	RootUserBlock bool
	// MinPython overrides the configured minimum Python version for the
	// agent-install preflight. Empty means use the configured policy.
	MinPython string
}

// profiles is the distro capability table.
var profiles = map[string]Profile{
	"fedora": {
		PackageManager: "dnf",
		UpdateCmd:      "dnf -y update",
		InstallCmd:     "dnf -y install",
		PythonPackages: []string{"python3", "python3-pip"},
		Shell:          "/bin/bash",
	},
	"debian": {
		PackageManager: "apt-get",
		UpdateCmd:      "DEBIAN_FRONTEND=noninteractive apt-get update && DEBIAN_FRONTEND=noninteractive apt-get -y upgrade",
		InstallCmd:     "DEBIAN_FRONTEND=noninteractive apt-get -y install",
		PythonPackages: []string{"python3", "python3-pip", "python3-venv"},
		Shell:          "/bin/bash",
	},
	"ubuntu": {
		PackageManager: "apt-get",
		UpdateCmd:      "DEBIAN_FRONTEND=noninteractive apt-get update && DEBIAN_FRONTEND=noninteractive apt-get -y upgrade",
		InstallCmd:     "DEBIAN_FRONTEND=noninteractive apt-get -y install",
		PythonPackages: []string{"python3", "python3-pip", "python3-venv"},
		Shell:          "/bin/bash",
	},
	"centos": {
		PackageManager: "dnf",
		UpdateCmd:      "dnf -y update",
		InstallCmd:     "dnf -y install",
		PythonPackages: []string{"python3", "python3-pip"},
		Shell:          "/bin/bash",
	},
	"rhel": {
		PackageManager: "dnf",
		UpdateCmd:      "dnf -y update",
		InstallCmd:     "dnf -y install",
		PythonPackages: []string{"python3", "python3-pip"},
		Shell:          "/bin/bash",
		RootUserBlock:  true,
	},
	"suse": {
		PackageManager: "zypper",
		UpdateCmd:      "zypper --non-interactive refresh && zypper --non-interactive update",
		InstallCmd:     "zypper --non-interactive install",
		PythonPackages: []string{"python3", "python3-pip"},
		Shell:          "/bin/bash",
		RootUserBlock:  true,
	},
}

// Lookup returns the profile for a distribution.
func Lookup(distro string) (Profile, error) {
	p, ok := profiles[distro]
	if !ok {
		return Profile{}, fmt.Errorf("no profile for distribution %q", distro)
	}
	return p, nil
}

// osVariants maps distro -> exact version -> libvirt os-variant hint.
// Versions absent from the table fall back to the nearest known major
// version at or below the requested one (see Variant).
var osVariants = map[string]map[string]string{
	"fedora": {
		"40": "fedora40",
		"41": "fedora40",
		"42": "fedora40",
	},
	"debian": {
		"10": "debian10",
		"11": "debian11",
		"12": "debian12",
	},
	"ubuntu": {
		"20.04": "ubuntu20.04",
		"22.04": "ubuntu22.04",
		"24.04": "ubuntu24.04",
	},
	"centos": {
		"8":  "centos-stream8",
		"9":  "centos-stream9",
		"10": "centos-stream9",
	},
	"rhel": {
		"8":    "rhel8.10",
		"9":    "rhel9.4",
		"9.4":  "rhel9.4",
		"10":   "rhel9.4",
		"10.0": "rhel9.4",
	},
	"suse": {
		"15":         "opensuse15.5",
		"15.5":       "opensuse15.5",
		"15.6":       "opensuse15.5",
		"sles15":     "sle15",
		"sles15.5":   "sle15",
		"tumbleweed": "opensusetumbleweed",
	},
}

// genericVariant is the hint used when nothing in the table applies.
const genericVariant = "linux2022"

// Variant returns the libvirt os-variant hint for a distro/version.
//
// Exact matches win. Otherwise the version's major component is tried, then
// the nearest known numeric major at or below it; a version older than
// everything in the table gets the oldest known entry. Unknown distros and
// non-numeric unmatched versions degrade to a generic hint rather than
// failing, since the hint only tunes virtual hardware defaults.
func Variant(distro, version string) string {
	table, ok := osVariants[distro]
	if !ok {
		return genericVariant
	}

	if v, ok := table[version]; ok {
		return v
	}

	major := majorOf(version)
	if v, ok := table[major]; ok {
		return v
	}

	// Nearest known numeric major at or below the requested one.
	want, err := strconv.Atoi(major)
	if err != nil {
		return genericVariant
	}

	var knownMajors []int
	for k := range table {
		if n, err := strconv.Atoi(majorOf(k)); err == nil {
			knownMajors = append(knownMajors, n)
		}
	}
	if len(knownMajors) == 0 {
		return genericVariant
	}
	sort.Ints(knownMajors)

	best := knownMajors[0]
	for _, n := range knownMajors {
		if n <= want {
			best = n
		}
	}
	if v, ok := table[strconv.Itoa(best)]; ok {
		return v
	}
	// The nearest major may only exist in dotted form (e.g. "9.4").
	for _, k := range sortedKeys(table) {
		if majorOf(k) == strconv.Itoa(best) {
			return table[k]
		}
	}
	return genericVariant
}

// majorOf returns the numeric component before the first dot, with any
// "sles" prefix stripped.
func majorOf(version string) string {
	v := strings.TrimPrefix(version, "sles")
	if idx := strings.Index(v, "."); idx >= 0 {
		v = v[:idx]
	}
	return v
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
