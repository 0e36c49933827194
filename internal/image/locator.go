// Package image resolves and checks base cloud images on the host.
//
// Base images are read-only qcow2 templates named by per-distro conventions
// under a single configured directory. This package only ever reads: images
// are downloaded out of band and never created here.
package image

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cofront/conductor/internal/spec"
)

// ErrUnknownDistro is returned when a distribution has no naming rule.
var ErrUnknownDistro = errors.New("unknown distribution")

// filenameRule builds the expected base image filename for a version.
type filenameRule func(version string) string

// rules maps each supported distro to its base image naming convention.
// Data-driven so new distros are one entry, not another branch.
var rules = map[string]filenameRule{
	"fedora": func(v string) string { return fmt.Sprintf("fedora-cloud-base-%s.qcow2", v) },
	"debian": func(v string) string { return fmt.Sprintf("debian-cloud-base-%s.qcow2", v) },
	"ubuntu": func(v string) string {
		return fmt.Sprintf("ubuntu-cloud-base-%s.qcow2", strings.ReplaceAll(v, ".", "_"))
	},
	"centos": func(v string) string { return fmt.Sprintf("centos-cloud-base-%s.qcow2", v) },
	// RHEL images keep Red Hat's own naming, e.g. rhel-10.0-x86_64-kvm.qcow2.
	"rhel": func(v string) string { return fmt.Sprintf("rhel-%s-x86_64-kvm.qcow2", v) },
	"suse": func(v string) string { return fmt.Sprintf("suse-cloud-base-%s.qcow2", suseKey(v)) },
}

// suseKey converts a SUSE version to its filename key: dots become
// underscores, and a "sles" prefix is separated from the numeric remainder
// by an underscore ("sles15.5" -> "sles_15_5").
func suseKey(version string) string {
	key := strings.ReplaceAll(version, ".", "_")
	if strings.HasPrefix(version, "sles") {
		key = "sles_" + strings.TrimPrefix(key, "sles")
	}
	return key
}

// Locator resolves base image paths under a fixed image directory.
type Locator struct {
	imageDir string
}

// NewLocator creates a locator for the given image directory.
func NewLocator(imageDir string) *Locator {
	return &Locator{imageDir: imageDir}
}

// ResolvePath returns the expected base image path for a distro/version.
// Returns ErrUnknownDistro if the distro has no naming rule.
func (l *Locator) ResolvePath(distro, version string) (string, error) {
	rule, ok := rules[distro]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDistro, distro)
	}
	return filepath.Join(l.imageDir, rule(version)), nil
}

// Exists reports whether the base image for a distro/version is present.
// The only side effect is a stat.
func (l *Locator) Exists(distro, version string) (bool, error) {
	path, err := l.ResolvePath(distro, version)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat base image %s: %w", path, err)
	}
	return true, nil
}

// CheckAll verifies base images for every spec before any provisioning
// starts. It returns the complete list of specs whose images are missing,
// not just the first, so a batch can be rejected with a full report.
// Returns an error only for unknown distros or stat failures.
func (l *Locator) CheckAll(specs []spec.Spec) (missing []spec.Spec, err error) {
	for _, s := range specs {
		exists, err := l.Exists(s.Distro, s.Version)
		if err != nil {
			return nil, err
		}
		if !exists {
			missing = append(missing, s)
		}
	}
	return missing, nil
}
