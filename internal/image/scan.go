package image

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

// scanPatterns extract a version from a base image filename. A distro may
// have several accepted patterns (RHEL images appear under both the vendor
// naming and a legacy local convention).
var scanPatterns = map[string][]*regexp.Regexp{
	"fedora": {regexp.MustCompile(`^fedora-cloud-base-(\d+)\.qcow2$`)},
	"debian": {regexp.MustCompile(`^debian-cloud-base-(\d+)\.qcow2$`)},
	"ubuntu": {regexp.MustCompile(`^ubuntu-cloud-base-(\d+)_(\d+)\.qcow2$`)},
	"centos": {regexp.MustCompile(`^centos-cloud-base-(\d+)\.qcow2$`)},
	"rhel": {
		regexp.MustCompile(`^rhel-(\d+\.\d+)-x86_64-kvm\.qcow2$`),
		regexp.MustCompile(`^rhel-(\d+)-x86_64-kvm\.qcow2$`),
		regexp.MustCompile(`^rhel-cloud-base-(\d+)(?:_(\d+))?\.qcow2$`),
	},
	"suse": {regexp.MustCompile(`^suse-cloud-base-((?:sles_)?\d+(?:_\d+)?|tumbleweed)\.qcow2$`)},
}

// Scan walks the image directory and reports detected base image versions
// per distribution, newest-looking first. Files that match no pattern are
// ignored.
func (l *Locator) Scan() (map[string][]string, error) {
	entries, err := os.ReadDir(l.imageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image directory %s: %w", l.imageDir, err)
	}

	detected := make(map[string][]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".qcow2") {
			continue
		}

		distro, version, ok := matchFilename(entry.Name())
		if ok {
			detected[distro] = append(detected[distro], version)
		}
	}

	for distro, versions := range detected {
		detected[distro] = dedupeSortedDesc(versions)
	}
	return detected, nil
}

// matchFilename tries every distro pattern against a filename and returns
// the distro and the decoded version on the first match.
func matchFilename(name string) (distro, version string, ok bool) {
	for d, patterns := range scanPatterns {
		for _, p := range patterns {
			m := p.FindStringSubmatch(name)
			if m == nil {
				continue
			}
			return d, decodeVersion(d, m), true
		}
	}
	return "", "", false
}

// decodeVersion converts capture groups back to the user-facing version
// string (underscore-encoded filenames become dotted versions).
func decodeVersion(distro string, m []string) string {
	switch distro {
	case "ubuntu":
		return m[1] + "." + m[2]
	case "rhel":
		if len(m) > 2 && m[2] != "" {
			return m[1] + "." + m[2]
		}
		return m[1]
	case "suse":
		key := m[1]
		if key == "tumbleweed" {
			return key
		}
		if strings.HasPrefix(key, "sles_") {
			return "sles" + strings.ReplaceAll(strings.TrimPrefix(key, "sles_"), "_", ".")
		}
		return strings.ReplaceAll(key, "_", ".")
	default:
		return m[1]
	}
}

func dedupeSortedDesc(versions []string) []string {
	seen := make(map[string]bool, len(versions))
	out := versions[:0]
	for _, v := range versions {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}
