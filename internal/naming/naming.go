// Package naming defines the domain-name conventions for conductor-managed
// VMs. Every name is {prefix}-{distro}-{version}-{index}; the prefix is what
// lets lifecycle commands tell conductor's domains apart from anything else
// defined on the hypervisor.
package naming

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cofront/conductor/internal/spec"
)

// DomainName returns the libvirt domain name for one VM instance.
// Format: {prefix}-{distro}-{version}-{index}, index starting at 1.
func DomainName(prefix string, s spec.Spec, index int) string {
	return fmt.Sprintf("%s-%s-%s-%d", prefix, s.Distro, s.Version, index)
}

// Expand produces the full ordered name list for a batch create: count
// instances per spec, in spec order.
//
// Example: specs [fedora:42, debian:12], count 2 →
// [p-fedora-42-1, p-fedora-42-2, p-debian-12-1, p-debian-12-2].
func Expand(prefix string, specs []spec.Spec, count int) []string {
	names := make([]string, 0, len(specs)*count)
	for _, s := range specs {
		for i := 1; i <= count; i++ {
			names = append(names, DomainName(prefix, s, i))
		}
	}
	return names
}

// Parsed is a domain name decomposed back into its parts.
type Parsed struct {
	Distro  string
	Version string
	Index   int
}

// Parse decomposes a conductor domain name. Returns false when the name does
// not carry the prefix or does not follow the conductor format.
//
// The version may itself contain dashes ("sles-15" style names do not occur
// today, but dotted versions do), so the distro is taken from the first
// segment and the index from the last; everything between is the version.
func Parse(prefix, name string) (Parsed, bool) {
	rest, ok := strings.CutPrefix(name, prefix+"-")
	if !ok {
		return Parsed{}, false
	}

	parts := strings.Split(rest, "-")
	if len(parts) < 3 {
		return Parsed{}, false
	}

	index, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || index < 1 {
		return Parsed{}, false
	}

	return Parsed{
		Distro:  parts[0],
		Version: strings.Join(parts[1:len(parts)-1], "-"),
		Index:   index,
	}, true
}

// HasPrefix reports whether a domain name belongs to the given prefix.
func HasPrefix(prefix, name string) bool {
	return strings.HasPrefix(name, prefix+"-")
}
