// Package spec parses user-supplied VM specs of the form "distro:version".
package spec

import (
	"fmt"
	"strings"
)

// Spec identifies a distribution/version pair requested for VM creation.
// Immutable once parsed; version format is distro-specific and is not
// validated here (an unknown version surfaces later as a missing base image).
type Spec struct {
	Distro  string
	Version string
}

// String returns the canonical "distro:version" form.
func (s Spec) String() string {
	return s.Distro + ":" + s.Version
}

// Parse parses a comma-separated list of spec tokens. Each token is either
// "distro:version" or a bare "version", in which case the distro defaults to
// defaultDistro. Order is preserved and duplicates are permitted.
func Parse(list, defaultDistro string) ([]Spec, error) {
	var specs []Spec
	for _, token := range strings.Split(list, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		s, err := ParseOne(token, defaultDistro)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("no VM specs in %q", list)
	}
	return specs, nil
}

// ParseOne parses a single spec token. The split is on the first colon, so a
// version may itself contain colons (none do today, but the rule is fixed).
func ParseOne(token, defaultDistro string) (Spec, error) {
	distro := defaultDistro
	version := token

	if idx := strings.Index(token, ":"); idx >= 0 {
		distro = strings.TrimSpace(token[:idx])
		version = strings.TrimSpace(token[idx+1:])
	}

	distro = strings.ToLower(distro)
	if distro == "" {
		return Spec{}, fmt.Errorf("spec %q has an empty distro", token)
	}
	if version == "" {
		return Spec{}, fmt.Errorf("spec %q has an empty version", token)
	}

	return Spec{Distro: distro, Version: version}, nil
}
