package deb

import (
	"fmt"
	"os/exec"
	"strings"
)

// Package is the declarative description of a binary Debian package.
// It is immutable with respect to a build: rules read it but mutate only the
// BuildContext.
type Package struct {
	// Name is the package name. It must consist only of lower case letters
	// (a-z), digits (0-9), plus (+) and minus (-) signs, and periods (.).
	//
	// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#s-f-package
	Name string

	// Version is the package version. The format is: [epoch:]upstream_version[-debian_revision].
	//
	// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#s-f-version
	Version string

	// Architecture selects the hardware architectures the package targets.
	// The zero value auto-detects the host architecture at render time.
	//
	// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#s-f-architecture
	Architecture Architecture

	// MaintainerName and MaintainerEmail identify the person responsible for
	// the package, rendered as "Name <email>".
	//
	// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#s-f-maintainer
	MaintainerName  string
	MaintainerEmail string

	// Description is the package synopsis. LongDescription is the extended
	// body rendered as a single indented continuation line. Both are forced
	// to end with a period.
	//
	// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#s-f-description
	Description     string
	LongDescription string

	// Homepage is the URL of the upstream project's home page. Optional.
	Homepage string

	// Section classifies the package into a category (e.g., "utils", "web"). Optional.
	Section string

	// Priority represents the importance of the package (e.g., "optional"). Optional.
	Priority string

	// Depends lists dependency specifiers, e.g. "libc6 (>= 2.31)".
	//
	// Reference: https://www.debian.org/doc/debian-policy/ch-relationships.html#s-binarydeps
	Depends []string

	// Conflicts lists packages that cannot be installed together with this one.
	//
	// Reference: https://www.debian.org/doc/debian-policy/ch-relationships.html#s-conflicts
	Conflicts []string

	// Copyright is written verbatim to /usr/share/doc/<name>/copyright.
	Copyright string

	// Rules is the ordered list of actions staging the package payload.
	// Order is a contract: later rules may depend on filesystem state
	// created by earlier ones.
	Rules []Rule
}

// Validate checks the description before any filesystem mutation begins.
func (p *Package) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("package name must not be empty")
	}
	if p.Version == "" {
		return fmt.Errorf("package %s: version must not be empty", p.Name)
	}
	return nil
}

// Maintainer returns the control-file rendering of the maintainer,
// "Name <email>", or the empty string when neither part is set.
func (p *Package) Maintainer() string {
	if p.MaintainerName == "" && p.MaintainerEmail == "" {
		return ""
	}
	return fmt.Sprintf("%s <%s>", p.MaintainerName, p.MaintainerEmail)
}

// Architecture is a sum over the three ways a package description can select
// its target architectures: a single value, an explicit list, or host
// auto-detection. The choice is made at construction time, not at render
// time.
type Architecture struct {
	values []string
}

// Arch selects one or more explicit architecture values.
func Arch(values ...string) Architecture {
	return Architecture{values: values}
}

// HostArchitecture selects auto-detection of the build host's architecture.
// This is also the zero value of Architecture.
func HostArchitecture() Architecture {
	return Architecture{}
}

// hostArchProbe asks dpkg for the host architecture. Overridable in tests.
var hostArchProbe = func() (string, error) {
	out, err := exec.Command("dpkg", "--print-architecture").Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Resolve returns the non-empty architecture list used for control
// rendering. Auto-detection that fails for any reason falls back to "any".
func (a Architecture) Resolve() []string {
	if len(a.values) > 0 {
		return append([]string(nil), a.values...)
	}
	out, err := hostArchProbe()
	arch := strings.TrimSpace(out)
	if err != nil || arch == "" {
		return []string{"any"}
	}
	return []string{arch}
}

// resolveSource returns the architecture list for a source-package control
// file, which must always include "source".
func (a Architecture) resolveSource() []string {
	archs := a.Resolve()
	for _, v := range archs {
		if v == "source" {
			return archs
		}
	}
	return append(archs, "source")
}
