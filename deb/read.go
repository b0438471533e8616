package deb

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/blakesmith/ar"
)

// ArtifactFile is one entry extracted from a built archive's data tarball.
type ArtifactFile struct {
	// Mode is the permission mode recorded in the tar header.
	Mode int64

	// Body is the file content. Empty for directories and symlinks.
	Body string

	// Link is the symlink target when the entry is a symbolic link.
	Link string

	// Dir reports whether the entry is a directory.
	Dir bool
}

// Artifact is the parsed form of a built .deb archive, used to inspect a
// finished package without dpkg.
type Artifact struct {
	// Members lists the ar member names in the order they appear.
	Members []string

	// DebianBinary is the raw content of the debian-binary member.
	DebianBinary string

	// ControlFiles maps control tarball entry names (control, conffiles,
	// postinst, md5sums, ...) to their content.
	ControlFiles map[string]string

	// DataFiles maps absolute installation-root paths to data tarball
	// entries.
	DataFiles map[string]ArtifactFile
}

// ReadArtifact parses a .deb stream into an Artifact.
func ReadArtifact(r io.Reader) (*Artifact, error) {
	a := &Artifact{
		ControlFiles: make(map[string]string),
		DataFiles:    make(map[string]ArtifactFile),
	}

	arR := ar.NewReader(r)
	for {
		header, err := arR.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading ar header: %w", err)
		}
		// Some ar writers pad member names with a trailing slash.
		name := strings.TrimSuffix(strings.TrimSpace(header.Name), "/")
		a.Members = append(a.Members, name)

		switch {
		case name == string(PkgDebianBinary):
			var buf bytes.Buffer
			if _, err := io.Copy(&buf, arR); err != nil {
				return nil, fmt.Errorf("reading %s: %w", PkgDebianBinary, err)
			}
			a.DebianBinary = buf.String()

		case strings.HasPrefix(name, "control.tar"):
			if err := a.readControlTar(arR, name); err != nil {
				return nil, err
			}

		case strings.HasPrefix(name, "data.tar"):
			if err := a.readDataTar(arR, name); err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

func (a *Artifact) readControlTar(r io.Reader, name string) error {
	tr, closeFn, err := tarReader(r, name)
	if err != nil {
		return fmt.Errorf("opening %s: %w", name, err)
	}
	defer closeFn()

	for {
		th, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading control tar header: %w", err)
		}
		if th.Typeflag != tar.TypeReg {
			continue
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, tr); err != nil {
			return fmt.Errorf("reading %s: %w", th.Name, err)
		}
		a.ControlFiles[path.Base(th.Name)] = buf.String()
	}
}

func (a *Artifact) readDataTar(r io.Reader, name string) error {
	tr, closeFn, err := tarReader(r, name)
	if err != nil {
		return fmt.Errorf("opening %s: %w", name, err)
	}
	defer closeFn()

	for {
		th, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading data tar header: %w", err)
		}

		destPath := "/" + strings.TrimPrefix(path.Clean(th.Name), "./")
		entry := ArtifactFile{Mode: th.Mode}

		switch th.Typeflag {
		case tar.TypeDir:
			entry.Dir = true
		case tar.TypeSymlink:
			entry.Link = th.Linkname
		case tar.TypeReg:
			var buf bytes.Buffer
			if _, err := io.Copy(&buf, tr); err != nil {
				return fmt.Errorf("reading %s: %w", th.Name, err)
			}
			entry.Body = buf.String()
		default:
			continue
		}
		a.DataFiles[destPath] = entry
	}
}

// tarReader wraps r in a tar reader, inserting a gzip layer when the member
// name carries a .gz suffix.
func tarReader(r io.Reader, name string) (*tar.Reader, func() error, error) {
	if strings.HasSuffix(name, ".gz") {
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return tar.NewReader(gzr), gzr.Close, nil
	}
	return tar.NewReader(r), func() error { return nil }, nil
}

// ParseControl parses the raw text of a Debian control file into a field
// map. Continuation lines (leading space or tab) fold into the value of the
// preceding field, so a multi-line Description round-trips as one value.
// Installed-Size is derived at build time and is ignored when reading.
func ParseControl(content string) map[ControlField]string {
	fields := make(map[ControlField]string)

	var currentKey ControlField
	var currentValue strings.Builder
	flush := func() {
		if currentKey != "" && currentKey != FieldInstalledSize {
			fields[currentKey] = currentValue.String()
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			currentValue.WriteString("\n" + line)
		} else if strings.Contains(line, ":") {
			flush()
			parts := strings.SplitN(line, ":", 2)
			currentKey = ControlField(parts[0])
			currentValue.Reset()
			currentValue.WriteString(strings.TrimSpace(parts[1]))
		}
	}
	flush()
	return fields
}
