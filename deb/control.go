package deb

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// renderControl builds the ordered control record for the package. Field
// presence is conditional: optional fields are omitted when the source value
// is absent or empty. With binary set, the record describes a binary
// package (Package field present); otherwise it describes a source package
// and the architecture list is extended with "source".
func renderControl(pkg *Package, binary bool, installedBytes int64) string {
	var archs []string
	if binary {
		archs = pkg.Architecture.Resolve()
	} else {
		archs = pkg.Architecture.resolveSource()
	}

	var b strings.Builder
	writeField := func(field ControlField, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", field, value)
		}
	}

	writeField(FieldSource, pkg.Name)
	if binary {
		writeField(FieldPackage, pkg.Name)
	}
	writeField(FieldVersion, pkg.Version)
	writeField(FieldArchitecture, strings.Join(archs, " "))
	writeField(FieldMaintainer, pkg.Maintainer())

	// Installed-Size is in kilobytes, rounded up.
	if binary {
		kbytes := (installedBytes + 1023) / 1024
		writeField(FieldInstalledSize, fmt.Sprintf("%d", kbytes))
	}

	writeField(FieldSection, pkg.Section)
	writeField(FieldPriority, pkg.Priority)
	writeField(FieldHomepage, pkg.Homepage)

	if len(pkg.Depends) > 0 {
		writeField(FieldDepends, strings.Join(pkg.Depends, ", "))
	}
	if len(pkg.Conflicts) > 0 {
		writeField(FieldConflicts, strings.Join(pkg.Conflicts, ", "))
	}

	// Description goes last: synopsis, then the extended body as a single
	// indented continuation line.
	fmt.Fprintf(&b, "%s: %s\n %s\n", FieldDescription,
		endingInPeriod(pkg.Description), endingInPeriod(pkg.LongDescription))

	return b.String()
}

// endingInPeriod appends a period unless the string already ends with one.
func endingInPeriod(s string) string {
	if s == "" || strings.HasSuffix(s, ".") {
		return s
	}
	return s + "."
}

func (c *BuildContext) writeControl(pkg *Package) error {
	size, err := c.installedSize()
	if err != nil {
		return err
	}
	content := renderControl(pkg, true, size)
	path := c.staging.ControlPath(string(FileControl))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing control: %w", err)
	}
	return nil
}

// installedSize sums the sizes of all regular files in the data tree.
func (c *BuildContext) installedSize() (int64, error) {
	var total int64
	err := filepath.WalkDir(c.staging.data, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sizing data tree: %w", err)
	}
	return total, nil
}

// renderPostInst emits the fixed maintainer-script skeleton with one line
// per accumulated post-install command in the configure branch.
func renderPostInst(commands []string) string {
	lines := []string{
		"#!/bin/sh",
		"# postinst script generated by debwrap.",
		"set -e",
		`case "$1" in`,
		"    configure)",
	}
	for _, cmd := range commands {
		lines = append(lines, "        "+cmd)
	}
	lines = append(lines,
		"    ;;",
		"",
		"    abort-upgrade|abort-remove|abort-deconfigure)",
		"    ;;",
		"",
		"    *)",
		"        echo \"postinst called with unknown argument \\`$1'\" >&2",
		"        exit 1",
		"    ;;",
		"esac",
		"",
		"exit 0",
		"",
	)
	return strings.Join(lines, "\n")
}

func (c *BuildContext) writePostInst() error {
	path := c.staging.ControlPath(string(FilePostinst))
	if err := os.WriteFile(path, []byte(renderPostInst(c.postInst)), 0o755); err != nil {
		return fmt.Errorf("writing postinst: %w", err)
	}
	// Executable bit must survive the umask.
	if err := os.Chmod(path, 0o755); err != nil {
		return fmt.Errorf("marking postinst executable: %w", err)
	}
	return nil
}

func (c *BuildContext) writeCopyright(pkg *Package) error {
	dst, err := c.staging.DataPath("/usr/share/doc/"+pkg.Name+"/copyright", 0o755)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, []byte(pkg.Copyright), 0o644); err != nil {
		return fmt.Errorf("writing copyright: %w", err)
	}
	return nil
}

// writeConffiles walks the staged /etc tree and lists every regular file as
// an absolute /etc/... path, sorted lexicographically for deterministic
// output. An empty list writes no conffiles file at all.
func (c *BuildContext) writeConffiles() error {
	etc, err := c.staging.DataDirPath("/etc", 0o755, false)
	if err != nil {
		return err
	}

	var conffiles []string
	err = filepath.WalkDir(etc, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == etc {
				return filepath.SkipAll
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(etc, path)
		if err != nil {
			return err
		}
		conffiles = append(conffiles, "/etc/"+filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return fmt.Errorf("listing conffiles: %w", err)
	}
	if len(conffiles) == 0 {
		return nil
	}

	sort.Strings(conffiles)
	content := strings.Join(conffiles, "\n") + "\n"
	if err := os.WriteFile(c.staging.ControlPath(string(FileConffiles)), []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing conffiles: %w", err)
	}
	return nil
}

// writeMd5sums records the md5 checksum of every regular file in the data
// tree, sorted by path, in the "<hash>  <relative path>" format dpkg uses.
func (c *BuildContext) writeMd5sums() error {
	sums := make(map[string]string)
	err := filepath.WalkDir(c.staging.data, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(c.staging.data, path)
		if err != nil {
			return err
		}
		hash := md5.Sum(content)
		sums[filepath.ToSlash(rel)] = hex.EncodeToString(hash[:])
		return nil
	})
	if err != nil {
		return fmt.Errorf("hashing data tree: %w", err)
	}

	var paths []string
	for path := range sums {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, path := range paths {
		fmt.Fprintf(&b, "%s  %s\n", sums[path], path)
	}
	if err := os.WriteFile(c.staging.ControlPath(string(FileMd5sums)), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing md5sums: %w", err)
	}
	return nil
}

// writeSymlinks materializes every recorded symlink inside the data tree.
// This is a deferred finalization step, run once after all rules.
func (c *BuildContext) writeSymlinks() error {
	for _, link := range c.symlinks {
		linkPath, err := c.staging.DataPath(link.LinkName, 0o755)
		if err != nil {
			return err
		}
		c.logger.Info().
			Str("source", link.Source).
			Str("link", link.LinkName).
			Msg("creating symlink")
		if err := os.Symlink(link.Source, linkPath); err != nil {
			return fmt.Errorf("creating symlink %s: %w", link.LinkName, err)
		}
	}
	return nil
}
