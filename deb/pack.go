package deb

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/blakesmith/ar"
)

// PackOptions controls the final serialization step.
type PackOptions struct {
	// RunLintian checks the finished artifact with lintian in verbose,
	// pedantic mode. A missing lintian binary never fails the build.
	RunLintian bool

	// FailOnLint turns lintian-reported defects into a fatal build error.
	FailOnLint bool

	// LintOutput receives lintian's output. Defaults to io.Discard.
	LintOutput io.Writer

	// SignKey is an ASCII-armored PGP private key. When set, a detached
	// signature over the three archive members is appended as a _gpgorigin
	// member, the way debsigs does.
	SignKey string
}

// Pack serializes the staged control and data trees into a .deb archive at
// destination: both trees are gzip-compressed into tar streams written to
// temporary files under the scratch root, then concatenated after the fixed
// "2.0\n" format marker into an ar container. Any pre-existing destination
// file is removed first. Member order is load-bearing: dpkg expects the
// format marker before everything else.
func (c *BuildContext) Pack(destination string, opts PackOptions) error {
	controlTarball := filepath.Join(c.staging.root, string(PkgControlTarGz))
	dataTarball := filepath.Join(c.staging.root, string(PkgDataTarGz))

	if err := tarGzTree(controlTarball, c.staging.control); err != nil {
		return fmt.Errorf("compressing control tree: %w", err)
	}
	if err := tarGzTree(dataTarball, c.staging.data); err != nil {
		return fmt.Errorf("compressing data tree: %w", err)
	}

	debianBinary := filepath.Join(c.staging.root, string(PkgDebianBinary))
	if err := os.WriteFile(debianBinary, []byte(debianBinaryContent), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", PkgDebianBinary, err)
	}

	if err := os.Remove(destination); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale %s: %w", destination, err)
	}

	if err := c.writeArchive(destination, opts.SignKey); err != nil {
		return err
	}

	if opts.RunLintian {
		return c.runLintian(destination, opts)
	}
	return nil
}

// writeArchive assembles the ar container from the three staged member
// files, in fixed order, optionally followed by a signature member.
func (c *BuildContext) writeArchive(destination, signKey string) error {
	members := []PackageFile{PkgDebianBinary, PkgControlTarGz, PkgDataTarGz}

	f, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destination, err)
	}
	defer f.Close()

	arW := ar.NewWriter(f)
	if err := arW.WriteGlobalHeader(); err != nil {
		return fmt.Errorf("writing ar global header: %w", err)
	}

	var signed bytes.Buffer
	for _, member := range members {
		content, err := os.ReadFile(filepath.Join(c.staging.root, string(member)))
		if err != nil {
			return fmt.Errorf("reading %s: %w", member, err)
		}
		signed.Write(content)
		if err := addMemberToAr(arW, member, content); err != nil {
			return fmt.Errorf("writing %s: %w", member, err)
		}
	}

	if signKey != "" {
		sig, err := detachedSign(signed.Bytes(), signKey)
		if err != nil {
			return fmt.Errorf("signing archive: %w", err)
		}
		if err := addMemberToAr(arW, PkgGpgOrigin, sig); err != nil {
			return fmt.Errorf("writing %s: %w", PkgGpgOrigin, err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", destination, err)
	}
	return nil
}

// addMemberToAr writes a named byte slice as a member of the AR archive
// with mode 0644 and the current timestamp.
func addMemberToAr(w *ar.Writer, name PackageFile, body []byte) error {
	header := &ar.Header{
		Name:    string(name),
		Size:    int64(len(body)),
		Mode:    0o644,
		ModTime: time.Now(),
	}
	if err := w.WriteHeader(header); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// tarGzTree compresses the directory tree rooted at root into a
// gzip-compressed tar stream at dest. Member names are relative to root in
// the "./path" form dpkg produces; directories and symlinks are preserved
// and every entry is owned by root:root.
func tarGzTree(dest, root string) (err error) {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		if d.Type()&fs.ModeSymlink != 0 {
			link, err = os.Readlink(path)
			if err != nil {
				return err
			}
		}

		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		header.Name = "./" + filepath.ToSlash(rel)
		if d.IsDir() {
			header.Name += "/"
		}
		header.Uid = 0
		header.Gid = 0
		header.Uname = "root"
		header.Gname = "root"

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
	if walkErr != nil {
		return walkErr
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}
	return f.Close()
}

// detachedSign produces a binary detached PGP signature over input using
// the first private key in the ASCII-armored keyring.
func detachedSign(input []byte, key string) ([]byte, error) {
	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(key))
	if err != nil {
		return nil, err
	}
	var signer *openpgp.Entity
	for _, e := range entities {
		if e.PrivateKey != nil {
			signer = e
			break
		}
	}
	if signer == nil {
		return nil, fmt.Errorf("no private key found")
	}

	var out bytes.Buffer
	if err := openpgp.DetachSign(&out, signer, bytes.NewReader(input), nil); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// runLintian checks the finished artifact. An absent lintian binary is
// tolerated; reported defects are fatal only when FailOnLint is set.
func (c *BuildContext) runLintian(destination string, opts PackOptions) error {
	if _, err := exec.LookPath("lintian"); err != nil {
		c.logger.Warn().Msg("lintian not found, skipping package check")
		return nil
	}

	out := opts.LintOutput
	if out == nil {
		out = io.Discard
	}
	cmd := exec.Command("lintian", "-v", "--color", "always", "--pedantic", destination)
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Run(); err != nil {
		if opts.FailOnLint {
			return fmt.Errorf("lintian reported problems with %s: %w", destination, err)
		}
		c.logger.Warn().Err(err).Str("package", destination).Msg("lintian reported problems")
	}
	return nil
}
