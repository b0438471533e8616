package deb

import (
	"fmt"
	"os"
)

// Rule is a single declarative action applied against the build context.
// Rules are pure with respect to the Package but mutate the BuildContext:
// staging filesystem state, the post-install command list, or the symlink
// list. They run strictly in declared order; there is no other dispatch.
type Rule interface {
	Apply(pkg *Package, ctx *BuildContext) error
}

// FileRule places a file at an absolute installation-root path. Content is
// read from Source when set, otherwise taken from Content. Missing parent
// directories are created with mode 0755.
type FileRule struct {
	// Source is a local filesystem path to read the content from.
	Source string

	// Content is the inline file content, used when Source is empty.
	Content []byte

	// Dest is the absolute path of the file on the installed system.
	Dest string

	// Mode is the file permission mode. Zero means 0644.
	Mode os.FileMode
}

func (r FileRule) Apply(pkg *Package, ctx *BuildContext) error {
	if r.Dest == "" {
		return fmt.Errorf("file rule: destination must not be empty")
	}
	mode := r.Mode
	if mode == 0 {
		mode = 0o644
	}
	content := r.Content
	if r.Source != "" {
		var err error
		content, err = os.ReadFile(r.Source)
		if err != nil {
			return fmt.Errorf("reading %s: %w", r.Source, err)
		}
	}
	dst, err := ctx.Staging().DataPath(r.Dest, 0o755)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, content, mode); err != nil {
		return fmt.Errorf("writing %s: %w", r.Dest, err)
	}
	// WriteFile's mode argument is masked by the umask on creation.
	if err := os.Chmod(dst, mode); err != nil {
		return fmt.Errorf("setting mode on %s: %w", r.Dest, err)
	}
	return nil
}

// DirRule creates a directory at an absolute installation-root path. A
// non-empty Owner defers a recursive chown to the postinst script.
type DirRule struct {
	// Path is the absolute path of the directory on the installed system.
	Path string

	// Owner and Group name the deferred ownership of the directory tree.
	Owner string
	Group string
}

func (r DirRule) Apply(pkg *Package, ctx *BuildContext) error {
	if r.Path == "" {
		return fmt.Errorf("directory rule: path must not be empty")
	}
	_, err := ctx.MakeDataDir(r.Path, r.Owner, r.Group)
	return err
}

// SymlinkRule records a symbolic link to be materialized inside the data
// tree after all rules have run. Source is the absolute installation-root
// path the link points at; LinkName is where the link itself lives.
type SymlinkRule struct {
	Source   string
	LinkName string
}

func (r SymlinkRule) Apply(pkg *Package, ctx *BuildContext) error {
	if r.Source == "" || r.LinkName == "" {
		return fmt.Errorf("symlink rule: source and link name must not be empty")
	}
	ctx.AddSymlink(r.Source, r.LinkName)
	return nil
}

// CommandRule appends a raw shell command to the postinst configure branch.
// The command is emitted verbatim; the caller is responsible for quoting.
type CommandRule struct {
	Command string
}

func (r CommandRule) Apply(pkg *Package, ctx *BuildContext) error {
	if r.Command == "" {
		return fmt.Errorf("command rule: command must not be empty")
	}
	ctx.AppendPostInst(r.Command)
	return nil
}
