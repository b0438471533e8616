package deb

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"mvdan.cc/sh/v3/syntax"
)

// Symlink is a recorded (source, link name) pair. Source is the absolute
// installation-root path the link points at; LinkName is the absolute
// installation-root path of the link itself. Both live inside the staged
// data tree, matching how the installed symlink behaves.
type Symlink struct {
	Source   string
	LinkName string
}

// BuildContext is the mutable state accumulated during one build: the
// staging filesystem plus the ordered post-install command list and the
// ordered symlink list. It is created fresh per build and exclusively owns
// the staging filesystem's lifetime.
type BuildContext struct {
	staging  *Staging
	postInst []string
	symlinks []Symlink
	logger   zerolog.Logger
}

// NewBuildContext allocates a fresh build context with its own scratch
// filesystem. Pass zerolog.Nop() to silence build diagnostics.
func NewBuildContext(logger zerolog.Logger) (*BuildContext, error) {
	staging, err := newStaging()
	if err != nil {
		return nil, err
	}
	return &BuildContext{
		staging: staging,
		logger:  logger.With().Str("component", "build").Logger(),
	}, nil
}

// Staging returns the build's scratch filesystem.
func (c *BuildContext) Staging() *Staging { return c.staging }

// PostInstCommands returns the accumulated post-install shell commands in
// the order they were appended.
func (c *BuildContext) PostInstCommands() []string {
	return append([]string(nil), c.postInst...)
}

// AppendPostInst appends a shell command to the generated postinst script's
// configure branch.
func (c *BuildContext) AppendPostInst(command string) {
	c.postInst = append(c.postInst, command)
}

// AddSymlink records a symlink pair. The actual link is materialized inside
// the data tree once all rules have been applied.
func (c *BuildContext) AddSymlink(source, linkName string) {
	c.symlinks = append(c.symlinks, Symlink{Source: source, LinkName: linkName})
}

// MakeDataDir creates a directory in the data tree. A non-empty owner
// appends a deferred recursive ownership change ("chown -R owner[:group]
// path") to the post-install command list; ownership cannot be staged
// directly since the build does not run as root.
func (c *BuildContext) MakeDataDir(path, owner, group string) (string, error) {
	abs, err := c.staging.DataDirPath(path, 0o755, true)
	if err != nil {
		return "", err
	}
	if owner != "" {
		who := owner
		if group != "" {
			who = owner + ":" + group
		}
		quotedWho, err := syntax.Quote(who, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("quoting owner %q: %w", who, err)
		}
		quotedPath, err := syntax.Quote(path, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("quoting path %q: %w", path, err)
		}
		c.AppendPostInst(fmt.Sprintf("chown -R %s %s", quotedWho, quotedPath))
	}
	return abs, nil
}

// Build applies every rule of the package in declared order, then renders
// the control metadata into the staging filesystem. On failure the scratch
// directory is left behind for diagnosis.
func (c *BuildContext) Build(pkg *Package) error {
	if err := pkg.Validate(); err != nil {
		return err
	}
	c.postInst = c.postInst[:0]
	c.symlinks = c.symlinks[:0]

	for i, rule := range pkg.Rules {
		if err := rule.Apply(pkg, c); err != nil {
			return fmt.Errorf("applying rule %d: %w", i+1, err)
		}
	}

	if err := c.writeCopyright(pkg); err != nil {
		return err
	}
	if err := c.writeSymlinks(); err != nil {
		return err
	}
	if err := c.writeControl(pkg); err != nil {
		return err
	}
	if err := c.writeConffiles(); err != nil {
		return err
	}
	if err := c.writePostInst(); err != nil {
		return err
	}
	return c.writeMd5sums()
}

// Remove disposes of the scratch filesystem. Call it only after a
// successful pack; failed builds keep the directory for inspection.
func (c *BuildContext) Remove() error {
	return os.RemoveAll(c.staging.root)
}
