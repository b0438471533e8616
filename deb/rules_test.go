package deb

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileRuleInlineContent(t *testing.T) {
	ctx := newTestContext(t)
	pkg := &Package{Name: "p", Version: "1"}

	rule := FileRule{
		Content: []byte("#!/bin/sh\necho hi\n"),
		Dest:    "/usr/bin/hi",
		Mode:    0o755,
	}
	if err := rule.Apply(pkg, ctx); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	staged := filepath.Join(ctx.Staging().DataRoot(), "usr", "bin", "hi")
	info, err := os.Stat(staged)
	if err != nil {
		t.Fatalf("file not staged: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o755 {
		t.Errorf("expected mode 0755, got %o", perm)
	}
	content, _ := os.ReadFile(staged)
	if string(content) != "#!/bin/sh\necho hi\n" {
		t.Errorf("unexpected content: %q", content)
	}
}

func TestFileRuleFromSource(t *testing.T) {
	ctx := newTestContext(t)
	pkg := &Package{Name: "p", Version: "1"}

	src := filepath.Join(t.TempDir(), "app.conf")
	if err := os.WriteFile(src, []byte("key=value\n"), 0o644); err != nil {
		t.Fatalf("writing source: %v", err)
	}

	rule := FileRule{Source: src, Dest: "/etc/app.conf"}
	if err := rule.Apply(pkg, ctx); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(ctx.Staging().DataRoot(), "etc", "app.conf"))
	if err != nil {
		t.Fatalf("file not staged: %v", err)
	}
	if string(content) != "key=value\n" {
		t.Errorf("unexpected content: %q", content)
	}
}

func TestFileRuleMissingSource(t *testing.T) {
	ctx := newTestContext(t)
	rule := FileRule{Source: "/nonexistent/input", Dest: "/usr/bin/x"}
	if err := rule.Apply(&Package{Name: "p", Version: "1"}, ctx); err == nil {
		t.Fatal("expected error for missing source file")
	}
}

func TestDirRuleWithOwner(t *testing.T) {
	ctx := newTestContext(t)
	pkg := &Package{Name: "p", Version: "1"}

	rule := DirRule{Path: "/opt/app", Owner: "svc", Group: "svc"}
	if err := rule.Apply(pkg, ctx); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(ctx.Staging().DataRoot(), "opt", "app")); err != nil {
		t.Fatalf("directory not staged: %v", err)
	}
	cmds := ctx.PostInstCommands()
	if len(cmds) != 1 {
		t.Fatalf("expected exactly 1 postinst command, got %d", len(cmds))
	}
	if cmds[0] != "chown -R svc:svc /opt/app" {
		t.Errorf("unexpected chown command: %q", cmds[0])
	}
}

func TestDirRuleOwnerWithoutGroup(t *testing.T) {
	ctx := newTestContext(t)
	rule := DirRule{Path: "/var/lib/app", Owner: "svc"}
	if err := rule.Apply(&Package{Name: "p", Version: "1"}, ctx); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	cmds := ctx.PostInstCommands()
	if len(cmds) != 1 || cmds[0] != "chown -R svc /var/lib/app" {
		t.Errorf("unexpected commands: %v", cmds)
	}
}

func TestDirRuleWithoutOwner(t *testing.T) {
	ctx := newTestContext(t)
	rule := DirRule{Path: "/var/cache/app"}
	if err := rule.Apply(&Package{Name: "p", Version: "1"}, ctx); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if cmds := ctx.PostInstCommands(); len(cmds) != 0 {
		t.Errorf("ownerless directory must not defer a chown: %v", cmds)
	}
}

func TestMakeDataDirQuotesShellMetacharacters(t *testing.T) {
	ctx := newTestContext(t)
	if _, err := ctx.MakeDataDir("/opt/my app", "svc", ""); err != nil {
		t.Fatalf("MakeDataDir failed: %v", err)
	}
	cmds := ctx.PostInstCommands()
	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %d", len(cmds))
	}
	if strings.Contains(cmds[0], " /opt/my app") {
		t.Errorf("path with spaces not quoted: %q", cmds[0])
	}
}

func TestSymlinkRuleRecordsPair(t *testing.T) {
	ctx := newTestContext(t)
	rule := SymlinkRule{Source: "/usr/share/app/run.sh", LinkName: "/usr/bin/app"}
	if err := rule.Apply(&Package{Name: "p", Version: "1"}, ctx); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if len(ctx.symlinks) != 1 {
		t.Fatalf("expected 1 recorded symlink, got %d", len(ctx.symlinks))
	}
	got := ctx.symlinks[0]
	if got.Source != "/usr/share/app/run.sh" || got.LinkName != "/usr/bin/app" {
		t.Errorf("unexpected pair: %+v", got)
	}
	// Materialization is deferred.
	if _, err := os.Lstat(filepath.Join(ctx.Staging().DataRoot(), "usr", "bin", "app")); !os.IsNotExist(err) {
		t.Errorf("symlink must not be created during rule application")
	}
}

func TestSymlinkRuleValidation(t *testing.T) {
	ctx := newTestContext(t)
	if err := (SymlinkRule{Source: "/a"}).Apply(&Package{Name: "p", Version: "1"}, ctx); err == nil {
		t.Error("expected error for empty link name")
	}
	if err := (SymlinkRule{LinkName: "/b"}).Apply(&Package{Name: "p", Version: "1"}, ctx); err == nil {
		t.Error("expected error for empty source")
	}
}

func TestCommandRule(t *testing.T) {
	ctx := newTestContext(t)
	rule := CommandRule{Command: "systemctl daemon-reload"}
	if err := rule.Apply(&Package{Name: "p", Version: "1"}, ctx); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	cmds := ctx.PostInstCommands()
	if len(cmds) != 1 || cmds[0] != "systemctl daemon-reload" {
		t.Errorf("unexpected commands: %v", cmds)
	}
}

// failingRule aborts the build, proving later rules never run.
type failingRule struct{ called *[]string }

func (r failingRule) Apply(pkg *Package, ctx *BuildContext) error {
	*r.called = append(*r.called, "fail")
	return os.ErrPermission
}

type recordingRule struct {
	name   string
	called *[]string
}

func (r recordingRule) Apply(pkg *Package, ctx *BuildContext) error {
	*r.called = append(*r.called, r.name)
	return nil
}

func TestBuildAppliesRulesInOrder(t *testing.T) {
	ctx := newTestContext(t)
	var called []string
	pkg := &Package{
		Name:         "ordered",
		Version:      "1.0",
		Architecture: Arch("all"),
		Description:  "Ordered rules",
		Rules: []Rule{
			recordingRule{name: "first", called: &called},
			recordingRule{name: "second", called: &called},
			recordingRule{name: "third", called: &called},
		},
	}
	if err := ctx.Build(pkg); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if strings.Join(called, ",") != "first,second,third" {
		t.Errorf("rules ran out of order: %v", called)
	}
}

func TestBuildStopsAtFirstFailure(t *testing.T) {
	ctx := newTestContext(t)
	var called []string
	pkg := &Package{
		Name:         "failing",
		Version:      "1.0",
		Architecture: Arch("all"),
		Rules: []Rule{
			recordingRule{name: "first", called: &called},
			failingRule{called: &called},
			recordingRule{name: "never", called: &called},
		},
	}
	if err := ctx.Build(pkg); err == nil {
		t.Fatal("expected build failure")
	}
	if strings.Join(called, ",") != "first,fail" {
		t.Errorf("rules after a failure must not run: %v", called)
	}
	// The scratch directory survives for diagnosis.
	if _, err := os.Stat(ctx.Staging().Root()); err != nil {
		t.Errorf("scratch directory removed on failure: %v", err)
	}
}

func TestBuildRejectsInvalidPackage(t *testing.T) {
	ctx := newTestContext(t)

	if err := ctx.Build(&Package{Version: "1.0"}); err == nil {
		t.Error("expected error for empty name")
	}
	if err := ctx.Build(&Package{Name: "x"}); err == nil {
		t.Error("expected error for empty version")
	}

	// Validation happens before any rule runs.
	var called []string
	pkg := &Package{Rules: []Rule{recordingRule{name: "rule", called: &called}}}
	_ = ctx.Build(pkg)
	if len(called) != 0 {
		t.Errorf("rules must not run for an invalid package: %v", called)
	}
}
