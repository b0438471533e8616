// Package manifest loads a declarative package description from a YAML
// file and turns it into a deb.Package ready to build. It is scripting glue
// around the packaging engine: templating, file indirection and rule
// decoding all happen here, so the engine only ever sees a fully-resolved
// description.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.yaml.in/yaml/v3"

	"github.com/debwrap/debwrap/deb"
)

// Manifest is the YAML document describing one package.
type Manifest struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Architecture accepts a scalar ("amd64"), a list (["amd64","arm64"]),
	// or nothing at all, which auto-detects the host architecture.
	Architecture archList `yaml:"architecture"`

	Maintainer struct {
		Name  string `yaml:"name"`
		Email string `yaml:"email"`
	} `yaml:"maintainer"`

	Description     string `yaml:"description"`
	LongDescription string `yaml:"long_description"`
	Homepage        string `yaml:"homepage"`
	Section         string `yaml:"section"`
	Priority        string `yaml:"priority"`

	Depends   []string `yaml:"depends"`
	Conflicts []string `yaml:"conflicts"`

	// Copyright is the inline copyright text. CopyrightFile reads it from a
	// file relative to the manifest instead; inline text wins when both are
	// set.
	Copyright     string `yaml:"copyright"`
	CopyrightFile string `yaml:"copyright_file"`

	// Defines is a map of variables available to {{...}} templates in every
	// string value of the manifest.
	Defines map[string]string `yaml:"defines"`

	Rules []RuleSpec `yaml:"rules"`

	filePath string
	engine   *templateEngine
}

// RuleSpec is the YAML form of a single build rule, discriminated by Action.
type RuleSpec struct {
	// Action selects the rule variant: "file", "dir", "symlink" or "run".
	Action string `yaml:"action"`

	// file
	Src     string `yaml:"src"`
	Content string `yaml:"content"`
	Dst     string `yaml:"dst"`
	Mode    string `yaml:"mode"`

	// dir
	Path  string `yaml:"path"`
	Owner string `yaml:"owner"`
	Group string `yaml:"group"`

	// symlink
	Source string `yaml:"source"`
	Link   string `yaml:"link"`

	// run
	Command string `yaml:"command"`
}

// archList decodes the architecture field from either a scalar or a
// sequence node.
type archList []string

func (a *archList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		*a = archList{s}
	case yaml.SequenceNode:
		var ss []string
		if err := value.Decode(&ss); err != nil {
			return err
		}
		*a = ss
	default:
		return fmt.Errorf("architecture must be a string or a list of strings")
	}
	return nil
}

// Load reads a manifest file and resolves it into a package description.
func Load(path string) (*deb.Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes manifest bytes. filePath anchors relative source and
// copyright paths and names the manifest in errors.
func Parse(data []byte, filePath string) (*deb.Package, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", filePath, err)
	}
	m.filePath = filePath
	m.engine = newTemplateEngine(m.Defines)
	return m.apply()
}

// apply renders every templated value and assembles the deb.Package.
func (m *Manifest) apply() (*deb.Package, error) {
	pkg := &deb.Package{
		MaintainerName:  m.Maintainer.Name,
		MaintainerEmail: m.Maintainer.Email,
		Homepage:        m.Homepage,
		Section:         m.Section,
		Priority:        m.Priority,
	}

	var err error
	if pkg.Name, err = m.engine.render("name", m.Name); err != nil {
		return nil, err
	}
	if pkg.Version, err = m.engine.render("version", m.Version); err != nil {
		return nil, err
	}
	if pkg.Description, err = m.engine.render("description", m.Description); err != nil {
		return nil, err
	}
	if pkg.LongDescription, err = m.engine.render("long_description", m.LongDescription); err != nil {
		return nil, err
	}

	if len(m.Architecture) > 0 {
		pkg.Architecture = deb.Arch(m.Architecture...)
	} else {
		pkg.Architecture = deb.HostArchitecture()
	}

	for i, d := range m.Depends {
		dep, err := m.engine.render(fmt.Sprintf("depends[%d]", i), d)
		if err != nil {
			return nil, err
		}
		pkg.Depends = append(pkg.Depends, dep)
	}
	for i, c := range m.Conflicts {
		conflict, err := m.engine.render(fmt.Sprintf("conflicts[%d]", i), c)
		if err != nil {
			return nil, err
		}
		pkg.Conflicts = append(pkg.Conflicts, conflict)
	}

	pkg.Copyright = m.Copyright
	if pkg.Copyright == "" && m.CopyrightFile != "" {
		content, err := os.ReadFile(m.resolve(m.CopyrightFile))
		if err != nil {
			return nil, fmt.Errorf("reading copyright file: %w", err)
		}
		pkg.Copyright = string(content)
	}

	for i, spec := range m.Rules {
		rule, err := m.buildRule(i, spec)
		if err != nil {
			return nil, err
		}
		pkg.Rules = append(pkg.Rules, rule)
	}

	if err := pkg.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", m.filePath, err)
	}
	return pkg, nil
}

func (m *Manifest) buildRule(i int, spec RuleSpec) (deb.Rule, error) {
	render := func(field, text string) (string, error) {
		return m.engine.render(fmt.Sprintf("rules[%d].%s", i, field), text)
	}

	switch spec.Action {
	case "file":
		src, err := render("src", spec.Src)
		if err != nil {
			return nil, err
		}
		dst, err := render("dst", spec.Dst)
		if err != nil {
			return nil, err
		}
		rule := deb.FileRule{Dest: dst}
		if src != "" {
			rule.Source = m.resolve(src)
		} else {
			content, err := render("content", spec.Content)
			if err != nil {
				return nil, err
			}
			rule.Content = []byte(content)
		}
		if spec.Mode != "" {
			mode, err := strconv.ParseUint(spec.Mode, 8, 32)
			if err != nil {
				return nil, fmt.Errorf("rules[%d]: parsing mode %q: %w", i, spec.Mode, err)
			}
			rule.Mode = os.FileMode(mode)
		}
		return rule, nil

	case "dir":
		path, err := render("path", spec.Path)
		if err != nil {
			return nil, err
		}
		return deb.DirRule{Path: path, Owner: spec.Owner, Group: spec.Group}, nil

	case "symlink":
		source, err := render("source", spec.Source)
		if err != nil {
			return nil, err
		}
		link, err := render("link", spec.Link)
		if err != nil {
			return nil, err
		}
		return deb.SymlinkRule{Source: source, LinkName: link}, nil

	case "run":
		command, err := render("command", spec.Command)
		if err != nil {
			return nil, err
		}
		return deb.CommandRule{Command: command}, nil

	default:
		return nil, fmt.Errorf("rules[%d]: unknown action %q", i, spec.Action)
	}
}

// resolve anchors a relative path at the manifest's directory.
func (m *Manifest) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(m.filePath), path)
}
