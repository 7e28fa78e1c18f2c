// Package prompts loads the prompt templates used to talk to the completion
// service.
package prompts

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"text/template"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Template identifiers.
const (
	IntentTopLevel   = "agent_intent"
	IntentRoute      = "agent_route"
	FieldCollection  = "field_collection"
	ResumeGeneration = "resume_generation"
	Match            = "match"
	Analyst          = "recruiter_agent"
	Writer           = "writer_agent"
)

//go:embed templates/*.yaml
var embedded embed.FS

// Renderer renders a named template. ok is false when the template does not
// exist or fails to render; callers fall back to deterministic behaviour.
type Renderer interface {
	Render(id string, args map[string]any) (string, bool)
}

type templateFile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Template    string `yaml:"template"`
}

// Library holds parsed templates keyed by name.
type Library struct {
	templates map[string]*template.Template
	logger    *zap.Logger
}

var funcs = template.FuncMap{
	"join": func(items any, sep string) string {
		switch v := items.(type) {
		case []string:
			return strings.Join(v, sep)
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			return strings.Join(parts, sep)
		default:
			return fmt.Sprint(items)
		}
	},
}

// Load parses the built-in templates. When dir is set, YAML files found
// there replace built-in templates of the same name.
func Load(dir string, logger *zap.Logger) (*Library, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	lib := &Library{templates: make(map[string]*template.Template), logger: logger}

	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, fmt.Errorf("open embedded templates: %w", err)
	}
	if err := lib.loadFS(sub); err != nil {
		return nil, err
	}

	if dir = strings.TrimSpace(dir); dir != "" {
		if err := lib.loadFS(os.DirFS(dir)); err != nil {
			return nil, fmt.Errorf("load templates from %s: %w", dir, err)
		}
		logger.Info("loaded prompt overrides", zap.String("dir", dir))
	}

	logger.Debug("prompt templates loaded", zap.Strings("templates", lib.Names()))

	return lib, nil
}

func (l *Library) loadFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read templates: %w", err)
	}

	for _, entry := range entries {
		ext := path.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}

		data, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}

		var file templateFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("decode %s: %w", entry.Name(), err)
		}

		name := strings.TrimSpace(file.Name)
		if name == "" {
			name = strings.TrimSuffix(entry.Name(), ext)
		}

		tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=zero").Parse(file.Template)
		if err != nil {
			return fmt.Errorf("parse template %s: %w", name, err)
		}

		l.templates[name] = tmpl
	}

	return nil
}

// Render executes template id with args.
func (l *Library) Render(id string, args map[string]any) (string, bool) {
	tmpl, ok := l.templates[id]
	if !ok {
		l.logger.Warn("prompt template not found", zap.String("template", id))
		return "", false
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, args); err != nil {
		l.logger.Warn("prompt template failed to render", zap.String("template", id), zap.Error(err))
		return "", false
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", false
	}
	return out, true
}

// Names lists the loaded template names.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.templates))
	for name := range l.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
