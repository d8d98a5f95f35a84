package mailer

import (
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	texttemplate "text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// templateEngine renders html/template and text/template views by name.
type templateEngine struct {
	config TemplateConfig
	html   map[string]*htmltemplate.Template
	text   map[string]*texttemplate.Template
	mutex  sync.RWMutex
}

// NewTemplateEngine creates a template engine and loads config.Directory
// when it is set.
func NewTemplateEngine(config TemplateConfig) (TemplateEngine, error) {
	engine := &templateEngine{
		config: config,
		html:   make(map[string]*htmltemplate.Template),
		text:   make(map[string]*texttemplate.Template),
	}

	if config.Directory != "" {
		if err := engine.LoadTemplatesFromDir(config.Directory); err != nil {
			return nil, fmt.Errorf("failed to load templates from directory: %w", err)
		}
	}

	return engine, nil
}

// Render renders a template with the provided data.
func (te *templateEngine) Render(name string, data interface{}) (string, error) {
	te.mutex.RLock()
	defer te.mutex.RUnlock()

	var buf strings.Builder
	if tmpl, ok := te.html[name]; ok {
		if err := tmpl.Execute(&buf, data); err != nil {
			return "", NewTemplateError(name, "render", "failed to execute HTML template", err)
		}
		return buf.String(), nil
	}
	if tmpl, ok := te.text[name]; ok {
		if err := tmpl.Execute(&buf, data); err != nil {
			return "", NewTemplateError(name, "render", "failed to execute text template", err)
		}
		return buf.String(), nil
	}

	return "", NewTemplateError(name, "render", "template not registered", ErrTemplateNotFound)
}

// IsHTML reports whether name was registered as an HTML template.
func (te *templateEngine) IsHTML(name string) bool {
	te.mutex.RLock()
	defer te.mutex.RUnlock()
	_, ok := te.html[name]
	return ok
}

// RegisterTemplate parses content as HTML when the name ends in .html or
// .htm or the content contains markup, and as plain text otherwise.
func (te *templateEngine) RegisterTemplate(name string, content string) error {
	return te.register(name, content, isHTMLTemplate(name, content))
}

func (te *templateEngine) register(name, content string, html bool) error {
	te.mutex.Lock()
	defer te.mutex.Unlock()

	if html {
		tmpl, err := htmltemplate.New(name).Funcs(htmltemplate.FuncMap(te.funcs(true))).Parse(content)
		if err != nil {
			return NewTemplateError(name, "parse", "failed to parse HTML template", err)
		}
		delete(te.text, name)
		te.html[name] = tmpl
		return nil
	}

	tmpl, err := texttemplate.New(name).Funcs(texttemplate.FuncMap(te.funcs(false))).Parse(content)
	if err != nil {
		return NewTemplateError(name, "parse", "failed to parse text template", err)
	}
	delete(te.html, name)
	te.text[name] = tmpl
	return nil
}

// LoadTemplatesFromDir registers every file under dir whose extension is
// listed in the config. "welcome/body.html" is registered as the HTML
// template "welcome.body"; the extension decides HTML or text.
func (te *templateEngine) LoadTemplatesFromDir(dir string) error {
	cleanDir := filepath.Clean(dir)

	return filepath.WalkDir(cleanDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		cleanPath := filepath.Clean(path)
		if !isPathWithinDir(cleanPath, cleanDir) {
			return fmt.Errorf("security error: path traversal detected: %s", path)
		}

		ext := filepath.Ext(cleanPath)
		if !te.acceptsExtension(ext) {
			return nil
		}

		content, err := os.ReadFile(cleanPath)
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", cleanPath, err)
		}

		rel, err := filepath.Rel(cleanDir, cleanPath)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}
		name := strings.ReplaceAll(strings.TrimSuffix(rel, ext), string(filepath.Separator), ".")

		return te.register(name, string(content), ext == ".html" || ext == ".htm")
	})
}

func (te *templateEngine) acceptsExtension(ext string) bool {
	for _, allowed := range te.config.Extension {
		if ext == allowed {
			return true
		}
	}
	return false
}

// funcs returns the helpers available to templates. Unsafe helpers are only
// added for HTML templates and only when the config allows them.
func (te *templateEngine) funcs(html bool) map[string]any {
	titleCaser := cases.Title(language.English)
	funcs := map[string]any{
		"upper":     strings.ToUpper,
		"lower":     strings.ToLower,
		"title":     titleCaser.String,
		"trim":      strings.TrimSpace,
		"join":      strings.Join,
		"split":     strings.Split,
		"replace":   strings.ReplaceAll,
		"contains":  strings.Contains,
		"hasPrefix": strings.HasPrefix,
		"hasSuffix": strings.HasSuffix,
		"now":       time.Now,
		"formatTime": func(format string, t time.Time) string {
			return t.Format(format)
		},
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
		"default": func(defaultValue, value interface{}) interface{} {
			if value == nil || value == "" {
				return defaultValue
			}
			return value
		},
	}

	if html && te.config.AllowUnsafeFunctions {
		funcs["unsafeHTML"] = func(s string) htmltemplate.HTML {
			return htmltemplate.HTML(s) // #nosec G203 -- opt-in only
		}
		funcs["unsafeURL"] = func(s string) htmltemplate.URL {
			return htmltemplate.URL(s) // #nosec G203 -- opt-in only
		}
	}

	return funcs
}

func isHTMLTemplate(name, content string) bool {
	if strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm") {
		return true
	}
	if strings.HasSuffix(name, ".txt") || strings.HasSuffix(name, ".text") {
		return false
	}
	return strings.Contains(content, "<")
}

// isPathWithinDir checks if a given path is within the specified directory to prevent path traversal attacks.
func isPathWithinDir(path, dir string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false
	}

	return !strings.HasPrefix(rel, "..")
}
