package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"
)

var ErrTemplateNotFound = errors.New("prompt template not found")

// Template is a named, versioned prompt pair. IDs look like "grounded.v1".
type Template struct {
	ID     string
	System string
	User   string
}

type Message struct {
	Role    string
	Content string
}

type compiled struct {
	system *template.Template
	user   *template.Template
}

type Registry struct {
	mu        sync.RWMutex
	templates map[string]compiled
}

// NewRegistry returns a registry seeded with the builtin templates.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]compiled)}
	for _, t := range builtins {
		if err := r.Register(t); err != nil {
			panic(fmt.Sprintf("builtin prompt %s: %v", t.ID, err))
		}
	}
	return r
}

func (r *Registry) Register(t Template) error {
	id := strings.TrimSpace(t.ID)
	if id == "" {
		return errors.New("prompt template id is empty")
	}
	sys, err := template.New(id + ".system").Option("missingkey=zero").Parse(t.System)
	if err != nil {
		return fmt.Errorf("parse system template %s failed: %w", id, err)
	}
	usr, err := template.New(id + ".user").Option("missingkey=zero").Parse(t.User)
	if err != nil {
		return fmt.Errorf("parse user template %s failed: %w", id, err)
	}

	r.mu.Lock()
	r.templates[id] = compiled{system: sys, user: usr}
	r.mu.Unlock()
	return nil
}

// LoadDir registers every <id>.system.tmpl / <id>.user.tmpl pair found in dir,
// replacing builtins with the same id. A missing half keeps the builtin half
// or stays empty.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read prompt dir failed: %w", err)
	}

	found := map[string]*Template{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		var id, part string
		switch {
		case strings.HasSuffix(name, ".system.tmpl"):
			id, part = strings.TrimSuffix(name, ".system.tmpl"), "system"
		case strings.HasSuffix(name, ".user.tmpl"):
			id, part = strings.TrimSuffix(name, ".user.tmpl"), "user"
		default:
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return 0, fmt.Errorf("read prompt file %s failed: %w", name, err)
		}
		t, ok := found[id]
		if !ok {
			t = r.source(id)
			found[id] = t
		}
		if part == "system" {
			t.System = string(raw)
		} else {
			t.User = string(raw)
		}
	}

	ids := make([]string, 0, len(found))
	for id := range found {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := r.Register(*found[id]); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (r *Registry) source(id string) *Template {
	for _, b := range builtins {
		if b.ID == id {
			t := b
			return &t
		}
	}
	return &Template{ID: id}
}

func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.templates[id]
	return ok
}

// Render executes the template against vars and returns system + user
// messages. An empty system part is omitted.
func (r *Registry) Render(id string, vars map[string]any) ([]Message, error) {
	r.mu.RLock()
	c, ok := r.templates[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}

	var sys, usr bytes.Buffer
	if err := c.system.Execute(&sys, vars); err != nil {
		return nil, fmt.Errorf("render system template %s failed: %w", id, err)
	}
	if err := c.user.Execute(&usr, vars); err != nil {
		return nil, fmt.Errorf("render user template %s failed: %w", id, err)
	}

	messages := make([]Message, 0, 2)
	if s := strings.TrimSpace(sys.String()); s != "" {
		messages = append(messages, Message{Role: "system", Content: s})
	}
	messages = append(messages, Message{Role: "user", Content: strings.TrimSpace(usr.String())})
	return messages, nil
}
