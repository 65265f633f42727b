package strategy

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"macdbot/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Template is a named, reloadable bracket policy preset.
type Template struct {
	ID          string        `mapstructure:"-" yaml:"-" json:"id"`
	Description string        `mapstructure:"description" yaml:"description" json:"description"`
	Policy      BracketPolicy `mapstructure:",squash" yaml:",inline" json:"policy"`
}

type fileConfig struct {
	BracketTemplates map[string]map[string]any `yaml:"bracket_templates"`
}

// Snapshot is an immutable view of the loaded template set.
type Snapshot struct {
	Version   int64
	LoadedAt  time.Time
	Templates map[string]Template
}

type ChangeListener func(Snapshot)

const templateSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "description": {"type": "string"},
    "take_profit": {
      "type": "object",
      "properties": {
        "type": {"enum": ["atr", "percentage"]},
        "value": {"type": "number", "exclusiveMinimum": 0}
      },
      "required": ["type", "value"]
    },
    "stop_loss": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "type": {"enum": ["percentage", "risk_reward"]},
        "value": {"type": "number", "minimum": 0}
      },
      "required": ["enabled"]
    },
    "price_precision": {"type": "integer", "minimum": 0}
  },
  "required": ["take_profit"]
}`

// Registry manages bracket policy templates loaded from a YAML file and
// reloads them when the file changes.
type Registry struct {
	path   string
	v      *viper.Viper
	schema *jsonschema.Schema

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewRegistry reads the template file, validates it and starts watching
// for updates.
func NewRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("bracket template registry requires a path")
	}
	schema, err := jsonschema.CompileString("bracket_template.schema.json", templateSchema)
	if err != nil {
		return nil, fmt.Errorf("compile bracket template schema: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read bracket template file: %w", err)
	}
	r := &Registry{path: path, v: v, schema: schema}
	if err := r.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := r.reload(); err != nil {
			logger.Errorf("bracket template reload failed: %v", err)
			return
		}
		r.notifyListeners()
	})
	v.WatchConfig()
	return r, nil
}

func (r *Registry) reload() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read bracket templates: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse bracket templates: %w", err)
	}
	templates := make(map[string]Template, len(fc.BracketTemplates))
	for id, doc := range fc.BracketTemplates {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if err := r.validateDoc(id, doc); err != nil {
			return err
		}
		var tpl Template
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &tpl,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return err
		}
		if err := dec.Decode(doc); err != nil {
			return fmt.Errorf("decode bracket template %q: %w", id, err)
		}
		tpl.ID = id
		if err := tpl.Policy.Validate(); err != nil {
			return fmt.Errorf("bracket template %q: %w", id, err)
		}
		templates[id] = tpl
	}
	r.mu.Lock()
	r.snapshot = Snapshot{
		Version:   r.snapshot.Version + 1,
		LoadedAt:  time.Now(),
		Templates: templates,
	}
	r.mu.Unlock()
	logger.Infof("bracket templates loaded: %d from %s", len(templates), r.path)
	return nil
}

// validateDoc runs the JSON schema over a template document. The YAML map
// is round-tripped through JSON so the validator sees canonical types.
func (r *Registry) validateDoc(id string, doc map[string]any) error {
	buf, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("bracket template %q: %w", id, err)
	}
	var canonical any
	if err := json.Unmarshal(buf, &canonical); err != nil {
		return fmt.Errorf("bracket template %q: %w", id, err)
	}
	if err := r.schema.Validate(canonical); err != nil {
		return fmt.Errorf("bracket template %q failed schema validation: %w", id, err)
	}
	return nil
}

// Snapshot returns the current template set.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := Snapshot{Version: r.snapshot.Version, LoadedAt: r.snapshot.LoadedAt, Templates: make(map[string]Template, len(r.snapshot.Templates))}
	for k, v := range r.snapshot.Templates {
		out.Templates[k] = v
	}
	return out
}

// Template returns the template with the given ID.
func (r *Registry) Template(id string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.snapshot.Templates[strings.TrimSpace(id)]
	return tpl, ok
}

// OnChange registers a listener invoked after each successful reload.
func (r *Registry) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Registry) notifyListeners() {
	snap := r.Snapshot()
	r.mu.RLock()
	listeners := make([]ChangeListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn(snap)
	}
}
