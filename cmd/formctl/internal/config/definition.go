package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/formctl/pkg/errors"
	"github.com/go-drift/formctl/pkg/form"
	"github.com/go-drift/formctl/pkg/resolver"
)

// DefinitionMajor is the definition format major version.
const DefinitionMajor = "v1"

// Definition is a form definition with a scripted session of input events.
type Definition struct {
	Version        string         `yaml:"version,omitempty"`
	Name           string         `yaml:"name,omitempty"`
	Mode           string         `yaml:"mode,omitempty"`
	RevalidateMode string         `yaml:"revalidate_mode,omitempty"`
	Criteria       string         `yaml:"criteria,omitempty"`
	DelayError     string         `yaml:"delay_error,omitempty"`
	Unregister     bool           `yaml:"should_unregister,omitempty"`
	SkipFocusError bool           `yaml:"skip_focus_error,omitempty"`
	Disabled       bool           `yaml:"disabled,omitempty"`
	Defaults       map[string]any `yaml:"defaults,omitempty"`
	Context        map[string]any `yaml:"context,omitempty"`
	Fields         []FieldDef     `yaml:"fields,omitempty"`
	// Schema switches validation to the schema resolver. SchemaFile is
	// resolved relative to the definition.
	Schema     *resolver.Schema `yaml:"schema,omitempty"`
	SchemaFile string           `yaml:"schema_file,omitempty"`
	Session    []Step           `yaml:"session,omitempty"`

	// Path is the file the definition was loaded from.
	Path string `yaml:"-"`
}

// FieldDef declares a registered field and its rules.
type FieldDef struct {
	Name string `yaml:"name"`
	// Input is the input type of the attached ref ("text" by default).
	// Radio and checkbox fields with Options get one ref per option.
	Input         string            `yaml:"input,omitempty"`
	Options       []any             `yaml:"options,omitempty"`
	Value         any               `yaml:"value,omitempty"`
	Required      bool              `yaml:"required,omitempty"`
	Min           any               `yaml:"min,omitempty"`
	Max           any               `yaml:"max,omitempty"`
	MinLength     *int              `yaml:"min_length,omitempty"`
	MaxLength     *int              `yaml:"max_length,omitempty"`
	Pattern       string            `yaml:"pattern,omitempty"`
	Validate      string            `yaml:"validate,omitempty"`
	Messages      map[string]string `yaml:"messages,omitempty"`
	Deps          []string          `yaml:"deps,omitempty"`
	Disabled      *bool             `yaml:"disabled,omitempty"`
	ValueAsNumber bool              `yaml:"value_as_number,omitempty"`
	ValueAsDate   bool              `yaml:"value_as_date,omitempty"`
	FieldArray    bool              `yaml:"field_array,omitempty"`
	Unregister    bool              `yaml:"should_unregister,omitempty"`
}

// Message returns the configured message for a rule, or "".
func (f FieldDef) Message(rule string) string {
	return f.Messages[rule]
}

// Step is one scripted action.
type Step struct {
	Action   string           `yaml:"action"`
	Name     string           `yaml:"name,omitempty"`
	Names    []string         `yaml:"names,omitempty"`
	Value    any              `yaml:"value,omitempty"`
	Values   map[string]any   `yaml:"values,omitempty"`
	Validate bool             `yaml:"validate,omitempty"`
	Dirty    bool             `yaml:"dirty,omitempty"`
	Touch    bool             `yaml:"touch,omitempty"`
	Focus    bool             `yaml:"focus,omitempty"`
	Keep     []string         `yaml:"keep,omitempty"`
	Patch    []map[string]any `yaml:"patch,omitempty"`
	Duration string           `yaml:"duration,omitempty"`
	Type     string           `yaml:"type,omitempty"`
	Message  string           `yaml:"message,omitempty"`
	// Fail makes the submit callback return this error.
	Fail string `yaml:"fail,omitempty"`
}

// Step actions.
const (
	ActionChange      = "change"
	ActionBlur        = "blur"
	ActionSet         = "set"
	ActionPatch       = "patch"
	ActionTrigger     = "trigger"
	ActionSubmit      = "submit"
	ActionReset       = "reset"
	ActionResetField  = "reset_field"
	ActionUnregister  = "unregister"
	ActionUnmount     = "unmount"
	ActionSetError    = "error"
	ActionClearErrors = "clear_errors"
	ActionFocus       = "focus"
	ActionDisable     = "disable"
	ActionEnable      = "enable"
	ActionAdvance     = "advance"
)

var namedActions = map[string]bool{
	ActionChange:     true,
	ActionBlur:       true,
	ActionSet:        true,
	ActionResetField: true,
	ActionUnmount:    true,
	ActionSetError:   true,
	ActionFocus:      true,
}

var allActions = map[string]bool{
	ActionPatch:       true,
	ActionTrigger:     true,
	ActionSubmit:      true,
	ActionReset:       true,
	ActionUnregister:  true,
	ActionClearErrors: true,
	ActionDisable:     true,
	ActionEnable:      true,
	ActionAdvance:     true,
}

// LoadDefinition reads and validates a definition file and the schema it
// names. Failures are returned as KindConfig form errors.
func LoadDefinition(path string) (*Definition, error) {
	def, err := loadDefinition(path)
	if err != nil {
		return nil, &errors.FormError{Op: "config.LoadDefinition", Kind: errors.KindConfig, Err: err}
	}
	return def, nil
}

func loadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	def.Path = path

	if def.SchemaFile != "" {
		schemaPath := def.SchemaFile
		if !filepath.IsAbs(schemaPath) {
			schemaPath = filepath.Join(filepath.Dir(path), schemaPath)
		}
		s, err := resolver.ParseFile(schemaPath)
		if err != nil {
			return nil, fmt.Errorf("schema_file: %w", err)
		}
		def.Schema = s
	}
	return def, nil
}

// ParseDefinition parses and validates a definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks the definition's version, modes, fields and steps.
func (d *Definition) Validate() error {
	if d.Version != "" {
		v := d.Version
		if !strings.HasPrefix(v, "v") {
			v = "v" + v
		}
		if !semver.IsValid(v) {
			return fmt.Errorf("invalid version %q", d.Version)
		}
		if semver.Major(v) != DefinitionMajor {
			return fmt.Errorf("unsupported definition version %s (want %s.x)", v, DefinitionMajor)
		}
	}

	var errs []string
	if _, err := form.ParseMode(d.Mode); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := form.ParseMode(d.RevalidateMode); err != nil {
		errs = append(errs, "revalidate_mode: "+err.Error())
	}
	if _, err := form.ParseCriteria(d.Criteria); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := d.Delay(); err != nil {
		errs = append(errs, err.Error())
	}
	if d.Schema != nil && d.SchemaFile != "" {
		errs = append(errs, "schema and schema_file are mutually exclusive")
	}

	seen := make(map[string]bool)
	for i, f := range d.Fields {
		if strings.TrimSpace(f.Name) == "" {
			errs = append(errs, fmt.Sprintf("fields[%d]: name is required", i))
			continue
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Sprintf("fields[%d]: duplicate field %q", i, f.Name))
		}
		seen[f.Name] = true
	}

	for i, s := range d.Session {
		switch {
		case namedActions[s.Action]:
			if s.Name == "" {
				errs = append(errs, fmt.Sprintf("session[%d]: %s requires a name", i, s.Action))
			}
		case allActions[s.Action]:
		default:
			errs = append(errs, fmt.Sprintf("session[%d]: unknown action %q", i, s.Action))
		}
		if s.Action == ActionAdvance {
			if _, err := time.ParseDuration(s.Duration); err != nil {
				errs = append(errs, fmt.Sprintf("session[%d]: duration: %v", i, err))
			}
		}
		if s.Action == ActionPatch && len(s.Patch) == 0 {
			errs = append(errs, fmt.Sprintf("session[%d]: patch has no operations", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid definition:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Delay returns the parsed delay_error duration.
func (d *Definition) Delay() (time.Duration, error) {
	if d.DelayError == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(d.DelayError)
	if err != nil {
		return 0, fmt.Errorf("delay_error: %w", err)
	}
	return dur, nil
}

// Files returns the files a definition was read from.
func (d *Definition) Files() []string {
	var out []string
	if d.Path != "" {
		out = append(out, d.Path)
		if d.SchemaFile != "" {
			p := d.SchemaFile
			if !filepath.IsAbs(p) {
				p = filepath.Join(filepath.Dir(d.Path), p)
			}
			out = append(out, p)
		}
	}
	return out
}
