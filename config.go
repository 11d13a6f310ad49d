package objmap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// UnknownPolicy decides what happens to document properties that match no
// property of the target type.
type UnknownPolicy int

const (
	// UnknownStrict fails with an unrecognized_property error.
	UnknownStrict UnknownPolicy = iota
	// UnknownStrip drops the property.
	UnknownStrip
)

// IdentityScope selects the lifetime of identity records.
type IdentityScope int

const (
	// IdentityPerCall resets identities at every top-level call.
	IdentityPerCall IdentityScope = iota
	// IdentityExternal shares Config.Tracker across calls.
	IdentityExternal
)

// Inclusion controls when a readable property is written.
type Inclusion int

const (
	// InclusionDefault defers to Config.Inclusion.
	InclusionDefault Inclusion = iota
	IncludeAlways
	// IncludeNonNull skips nil pointers, interfaces, maps and slices.
	IncludeNonNull
	// IncludeNonEmpty also skips empty strings, maps, slices and arrays.
	IncludeNonEmpty
)

// DefaultMaxDepth is used when Config.MaxDepth is zero.
const DefaultMaxDepth = 1000

// Config carries per-call options. The zero value is the default behavior.
type Config struct {
	// ActiveView selects the view properties are evaluated against. Empty
	// disables view filtering.
	ActiveView string
	// UnknownProperties is the policy for unknown document properties.
	UnknownProperties UnknownPolicy
	// ExcludeUntaggedFromViews drops properties without views while a view is
	// active (default view inclusion off).
	ExcludeUntaggedFromViews bool
	// MaxDepth bounds container nesting. Zero means DefaultMaxDepth, negative
	// means unbounded.
	MaxDepth int
	// IdentityScope and Tracker control identity sharing across calls.
	// IdentityExternal requires a non-nil Tracker.
	IdentityScope IdentityScope
	Tracker       *Tracker
	// Filters binds filter ids to filters.
	Filters Filters
	// AllowEmptyTypes writes {} for types without properties instead of
	// failing with empty_type.
	AllowEmptyTypes bool
	// Inclusion is the default for properties without their own.
	Inclusion Inclusion
	// WrapRootValue wraps the root in a single-property object named after
	// its type.
	WrapRootValue bool
	// FailOnDuplicateKeys rejects objects that repeat a key.
	FailOnDuplicateKeys bool
	// UseNumber decodes numbers into untyped targets as json.Number instead
	// of float64.
	UseNumber bool
	// Injectables supplies values for injected properties by key.
	Injectables map[string]any
}

// DefaultViewInclusion reports whether untagged properties take part while a
// view is active.
func (c *Config) DefaultViewInclusion() bool { return !c.ExcludeUntaggedFromViews }

// validate rejects settings that cannot be honored by a call.
func (c *Config) validate() error {
	if c.IdentityScope == IdentityExternal && c.Tracker == nil {
		return newError(CodeSchema, "/", nil, "external identity scope without a Tracker")
	}
	return nil
}

func (c *Config) maxDepth() int {
	switch {
	case c.MaxDepth == 0:
		return DefaultMaxDepth
	case c.MaxDepth < 0:
		return 0
	}
	return c.MaxDepth
}

func (c *Config) inclusion() Inclusion {
	if c.Inclusion == InclusionDefault {
		return IncludeAlways
	}
	return c.Inclusion
}

// ---- YAML configuration file ----

// fileConfig mirrors the recognized keys of a configuration file.
type fileConfig struct {
	ActiveView           string        `yaml:"activeView"`
	UnknownProperties    UnknownPolicy `yaml:"unknownProperties"`
	DefaultViewInclusion *bool         `yaml:"defaultViewInclusion"`
	MaxDepth             depthSetting  `yaml:"maxDepth"`
	IdentitySharingScope IdentityScope `yaml:"identitySharingScope"`
	AllowEmptyTypes      bool          `yaml:"allowEmptyTypes"`
	Inclusion            Inclusion     `yaml:"inclusion"`
	WrapRootValue        bool          `yaml:"wrapRootValue"`
	FailOnDuplicateKeys  bool          `yaml:"failOnDuplicateKeys"`
	UseNumber            bool          `yaml:"useNumber"`
}

// LoadConfig parses a YAML configuration document. Unknown keys are rejected.
func LoadConfig(r io.Reader) (Config, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("objmap: config: %w", err)
	}
	cfg := Config{
		ActiveView:          fc.ActiveView,
		UnknownProperties:   fc.UnknownProperties,
		MaxDepth:            int(fc.MaxDepth),
		IdentityScope:       fc.IdentitySharingScope,
		AllowEmptyTypes:     fc.AllowEmptyTypes,
		Inclusion:           fc.Inclusion,
		WrapRootValue:       fc.WrapRootValue,
		FailOnDuplicateKeys: fc.FailOnDuplicateKeys,
		UseNumber:           fc.UseNumber,
	}
	if fc.DefaultViewInclusion != nil {
		cfg.ExcludeUntaggedFromViews = !*fc.DefaultViewInclusion
	}
	if cfg.IdentityScope == IdentityExternal {
		cfg.Tracker = NewTracker()
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML configuration file from path.
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("objmap: config: %w", err)
	}
	defer f.Close()
	return LoadConfig(f)
}

// MarshalYAML renders cfg using the configuration file keys.
func (c Config) MarshalYAML() (any, error) {
	incl := c.DefaultViewInclusion()
	return fileConfig{
		ActiveView:           c.ActiveView,
		UnknownProperties:    c.UnknownProperties,
		DefaultViewInclusion: &incl,
		MaxDepth:             depthSetting(c.MaxDepth),
		IdentitySharingScope: c.IdentityScope,
		AllowEmptyTypes:      c.AllowEmptyTypes,
		Inclusion:            c.Inclusion,
		WrapRootValue:        c.WrapRootValue,
		FailOnDuplicateKeys:  c.FailOnDuplicateKeys,
		UseNumber:            c.UseNumber,
	}, nil
}

func (p UnknownPolicy) String() string {
	if p == UnknownStrip {
		return "ignore"
	}
	return "fail"
}

func (p UnknownPolicy) MarshalYAML() (any, error) { return p.String(), nil }

func (p *UnknownPolicy) UnmarshalYAML(n *yaml.Node) error {
	switch n.Value {
	case "fail", "strict":
		*p = UnknownStrict
	case "ignore", "strip":
		*p = UnknownStrip
	default:
		return fmt.Errorf("line %d: unknownProperties must be fail or ignore, got %q", n.Line, n.Value)
	}
	return nil
}

func (s IdentityScope) String() string {
	if s == IdentityExternal {
		return "external"
	}
	return "per-call"
}

func (s IdentityScope) MarshalYAML() (any, error) { return s.String(), nil }

func (s *IdentityScope) UnmarshalYAML(n *yaml.Node) error {
	switch n.Value {
	case "per-call":
		*s = IdentityPerCall
	case "external":
		*s = IdentityExternal
	default:
		return fmt.Errorf("line %d: identitySharingScope must be per-call or external, got %q", n.Line, n.Value)
	}
	return nil
}

func (i Inclusion) String() string {
	switch i {
	case IncludeAlways:
		return "always"
	case IncludeNonNull:
		return "non_null"
	case IncludeNonEmpty:
		return "non_empty"
	}
	return "default"
}

func (i Inclusion) MarshalYAML() (any, error) { return i.String(), nil }

func (i *Inclusion) UnmarshalYAML(n *yaml.Node) error {
	switch n.Value {
	case "default", "":
		*i = InclusionDefault
	case "always":
		*i = IncludeAlways
	case "non_null":
		*i = IncludeNonNull
	case "non_empty":
		*i = IncludeNonEmpty
	default:
		return fmt.Errorf("line %d: inclusion must be always, non_null or non_empty, got %q", n.Line, n.Value)
	}
	return nil
}

// depthSetting accepts an integer or "unbounded".
type depthSetting int

func (d depthSetting) MarshalYAML() (any, error) {
	if d < 0 {
		return "unbounded", nil
	}
	return int(d), nil
}

func (d *depthSetting) UnmarshalYAML(n *yaml.Node) error {
	if n.Value == "unbounded" {
		*d = -1
		return nil
	}
	v, err := strconv.Atoi(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: maxDepth must be an integer or unbounded, got %q", n.Line, n.Value)
	}
	*d = depthSetting(v)
	return nil
}
