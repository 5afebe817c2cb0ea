// Package config provides configuration for epinet runs.
//
// Parameters come from a YAML file (params.yaml) or from the whitespace
// separated legacy format (params.txt: "N beta gamma I0 [m]"). Values not
// present in the file keep their defaults. Command-line flags are applied
// on top by the caller before Validate.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nvandessel/epinet/internal/constants"
	"github.com/nvandessel/epinet/internal/logging"
	"github.com/nvandessel/epinet/internal/meanfield"
	"github.com/nvandessel/epinet/internal/simerr"
	"github.com/nvandessel/epinet/internal/simulation"
	"gopkg.in/yaml.v3"
)

// Params holds everything one run needs.
type Params struct {
	// Population is the number of nodes N.
	Population int `json:"population" yaml:"population" validate:"gt=0"`

	// Transmission is the per-contact infection probability β.
	Transmission float64 `json:"transmission" yaml:"transmission" validate:"gte=0,lte=1"`

	// Recovery is the per-step recovery probability γ.
	Recovery float64 `json:"recovery" yaml:"recovery" validate:"gte=0,lte=1"`

	// InitialInfected is how many nodes are infected uniformly at random
	// before step 1. Ignored when SeedNodes is set.
	InitialInfected int `json:"initial_infected" yaml:"initial_infected" validate:"gte=0"`

	// SeedNodes lists the initially infected nodes explicitly.
	SeedNodes []int `json:"seed_nodes,omitempty" yaml:"seed_nodes,omitempty" validate:"dive,gte=0"`

	// Fanout is the number of edges each grown node adds (m).
	Fanout int `json:"fanout" yaml:"fanout" validate:"gte=0"`

	// SeedClique is the size of the fully connected seed (m0); 0 picks
	// min(m+5, N).
	SeedClique int `json:"seed_clique" yaml:"seed_clique" validate:"gte=0"`

	// Steps is the horizon T.
	Steps int `json:"steps" yaml:"steps" validate:"gte=0"`

	// Policy selects the transition rule: contact or attachment.
	Policy string `json:"policy" yaml:"policy" validate:"oneof=contact attachment"`

	// Workers is the number of stepping goroutines; 0 means one per CPU.
	Workers int `json:"workers" yaml:"workers" validate:"gte=0"`

	// Seed makes a run reproducible; 0 draws a fresh seed.
	Seed uint64 `json:"seed" yaml:"seed"`

	Network NetworkConfig `json:"network" yaml:"network"`
	Output  OutputConfig  `json:"output" yaml:"output"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// NetworkConfig selects where the contact network comes from.
type NetworkConfig struct {
	// GraphFile loads an edge list instead of growing a network.
	GraphFile string `json:"graph_file,omitempty" yaml:"graph_file,omitempty"`

	// RingBackbone links node i to i+1 mod N when loading GraphFile.
	RingBackbone bool `json:"ring_backbone" yaml:"ring_backbone"`

	// SaveEdges writes a grown network to this path.
	SaveEdges string `json:"save_edges,omitempty" yaml:"save_edges,omitempty"`
}

// OutputConfig lists the result sinks. Empty paths are disabled.
type OutputConfig struct {
	Series   string `json:"series" yaml:"series"`
	States   string `json:"states,omitempty" yaml:"states,omitempty"`
	Arrow    string `json:"arrow,omitempty" yaml:"arrow,omitempty"`
	Metrics  string `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
	Trace    string `json:"trace,omitempty" yaml:"trace,omitempty"` // directory for trace.jsonl
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	// Level is one of warn, info, debug or trace.
	Level string `json:"level" yaml:"level"`
}

// Default returns the default parameters.
func Default() *Params {
	return &Params{
		Population:      constants.DefaultPopulation,
		Transmission:    constants.DefaultTransmission,
		Recovery:        constants.DefaultRecovery,
		InitialInfected: constants.DefaultInitialInfected,
		Fanout:          constants.DefaultFanout,
		SeedClique:      constants.AutoSeedClique,
		Steps:           constants.DefaultSteps,
		Policy:          constants.DefaultPolicy,
		Output: OutputConfig{
			Series: constants.DefaultSeriesFile,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads params.yaml, or failing that params.txt, from dir. With
// neither present it returns the defaults.
func Load(dir string) (*Params, string, error) {
	for _, name := range []string{constants.DefaultParamsYAML, constants.DefaultParamsLegacy} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		p, err := LoadFromFile(path)
		if err != nil {
			return nil, path, err
		}
		return p, path, nil
	}
	return Default(), "", nil
}

// LoadFromFile loads parameters from path. Files ending in .yaml, .yml or
// .json are decoded as YAML; anything else is read as the legacy format.
func LoadFromFile(path string) (*Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, simerr.IO(path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return ParseYAML(data)
	default:
		return ParseLegacy(data)
	}
}

// ParseYAML decodes YAML parameters over the defaults. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func ParseYAML(data []byte) (*Params, error) {
	p := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, simerr.Config("params", "parsing YAML: %v", err)
	}
	return p, nil
}

// ParseLegacy reads "N beta gamma I0 [m]" separated by any whitespace.
// Fields not given keep their defaults.
func ParseLegacy(data []byte) (*Params, error) {
	fields := strings.Fields(string(data))
	if len(fields) < 4 || len(fields) > 5 {
		return nil, simerr.Config("params", "legacy format needs \"N beta gamma I0 [m]\", got %d fields", len(fields))
	}
	p := Default()
	var err error
	if p.Population, err = strconv.Atoi(fields[0]); err != nil {
		return nil, simerr.Config("population", "not an integer: %q", fields[0])
	}
	if p.Transmission, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return nil, simerr.Config("transmission", "not a number: %q", fields[1])
	}
	if p.Recovery, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return nil, simerr.Config("recovery", "not a number: %q", fields[2])
	}
	if p.InitialInfected, err = strconv.Atoi(fields[3]); err != nil {
		return nil, simerr.Config("initial_infected", "not an integer: %q", fields[3])
	}
	if len(fields) == 5 {
		if p.Fanout, err = strconv.Atoi(fields[4]); err != nil {
			return nil, simerr.Config("fanout", "not an integer: %q", fields[4])
		}
	}
	return p, nil
}

// YAML renders p in the params.yaml format.
func (p *Params) YAML() ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding params: %w", err)
	}
	return data, nil
}

// Save writes p to path as YAML.
func (p *Params) Save(path string) error {
	data, err := p.YAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return simerr.IO(path, err)
	}
	return nil
}

// Validate checks every parameter and returns the first violation as a
// configuration error naming the parameter.
func (p *Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return formatValidationError(err)
	}

	if p.InitialInfected > p.Population {
		return simerr.Config("initial_infected", "must not exceed population (%d), got %d",
			p.Population, p.InitialInfected)
	}
	for _, u := range p.SeedNodes {
		if u >= p.Population {
			return simerr.Config("seed_nodes", "node %d outside [0,%d)", u, p.Population)
		}
	}
	if p.Grows() {
		if p.Fanout <= 0 {
			return simerr.Config("fanout", "must be positive, got %d", p.Fanout)
		}
		if p.Fanout >= p.Population {
			return simerr.Config("fanout", "must be smaller than population (%d), got %d", p.Population, p.Fanout)
		}
		if p.SeedClique > p.Population {
			return simerr.Config("seed_clique", "must not exceed population (%d), got %d", p.Population, p.SeedClique)
		}
	}
	if !logging.ValidLevel(p.Logging.Level) {
		return simerr.Config("logging.level", "unknown level %q (valid: warn, info, debug, trace)", p.Logging.Level)
	}
	return nil
}

// Grows reports whether the network is grown rather than loaded.
func (p *Params) Grows() bool {
	return p.Network.GraphFile == ""
}

// Rates returns the transition probabilities.
func (p *Params) Rates() simulation.Rates {
	return simulation.Rates{Transmission: p.Transmission, Recovery: p.Recovery}
}

// Seeding returns the initial infection rule.
func (p *Params) Seeding() simulation.Seeding {
	return simulation.Seeding{Count: p.InitialInfected, Nodes: p.SeedNodes}
}

// MeanField returns the ODE parameters matching p. With explicit seed nodes
// the initial infected count is their number.
func (p *Params) MeanField() meanfield.Params {
	i0 := p.InitialInfected
	if len(p.SeedNodes) > 0 {
		i0 = len(p.SeedNodes)
	}
	return meanfield.Params{
		Population:      p.Population,
		Transmission:    p.Transmission,
		Recovery:        p.Recovery,
		InitialInfected: float64(i0),
	}
}

// validate is the shared validator. Field names in errors use the yaml tag
// so they match what the user wrote.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return simerr.Config("params", "%v", err)
	}

	// Report the first failure only.
	e := validationErrs[0]
	field := e.Field()
	param := e.Param()
	switch e.Tag() {
	case "gt":
		return simerr.Config(field, "must be greater than %s, got %v", param, e.Value())
	case "gte":
		return simerr.Config(field, "must be at least %s, got %v", param, e.Value())
	case "lte":
		return simerr.Config(field, "must not exceed %s, got %v", param, e.Value())
	case "oneof":
		return simerr.Config(field, "must be one of [%s], got %q", param, e.Value())
	default:
		return simerr.Config(field, "validation failed (%s)", e.Tag())
	}
}
