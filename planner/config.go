package planner

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is an immutable planner configuration, threaded through the
// planner at construction. Per-decision overrides pass through call
// arguments rather than mutating a shared value.
type Config struct {
	SearchDepth     int
	Discount        float64
	RootSeed        uint64
	TimePerMove     time.Duration
	NumScenarios    int
	PruningConstant float64
	Xi              float64
	SimLen          int
	MaxPolicySimLen int
	DefaultAction   int
	Noise           float64
	Silence         bool

	LowerBoundName string
	UpperBoundName string

	// ParallelBounds enables scenario-parallel bound evaluation inside
	// expansion. Optional; per-scenario determinism does not depend on
	// evaluation order, so results are identical either way.
	ParallelBounds bool

	// Logf receives diagnostic lines the planner would otherwise print
	// (trial count and root gap per decision, belief collapse
	// warnings, ...). Defaults to
	// a no-op; set to a fmt.Printf-backed function for visibility.
	Logf func(format string, args ...any)
}

func defaultConfig() Config {
	return Config{
		SearchDepth:     90,
		Discount:        0.95,
		RootSeed:        0,
		TimePerMove:     time.Second,
		NumScenarios:    500,
		PruningConstant: 0,
		Xi:              0.95,
		SimLen:          90,
		MaxPolicySimLen: 90,
		DefaultAction:   0,
		LowerBoundName:  "DEFAULT",
		UpperBoundName:  "DEFAULT",
		Logf:            func(string, ...any) {},
	}
}

// Option configures a Config under construction.
type Option func(*Config)

func WithSearchDepth(d int) Option    { return func(c *Config) { c.SearchDepth = d } }
func WithDiscount(g float64) Option   { return func(c *Config) { c.Discount = g } }
func WithRootSeed(seed uint64) Option { return func(c *Config) { c.RootSeed = seed } }

func WithTimePerMove(d time.Duration) Option {
	return func(c *Config) { c.TimePerMove = d }
}

func WithNumScenarios(n int) Option { return func(c *Config) { c.NumScenarios = n } }

func WithPruningConstant(lambda float64) Option {
	return func(c *Config) { c.PruningConstant = lambda }
}

func WithXi(xi float64) Option               { return func(c *Config) { c.Xi = xi } }
func WithSimLen(n int) Option                { return func(c *Config) { c.SimLen = n } }
func WithMaxPolicySimLen(n int) Option       { return func(c *Config) { c.MaxPolicySimLen = n } }
func WithDefaultAction(a int) Option         { return func(c *Config) { c.DefaultAction = a } }
func WithNoise(n float64) Option             { return func(c *Config) { c.Noise = n } }
func WithSilence(s bool) Option              { return func(c *Config) { c.Silence = s } }
func WithLowerBoundName(name string) Option  { return func(c *Config) { c.LowerBoundName = name } }
func WithUpperBoundName(name string) Option  { return func(c *Config) { c.UpperBoundName = name } }
func WithParallelBounds(on bool) Option      { return func(c *Config) { c.ParallelBounds = on } }
func WithLogf(f func(string, ...any)) Option { return func(c *Config) { c.Logf = f } }

// NewConfig builds a Config from the given options, starting from the
// package defaults, and validates it.
func NewConfig(opts ...Option) (Config, error) {
	c := defaultConfig()
	for _, o := range opts {
		o(&c)
	}
	if c.Logf == nil {
		c.Logf = func(string, ...any) {}
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports a configuration error describing why the Config is
// not usable, or nil if it is.
func (c Config) Validate() error {
	if c.Discount <= 0 || c.Discount > 1 {
		return fmt.Errorf("planner: discount must be in (0, 1], got %v", c.Discount)
	}
	if c.NumScenarios <= 0 {
		return fmt.Errorf("planner: num_scenarios must be positive, got %d", c.NumScenarios)
	}
	if c.SearchDepth <= 0 {
		return fmt.Errorf("planner: search_depth must be positive, got %d", c.SearchDepth)
	}
	if c.Xi <= 0 || c.Xi > 1 {
		return fmt.Errorf("planner: xi must be in (0, 1], got %v", c.Xi)
	}
	if c.PruningConstant < 0 {
		return fmt.Errorf("planner: pruning_constant must be non-negative, got %v", c.PruningConstant)
	}
	if c.TimePerMove < 0 {
		return fmt.Errorf("planner: time_per_move must be non-negative, got %v", c.TimePerMove)
	}
	return nil
}

// yamlConfig mirrors Config's fields under their snake_case file
// option names, for file-based loading.
type yamlConfig struct {
	SearchDepth     *int     `yaml:"search_depth"`
	Discount        *float64 `yaml:"discount"`
	RootSeed        *uint64  `yaml:"root_seed"`
	TimePerMoveSecs *float64 `yaml:"time_per_move"`
	NumScenarios    *int     `yaml:"num_scenarios"`
	PruningConstant *float64 `yaml:"pruning_constant"`
	Xi              *float64 `yaml:"xi"`
	SimLen          *int     `yaml:"sim_len"`
	MaxPolicySimLen *int     `yaml:"max_policy_sim_len"`
	DefaultAction   *int     `yaml:"default_action"`
	Noise           *float64 `yaml:"noise"`
	Silence         *bool    `yaml:"silence"`
	LowerBoundName  *string  `yaml:"lower_bound"`
	UpperBoundName  *string  `yaml:"upper_bound"`
	ParallelBounds  *bool    `yaml:"parallel_bounds"`
}

// LoadConfig reads a YAML configuration file and builds a validated
// Config from it, falling back to defaults for any field the file
// omits.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("planner: LoadConfig: %w", err)
	}
	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return Config{}, fmt.Errorf("planner: LoadConfig: %w", err)
	}

	var opts []Option
	if y.SearchDepth != nil {
		opts = append(opts, WithSearchDepth(*y.SearchDepth))
	}
	if y.Discount != nil {
		opts = append(opts, WithDiscount(*y.Discount))
	}
	if y.RootSeed != nil {
		opts = append(opts, WithRootSeed(*y.RootSeed))
	}
	if y.TimePerMoveSecs != nil {
		opts = append(opts, WithTimePerMove(time.Duration(*y.TimePerMoveSecs*float64(time.Second))))
	}
	if y.NumScenarios != nil {
		opts = append(opts, WithNumScenarios(*y.NumScenarios))
	}
	if y.PruningConstant != nil {
		opts = append(opts, WithPruningConstant(*y.PruningConstant))
	}
	if y.Xi != nil {
		opts = append(opts, WithXi(*y.Xi))
	}
	if y.SimLen != nil {
		opts = append(opts, WithSimLen(*y.SimLen))
	}
	if y.MaxPolicySimLen != nil {
		opts = append(opts, WithMaxPolicySimLen(*y.MaxPolicySimLen))
	}
	if y.DefaultAction != nil {
		opts = append(opts, WithDefaultAction(*y.DefaultAction))
	}
	if y.Noise != nil {
		opts = append(opts, WithNoise(*y.Noise))
	}
	if y.Silence != nil {
		opts = append(opts, WithSilence(*y.Silence))
	}
	if y.LowerBoundName != nil {
		opts = append(opts, WithLowerBoundName(*y.LowerBoundName))
	}
	if y.UpperBoundName != nil {
		opts = append(opts, WithUpperBoundName(*y.UpperBoundName))
	}
	if y.ParallelBounds != nil {
		opts = append(opts, WithParallelBounds(*y.ParallelBounds))
	}

	return NewConfig(opts...)
}
