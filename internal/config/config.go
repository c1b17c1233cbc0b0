// Package config provides Viper-based configuration loading for the dice
// game servers.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Remote backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendGRPC     = "grpc"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// TelnetConfig holds Telnet acceptor settings.
type TelnetConfig struct {
	// Host is the bind address for the Telnet listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the Telnet listener.
	Port int `mapstructure:"port"`
	// ReadTimeout is the per-read timeout for Telnet connections.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-write timeout for Telnet connections.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
func (t TelnetConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GameConfig holds the rules options, pacing and computer tuning.
type GameConfig struct {
	// QualificationScore is the default single-turn score needed to get on
	// the board: 500, 750 or 1000.
	QualificationScore int `mapstructure:"qualification_score"`
	// Locale is the default message locale for new sessions.
	Locale string `mapstructure:"locale"`
	// BustDelay is how long a bust is shown before the dice pass on.
	BustDelay time.Duration `mapstructure:"bust_delay"`
	// HandoffDelay is the pause before a computer seat starts its turn.
	HandoffDelay time.Duration `mapstructure:"handoff_delay"`
	// StepDelay is the pause between the computer's roll, select and decide steps.
	StepDelay time.Duration `mapstructure:"step_delay"`
	// KeepThreshold is the turn total the computer banks at in normal play.
	KeepThreshold int `mapstructure:"keep_threshold"`
	// CloseMargin is the distance to 10,000 under which the computer's
	// reroll bands apply.
	CloseMargin int `mapstructure:"close_margin"`
	// RerollBands holds, for 1 to 5 free dice, the probability of rolling
	// again when within CloseMargin of the target.
	RerollBands []float64 `mapstructure:"reroll_bands"`
	// DevCommands enables score and dice manipulation commands.
	DevCommands bool `mapstructure:"dev_commands"`
}

// RemoteConfig selects where remote game records live.
type RemoteConfig struct {
	// Backend is one of "memory", "postgres" or "grpc".
	Backend string `mapstructure:"backend"`
	// GRPCHost is the bind/connect address of the record store service.
	GRPCHost string `mapstructure:"grpc_host"`
	// GRPCPort is the TCP port of the record store service.
	GRPCPort int `mapstructure:"grpc_port"`
	// Timeout bounds each store call made on behalf of a session.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Addr returns the "host:port" gRPC address.
func (r RemoteConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.GRPCHost, r.GRPCPort)
}

// AdminConfig holds the admin HTTP API settings.
type AdminConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the "host:port" listen address.
func (a AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// ScriptingConfig configures the Lua keep-or-reroll decider.
type ScriptingConfig struct {
	// DeciderScript is the path of a Lua file defining decide(view). Empty
	// disables scripting.
	DeciderScript string `mapstructure:"decider_script"`
	// InstructionLimit caps the Lua opcodes per decision; 0 uses the default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telnet    TelnetConfig    `mapstructure:"telnet"`
	Game      GameConfig      `mapstructure:"game"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for _, err := range []error{
		validateDatabase(c.Database),
		validateTelnet(c.Telnet),
		validateLogging(c.Logging),
		validateGame(c.Game),
		validateRemote(c.Remote),
		validateAdmin(c.Admin),
		validateScripting(c.Scripting),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func joined(errs []string) error {
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if !validPort(d.Port) {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	return joined(errs)
}

func validateTelnet(t TelnetConfig) error {
	var errs []string
	if !validPort(t.Port) {
		errs = append(errs, fmt.Sprintf("telnet.port must be 1-65535, got %d", t.Port))
	}
	if t.ReadTimeout < 0 {
		errs = append(errs, "telnet.read_timeout must not be negative")
	}
	if t.WriteTimeout < 0 {
		errs = append(errs, "telnet.write_timeout must not be negative")
	}
	return joined(errs)
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if !slices.Contains([]int{500, 750, 1000}, g.QualificationScore) {
		errs = append(errs, fmt.Sprintf("game.qualification_score must be one of [500, 750, 1000], got %d", g.QualificationScore))
	}
	if g.Locale == "" {
		errs = append(errs, "game.locale must not be empty")
	}
	for name, d := range map[string]time.Duration{
		"bust_delay":    g.BustDelay,
		"handoff_delay": g.HandoffDelay,
		"step_delay":    g.StepDelay,
	} {
		if d < 0 {
			errs = append(errs, fmt.Sprintf("game.%s must not be negative", name))
		}
	}
	if g.KeepThreshold < 50 {
		errs = append(errs, fmt.Sprintf("game.keep_threshold must be >= 50, got %d", g.KeepThreshold))
	}
	if g.CloseMargin < 0 {
		errs = append(errs, fmt.Sprintf("game.close_margin must be >= 0, got %d", g.CloseMargin))
	}
	if len(g.RerollBands) != 5 {
		errs = append(errs, fmt.Sprintf("game.reroll_bands must have 5 entries, got %d", len(g.RerollBands)))
	}
	for i, p := range g.RerollBands {
		if p < 0 || p > 1 {
			errs = append(errs, fmt.Sprintf("game.reroll_bands[%d] must be within [0, 1], got %g", i, p))
		}
	}
	slices.Sort(errs)
	return joined(errs)
}

func validateRemote(r RemoteConfig) error {
	var errs []string
	switch r.Backend {
	case BackendMemory, BackendPostgres, BackendGRPC:
	default:
		errs = append(errs, fmt.Sprintf("remote.backend must be one of [memory, postgres, grpc], got %q", r.Backend))
	}
	if r.GRPCHost == "" {
		errs = append(errs, "remote.grpc_host must not be empty")
	}
	if !validPort(r.GRPCPort) {
		errs = append(errs, fmt.Sprintf("remote.grpc_port must be 1-65535, got %d", r.GRPCPort))
	}
	if r.Timeout <= 0 {
		errs = append(errs, "remote.timeout must be positive")
	}
	return joined(errs)
}

func validateAdmin(a AdminConfig) error {
	if !validPort(a.Port) {
		return fmt.Errorf("admin.port must be 1-65535, got %d", a.Port)
	}
	return nil
}

func validateScripting(s ScriptingConfig) error {
	if s.InstructionLimit < 0 {
		return fmt.Errorf("scripting.instruction_limit must be >= 0, got %d", s.InstructionLimit)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path uses defaults and the
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with TENK_ prefix
	v.SetEnvPrefix("TENK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance holding only the default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "tenk")
	v.SetDefault("database.password", "tenk")
	v.SetDefault("database.name", "tenk")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("telnet.host", "0.0.0.0")
	v.SetDefault("telnet.port", 4000)
	v.SetDefault("telnet.read_timeout", "30m")
	v.SetDefault("telnet.write_timeout", "30s")

	v.SetDefault("game.qualification_score", 1000)
	v.SetDefault("game.locale", "en")
	v.SetDefault("game.bust_delay", "2s")
	v.SetDefault("game.handoff_delay", "2s")
	v.SetDefault("game.step_delay", "1500ms")
	v.SetDefault("game.keep_threshold", 300)
	v.SetDefault("game.close_margin", 150)
	v.SetDefault("game.reroll_bands", []float64{0.25, 0.50, 0.30, 0.10, 0.10})
	v.SetDefault("game.dev_commands", false)

	v.SetDefault("remote.backend", BackendMemory)
	v.SetDefault("remote.grpc_host", "127.0.0.1")
	v.SetDefault("remote.grpc_port", 50051)
	v.SetDefault("remote.timeout", "5s")

	v.SetDefault("admin.host", "127.0.0.1")
	v.SetDefault("admin.port", 8080)

	v.SetDefault("scripting.decider_script", "")
	v.SetDefault("scripting.instruction_limit", 0)
}
