// Package config resolves the server settings from defaults, an optional .env
// file, PAROLIERE_* environment variables and command-line flags, in that
// order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

// EnvPrefix prefixes every environment variable the server reads
const EnvPrefix = "PAROLIERE_"

// DefaultEnvFile is loaded when present
const DefaultEnvFile = ".env"

// Config holds every server setting
type Config struct {
	Name string
	Host string
	Port int

	RoundDuration     time.Duration
	BreakDuration     time.Duration
	InactivityTimeout time.Duration

	DictionaryPath string
	GridPath       string
	Seed           int64
	SeedSet        bool

	MaxClients     int
	ScoreGrace     time.Duration
	RankingTimeout time.Duration
	ShutdownGrace  time.Duration
	MessageRate    float64
	MessageBurst   int

	LogLevel   string
	LogFile    string
	StatusAddr string

	ShowVersion bool
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Name:              "paroliere",
		Host:              "localhost",
		Port:              8080,
		RoundDuration:     3 * time.Minute,
		BreakDuration:     time.Minute,
		InactivityTimeout: 3 * time.Minute,
		DictionaryPath:    "dictionary.txt",
		MaxClients:        32,
		ScoreGrace:        time.Second,
		RankingTimeout:    10 * time.Second,
		ShutdownGrace:     5 * time.Second,
		MessageRate:       20,
		MessageBurst:      40,
		LogLevel:          "INFO",
		LogFile:           "paroliere.log",
	}
}

// Address returns host:port for the game listener
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Load resolves the configuration for the command line args (without the
// program name), reading DefaultEnvFile when it exists.
func Load(args []string) (*Config, error) {
	return LoadWithEnvFile(DefaultEnvFile, args)
}

// LoadWithEnvFile is Load with an explicit .env path. Variables already set in
// the environment win over the file.
func LoadWithEnvFile(envFile string, args []string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.applyFlags(args); err != nil {
		return nil, err
	}
	if cfg.ShowVersion {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type envSetter struct {
	key string
	set func(string) error
}

func (c *Config) envSetters() []envSetter {
	return []envSetter{
		{"NAME", stringVar(&c.Name)},
		{"HOST", stringVar(&c.Host)},
		{"PORT", intVar(&c.Port)},
		{"ROUND_DURATION", durationVar(&c.RoundDuration)},
		{"BREAK_DURATION", durationVar(&c.BreakDuration)},
		{"INACTIVITY_TIMEOUT", durationVar(&c.InactivityTimeout)},
		{"DICTIONARY", stringVar(&c.DictionaryPath)},
		{"GRIDS", stringVar(&c.GridPath)},
		{"SEED", c.setSeed},
		{"MAX_CLIENTS", intVar(&c.MaxClients)},
		{"SCORE_GRACE", durationVar(&c.ScoreGrace)},
		{"RANKING_TIMEOUT", durationVar(&c.RankingTimeout)},
		{"SHUTDOWN_GRACE", durationVar(&c.ShutdownGrace)},
		{"MESSAGE_RATE", floatVar(&c.MessageRate)},
		{"MESSAGE_BURST", intVar(&c.MessageBurst)},
		{"LOG_LEVEL", stringVar(&c.LogLevel)},
		{"LOG_FILE", stringVar(&c.LogFile)},
		{"STATUS_ADDR", stringVar(&c.StatusAddr)},
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs error
	for _, e := range c.envSetters() {
		val, ok := lookup(EnvPrefix + e.key)
		if !ok || val == "" {
			continue
		}
		if err := e.set(val); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, e.key, err))
		}
	}
	return errs
}

func (c *Config) applyFlags(args []string) error {
	flags := flag.NewFlagSet("paroliere", flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	flags.StringVar(&c.Name, "name", c.Name, "Server name shown to clients")
	flags.StringVar(&c.Host, "host", c.Host, "Listen host")
	flags.IntVar(&c.Port, "port", c.Port, "Listen port (1025-65535)")
	flags.DurationVar(&c.RoundDuration, "round", c.RoundDuration, "Round duration")
	flags.DurationVar(&c.BreakDuration, "break", c.BreakDuration, "Break duration between rounds")
	flags.DurationVar(&c.InactivityTimeout, "disconnect-after", c.InactivityTimeout, "Disconnect clients idle for this long")
	flags.StringVar(&c.DictionaryPath, "dict", c.DictionaryPath, "Dictionary file, one word per line")
	flags.StringVar(&c.GridPath, "grids", c.GridPath, "Grid file, one 16-cell grid per line (optional)")
	flags.Func("seed", "Seed for random grids (optional)", c.setSeed)
	flags.IntVar(&c.MaxClients, "max-clients", c.MaxClients, "Maximum concurrent clients")
	flags.DurationVar(&c.ScoreGrace, "score-grace", c.ScoreGrace, "Pause before forcing score collection")
	flags.DurationVar(&c.RankingTimeout, "ranking-timeout", c.RankingTimeout, "Longest wait for the ranking broadcast")
	flags.DurationVar(&c.ShutdownGrace, "shutdown-grace", c.ShutdownGrace, "Longest wait for sessions at shutdown")
	flags.Float64Var(&c.MessageRate, "rate", c.MessageRate, "Messages per second allowed per client")
	flags.IntVar(&c.MessageBurst, "burst", c.MessageBurst, "Message burst allowed per client")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (DEBUG, INFO, WARN, ERROR)")
	flags.StringVar(&c.LogFile, "log-file", c.LogFile, "Log file path, empty to disable")
	flags.StringVar(&c.StatusAddr, "status-addr", c.StatusAddr, "HTTP status listen address, empty to disable")
	flags.BoolVar(&c.ShowVersion, "version", false, "Show version information")

	if err := flags.Parse(args); err != nil {
		return err
	}

	// positional form: <name> <port>
	rest := flags.Args()
	if len(rest) > 2 {
		return fmt.Errorf("unexpected arguments: %v", rest[2:])
	}
	if len(rest) >= 1 {
		c.Name = rest[0]
	}
	if len(rest) == 2 {
		port, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", rest[1], err)
		}
		c.Port = port
	}
	return nil
}

func (c *Config) setSeed(val string) error {
	seed, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return err
	}
	c.Seed = seed
	c.SeedSet = true
	return nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs error
	if c.Port < 1025 || c.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("port %d out of range 1025-65535", c.Port))
	}
	if c.DictionaryPath == "" {
		errs = multierr.Append(errs, errors.New("dictionary path is required"))
	}
	if c.MaxClients <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("max clients must be positive, got %d", c.MaxClients))
	}
	if c.MessageRate <= 0 || c.MessageBurst <= 0 {
		errs = multierr.Append(errs, errors.New("message rate and burst must be positive"))
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"round duration", c.RoundDuration},
		{"break duration", c.BreakDuration},
		{"inactivity timeout", c.InactivityTimeout},
		{"score grace", c.ScoreGrace},
		{"ranking timeout", c.RankingTimeout},
		{"shutdown grace", c.ShutdownGrace},
	}
	for _, d := range durations {
		if d.d <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("%s must be positive, got %v", d.name, d.d))
		}
	}
	return errs
}

func stringVar(p *string) func(string) error {
	return func(v string) error {
		*p = v
		return nil
	}
}

func intVar(p *int) func(string) error {
	return func(v string) error {
		i, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*p = i
		return nil
	}
}

func floatVar(p *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*p = f
		return nil
	}
}

func durationVar(p *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*p = d
		return nil
	}
}
