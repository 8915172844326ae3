// Package config holds the sliver agent's validated startup configuration.
//
// Config is assembled once at startup from flags, an optional config file,
// and environment overrides, then validated. Nothing in this package
// mutates a Config after Load returns it; callers share the same *Config
// value rather than reaching through a package-level singleton.
package config

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the agent's immutable startup configuration.
type Config struct {
	ConfigPath    string `yaml:"-"`
	Foreground    bool   `yaml:"-"`
	LogDir        string `yaml:"logdir"`
	PIDFile       string `yaml:"pidfile"`
	PublicKey     string `yaml:"public_key"`
	SliceName     string `yaml:"slice_name"`
	SliceSecret   string `yaml:"slice_secret"` // hex-encoded, optional
	ObserverURL   string `yaml:"observer_url"`
	PollInterval  int    `yaml:"poll_timeout"`
	MountpointDir string `yaml:"mountpoint_dir"`
	Port          int    `yaml:"port"`
	Debug         bool   `yaml:"debug"`
	RunOnce       bool   `yaml:"-"`
	UGOnly        bool   `yaml:"-"`
	RGOnly        bool   `yaml:"-"`
	RGPublic      bool   `yaml:"-"`

	// HexSecret controls whether the slice secret fetched from the
	// Observer's SYNDICATE_SLICE_SECRET endpoint is hex-decoded before
	// use; the Observer may serve it raw or hex-encoded depending on
	// deployment.
	HexSecret bool `yaml:"hex_secret"`

	// UGWatchdogBinary and RGWatchdogBinary name the watchdog executables
	// the Reconciler spawns. The Reconciler also passes these names to
	// GatewayRegistry.Find when looking for running watchdogs.
	UGWatchdogBinary string `yaml:"ug_watchdog_binary"`
	RGWatchdogBinary string `yaml:"rg_watchdog_binary"`

	// UGGatewayBinary and RGGatewayBinary are the actual gateway
	// executables a watchdog supervises. Their sensitive argv is built
	// by the Reconciler and piped to the watchdog's stdin, never passed
	// on the watchdog's own command line.
	UGGatewayBinary string `yaml:"ug_gateway_binary"`
	RGGatewayBinary string `yaml:"rg_gateway_binary"`
}

// defaults mirrors the source daemon's DEFAULT_CONFIG table. PublicKey
// and ObserverURL are deliberately left zero-valued: both are required,
// and validate rejects an empty value, so a convenience default here
// would silently defeat that requirement.
func defaults() Config {
	return Config{
		LogDir:           "/var/log/syndicated",
		PIDFile:          "/var/run/syndicated.pid",
		PollInterval:     43200,
		MountpointDir:    "/tmp/syndicate-mounts",
		Port:             5553,
		HexSecret:        true,
		UGWatchdogBinary: "syndicate-ug-watchdog",
		RGWatchdogBinary: "syndicate-rg-watchdog",
		UGGatewayBinary:  "syndicate-ug-server",
		RGGatewayBinary:  "syndicate-rg-server",
	}
}

// Load starts from defaults, parses args (flags), fills in values the
// flags left unset from an optional config file, applies environment
// overrides on top, and validates invariants. args excludes the program
// name, matching flag.FlagSet.Parse's convention.
func Load(args []string) (*Config, error) {
	cfg := defaults()

	fs := flag.NewFlagSet("syndicated", flag.ContinueOnError)
	fs.StringVar(&cfg.ConfigPath, "config", "", "path to the daemon configuration file")
	fs.BoolVar(&cfg.Foreground, "foreground", false, "run in the foreground")
	fs.StringVar(&cfg.LogDir, "logdir", cfg.LogDir, "directory to contain the log files")
	fs.StringVar(&cfg.PIDFile, "pidfile", cfg.PIDFile, "path to the desired PID file")
	fs.StringVar(&cfg.PublicKey, "public_key", "", "path to the Observer public key (required)")
	fs.StringVar(&cfg.SliceName, "slice_name", "", "name of the slice")
	fs.StringVar(&cfg.SliceSecret, "slice_secret", "", "shared secret with Observer for this slice, hex-encoded")
	fs.StringVar(&cfg.ObserverURL, "observer_url", "", "URL to the Syndicate Observer (required)")
	fs.IntVar(&cfg.PollInterval, "poll_timeout", cfg.PollInterval, "seconds to wait between polls")
	fs.StringVar(&cfg.MountpointDir, "mountpoint_dir", cfg.MountpointDir, "directory to hold Volume mountpoints")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "port to listen on for Observer-given pushes")
	fs.BoolVar(&cfg.Debug, "debug", false, "print debugging information")
	fs.BoolVar(&cfg.HexSecret, "hex_secret", cfg.HexSecret, "hex-decode the slice secret fetched from the Observer")
	fs.BoolVar(&cfg.RunOnce, "run_once", false, "poll once, reconcile once, and exit")
	fs.BoolVar(&cfg.RGOnly, "RG_only", false, "only start the RG")
	fs.BoolVar(&cfg.UGOnly, "UG_only", false, "only start the UG")
	fs.BoolVar(&cfg.RGPublic, "RG_public", false, "make the local RG instance publicly reachable")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if cfg.ConfigPath != "" {
		if err := mergeFile(&cfg, cfg.ConfigPath); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", cfg.ConfigPath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeFile layers YAML file values under whatever flags already set.
// Flags take precedence: public_key, slice_name, slice_secret and
// observer_url are taken from the file only while still empty, and
// mountpoint_dir, ug_gateway_binary and rg_gateway_binary only while
// still at their defaults. No other key of the file is applied.
func mergeFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var fromFile Config
	if err := yaml.NewDecoder(f).Decode(&fromFile); err != nil {
		return err
	}

	if cfg.PublicKey == "" {
		cfg.PublicKey = fromFile.PublicKey
	}
	if cfg.SliceName == "" {
		cfg.SliceName = fromFile.SliceName
	}
	if cfg.SliceSecret == "" {
		cfg.SliceSecret = fromFile.SliceSecret
	}
	if cfg.ObserverURL == "" {
		cfg.ObserverURL = fromFile.ObserverURL
	}
	if cfg.MountpointDir == defaults().MountpointDir && fromFile.MountpointDir != "" {
		cfg.MountpointDir = fromFile.MountpointDir
	}
	if cfg.UGGatewayBinary == defaults().UGGatewayBinary && fromFile.UGGatewayBinary != "" {
		cfg.UGGatewayBinary = fromFile.UGGatewayBinary
	}
	if cfg.RGGatewayBinary == defaults().RGGatewayBinary && fromFile.RGGatewayBinary != "" {
		cfg.RGGatewayBinary = fromFile.RGGatewayBinary
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SYNDICATED_OBSERVER_URL"); v != "" {
		cfg.ObserverURL = v
	}
	if v := os.Getenv("SYNDICATED_SLICE_NAME"); v != "" {
		cfg.SliceName = v
	}
	if v := os.Getenv("SYNDICATED_SLICE_SECRET"); v != "" {
		cfg.SliceSecret = v
	}
	if v := os.Getenv("SYNDICATED_PUBLIC_KEY"); v != "" {
		cfg.PublicKey = v
	}
}

func validate(cfg *Config) error {
	if cfg.ObserverURL == "" {
		return fmt.Errorf("%w: observer_url is required", ErrInvalid)
	}
	if cfg.PublicKey == "" {
		return fmt.Errorf("%w: public_key is required", ErrInvalid)
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("%w: poll_timeout must be positive", ErrInvalid)
	}
	if cfg.Port <= 0 {
		return fmt.Errorf("%w: port must be positive", ErrInvalid)
	}
	if cfg.UGOnly && cfg.RGOnly {
		return fmt.Errorf("%w: UG_only and RG_only are mutually exclusive", ErrInvalid)
	}
	if cfg.SliceSecret != "" {
		if _, err := hex.DecodeString(cfg.SliceSecret); err != nil {
			return fmt.Errorf("%w: slice_secret is not valid hex: %v", ErrInvalid, err)
		}
	}
	return nil
}

// SliceSecretBytes decodes the hex-encoded slice secret given at startup,
// if any. Returns false if none was configured.
func (c *Config) SliceSecretBytes() ([]byte, bool) {
	if c.SliceSecret == "" {
		return nil, false
	}
	b, err := hex.DecodeString(c.SliceSecret)
	if err != nil {
		return nil, false
	}
	return b, true
}
