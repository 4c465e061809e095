package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/util"
)

const version = "v0.1.0"

var (
	cfgFile string
	verbose bool
	noCache bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "veracity",
	Short: "Veracity - check generated text against an encyclopedic knowledge source",
	Long: `Veracity splits text into sentence claims, looks each claim up in an
encyclopedic knowledge source, and scores the claim against the evidence
with an entailment or embedding model.

Every claim gets exactly one label: consistent, inconsistent,
no_evidence, scoring_error or cancelled.

A low score means the evidence does not support the claim.
It does not mean the claim is false.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number for Veracity.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "veracity %s\n", version)
	},
}

// flagKeys maps global flags to configuration keys
var flagKeys = map[string]string{
	"preset":      "preset",
	"lang":        "evidence.language",
	"sentences":   "evidence.max_sentences",
	"retries":     "evidence.retries",
	"backoff":     "evidence.backoff_ms",
	"timeout":     "evidence.timeout",
	"http-proxy":  "evidence.http_proxy",
	"https-proxy": "evidence.https_proxy",
	"strategy":    "scoring.strategy",
	"threshold":   "scoring.threshold",
	"entities":    "entity.enabled",
	"workers":     "concurrency.workers",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

// optionalKeys are omitted from the marshalled defaults when empty, so their
// environment variables are bound explicitly
var optionalKeys = []string{
	"evidence.endpoint", "evidence.http_proxy", "evidence.https_proxy", "evidence.no_proxy",
	"segmenter.endpoint", "scoring.model", "scoring.endpoint", "entity.endpoint",
	"output.json", "output.md",
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.veracity/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.String("preset", "wiki-en-nli", "configuration preset ("+strings.Join(model.PresetNames(), ", ")+")")

	// Knowledge source
	pf.String("lang", "", "knowledge source language (e.g. en, es)")
	pf.Int("sentences", 0, "evidence sentences per lookup (0 = whole extract)")
	pf.Int("retries", 0, "lookup retries on transient errors")
	pf.Int("backoff", 0, "initial retry backoff in milliseconds")
	pf.Duration("timeout", 0, "knowledge source request timeout")
	pf.String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	pf.String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	pf.BoolVar(&noCache, "no-cache", false, "disable lookup cache (force fresh fetch)")

	// Scoring
	pf.String("strategy", "", "scoring strategy (entailment, cosine)")
	pf.Float64("threshold", 0, "consistency threshold (default depends on strategy)")
	pf.Bool("entities", false, "require response entities to appear in the evidence")
	pf.Int("workers", 0, "concurrent claim checks per run")

	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (console, json)")

	bindFlags()

	rootCmd.AddCommand(versionCmd)
}

// bindFlags binds global flags and extra environment variables to viper keys
func bindFlags() {
	for flag, key := range flagKeys {
		_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
	}
	_ = viper.BindEnv("scoring.api_key", "VERACITY_SCORING_API_KEY", "OPENAI_API_KEY")
	for _, key := range optionalKeys {
		_ = viper.BindEnv(key)
	}
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".veracity"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// VERACITY_EVIDENCE_LANGUAGE maps to evidence.language
	viper.SetEnvPrefix("VERACITY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig resolves the effective configuration:
// flags > VERACITY_* env > config file > preset > defaults
func loadConfig() (*model.Config, error) {
	base, err := model.Preset(viper.GetString("preset"))
	if err != nil {
		return nil, err
	}
	if err := setDefaults(base); err != nil {
		return nil, err
	}

	cfg := &model.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyStrategy(cfg, base)
	if noCache {
		cfg.Cache.Enabled = false
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every field of base as a viper default
func setDefaults(base *model.Config) error {
	data, err := yaml.Marshal(base)
	if err != nil {
		return fmt.Errorf("marshal preset: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal preset: %w", err)
	}

	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := v.(map[string]any); ok {
				walk(key, sub)
				continue
			}
			viper.SetDefault(key, v)
		}
	}
	walk("", tree)
	return nil
}

// applyStrategy keeps threshold and model consistent when the strategy was
// switched away from the preset's without naming them explicitly
func applyStrategy(cfg, base *model.Config) {
	if cfg.Scoring.Strategy == base.Scoring.Strategy {
		return
	}
	if cfg.Scoring.Threshold == base.Scoring.Threshold {
		cfg.Scoring.Threshold = model.DefaultThreshold(cfg.Scoring.Strategy)
	}
	if cfg.Scoring.Provider != base.Scoring.Provider || cfg.Scoring.Model != base.Scoring.Model {
		return
	}

	switch cfg.Scoring.Strategy {
	case model.StrategyCosine:
		cfg.Scoring.Provider = "openai"
		cfg.Scoring.Model = "text-embedding-3-small"
		cfg.Scoring.Endpoint = ""
	case model.StrategyEntailment:
		def := model.DefaultConfig().Scoring
		cfg.Scoring.Provider = def.Provider
		cfg.Scoring.Model = def.Model
		cfg.Scoring.Endpoint = def.Endpoint
	}
}

// newLogger builds the zap logger for cfg
func newLogger(cfg *model.Config) (*zap.Logger, error) {
	logger, err := util.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}
