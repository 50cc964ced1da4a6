// Package main provides the entry point for the readaloud CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/readaloud/ttsengine/internal/cloud"
	"github.com/readaloud/ttsengine/tts/engines"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	debug      bool

	rootCmd = &cobra.Command{
		Use:   "readaloud",
		Short: "Read text aloud with on-device, cloud and premium voices",
		Long: paragraph(
			fmt.Sprintf("\nRead text aloud with %s, one engine per voice.", keyword("on-device, cloud and premium voices")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return validateOptions()
		},
	}
)

// DefaultServiceURL is the read-aloud backend.
const DefaultServiceURL = "https://support.readaloud.app"

func validateOptions() error {
	if viper.GetBool("debug") && !debugLogging {
		debugLogging = true
		log.SetLevel(log.DebugLevel)
	}
	applyLogLevel(viper.GetString("log.level"))

	if viper.GetString("service_url") == "" {
		return errors.New("service_url must not be empty")
	}
	if d := viper.GetDuration("timeout"); d < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", d)
	}
	if rpm := viper.GetInt("translate.requests_per_minute"); rpm < 0 {
		return fmt.Errorf("translate.requests_per_minute must not be negative, got %d", rpm)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")
	rootCmd.PersistentFlags().String("service-url", DefaultServiceURL, "read-aloud service base URL")
	rootCmd.PersistentFlags().Duration("timeout", engines.DefaultTimeout, "give up on a voice that stays silent this long (0 disables)")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("service_url", rootCmd.PersistentFlags().Lookup("service-url"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))

	viper.SetDefault("service_url", DefaultServiceURL)
	viper.SetDefault("timeout", engines.DefaultTimeout)
	viper.SetDefault("platform", "")
	viper.SetDefault("settings_dir", "")
	viper.SetDefault("voice", "")
	viper.SetDefault("gap", 300*time.Millisecond)
	viper.SetDefault("neural.api_key", "")
	viper.SetDefault("neural.relay_url", cloud.DefaultRelayURL)
	viper.SetDefault("neural.relay_token", "")
	viper.SetDefault("translate.requests_per_minute", cloud.DefaultRequestsPerMinute)
	viper.SetDefault("espeak.binary", "espeak-ng")
	viper.SetDefault("log.level", "warn")

	rootCmd.AddCommand(speakCmd, voicesCmd, accountCmd, buyCmd, loginCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "readaloud")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	cfg, err := env.ParseAs[envConfig]()
	if err != nil {
		log.Warn("Could not parse environment", "err", err)
	}
	if cfg.XDGConfig != "" {
		dirs = append([]string{filepath.Join(cfg.XDGConfig, "readaloud")}, dirs...)
	}
	if cfg.ConfigHome != "" {
		dirs = append([]string{cfg.ConfigHome}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("readaloud")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("readaloud")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "readaloud.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
