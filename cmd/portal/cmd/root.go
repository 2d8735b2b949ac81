// Package cmd provides the CLI commands for the e-learning portal.
package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jrsteele09/go-elearning-portal/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "E-learning portal",
	Long: `portal signs a single user in to the e-learning identity provider,
keeps their access token fresh and serves the course pages locally.

Configuration comes from PORTAL_* environment variables, an optional
config/.env.<env> file and an optional YAML file passed with --config.

Commands:
  serve       Start the portal (default)
  whoami      Show the signed-in user from a persisted session
  courses     List, search, create, update or delete courses with a
              persisted session
  version     Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.RunE = runServe
}

// loadConfig reads the configuration and sets up the global logger from it.
func loadConfig() (config.Config, error) {
	c, err := config.New(cfgFile)
	if err != nil {
		return nil, err
	}
	setupLogging(c.GetEnv(), c.GetLogLevel())
	return c, nil
}

func setupLogging(env, level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if env == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
