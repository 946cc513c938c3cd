// Package cli implements the scriptwriter command line.
package cli

import (
	"errors"
	"io/fs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ScriptWriter/internal/app"
	"ScriptWriter/internal/config"
	"ScriptWriter/internal/logging"
)

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
}

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "scriptwriter",
		Short: "Research-backed short video script generator",
		Long: `scriptwriter turns a video idea into a finished short-form script.
It gathers sources, extracts facts, generates hooks, bridges, golden
nuggets and calls to action, and assembles the four you pick.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file (default $SCRIPTWRITER_CONFIG)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before configuration")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newRunCommand(opts))
	root.AddCommand(newHistoryCommand(opts))

	return root
}

// loadConfig applies the dotenv file, then the YAML file and environment.
func (o *rootOptions) loadConfig() (config.Config, error) {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, err
		}
	}

	var cfg config.Config
	if o.configPath != "" {
		cfg = config.LoadFrom(o.configPath)
	} else {
		cfg = config.Load()
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

func (o *rootOptions) bootstrap(cmd *cobra.Command, appOpts app.Options) (*app.Application, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	return app.New(cmd.Context(), cfg, logger, appOpts)
}
