// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/cypherguard/internal/config"
	"github.com/xkilldash9x/cypherguard/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

const (
	envPrefix      = "CYPHERGUARD"
	configName     = "cypherguard"
	homeConfigName = ".cypherguard"
)

// NewRootCommand builds the command tree. Each call returns an independent
// tree so flag state never leaks between executions.
func NewRootCommand() *cobra.Command {
	return newRootCommand(NewToolboxProvider())
}

func newRootCommand(provider toolboxProvider) *cobra.Command {
	var (
		cfgFile  string
		database string
	)

	rootCmd := &cobra.Command{
		Use:     "cypherguard",
		Short:   "Read-only natural-language access to a Neo4j graph.",
		Long:    "cypherguard classifies Cypher statements and the prompts they came from, refuses anything that is not a read, and runs the rest against Neo4j under strict bounds.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Arguments parsed; later failures are not usage errors.
			cmd.SilenceUsage = true

			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to load or validate config: %w", err)
			}
			if database != "" {
				cfg.SetNeo4jDatabase(database)
			}

			// Stdout carries results; logs go to stderr.
			observability.Initialize(cfg.Logger(), zapcore.Lock(zapcore.AddSync(cmd.ErrOrStderr())))
			observability.GetLogger().Debug("Starting cypherguard", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, config.Interface(cfg)))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./cypherguard.yaml, then ~/.cypherguard/cypherguard.yaml)")
	rootCmd.PersistentFlags().StringVar(&database, "database", "", "Neo4j database name (overrides neo4j.database)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newServeCmd(provider),
		newQueryCmd(provider),
		newToolCmd(provider),
		newClassifyCmd(),
		newSchemaCmd(provider),
		newHistoryCmd(provider),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the CLI with a signal-aware context from main.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		observability.GetLogger().Debug("Command execution failed", zap.Error(err))
	}
	return err
}

// initializeConfig points v at the config file and the environment. A
// missing config file is not an error; defaults and env vars still apply.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to expand config path: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, homeConfigName))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// getConfigFromContext returns the configuration stored by the root command.
func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not found in context")
	}
	return cfg, nil
}
