package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tari-project/tari-core/config"
)

var (
	flagConfigFile string
	log            zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "localnet",
	Short: "Run an in-process validator node committee",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfigFile, "config", "c", "", "path to a config file (yaml, toml or json)")
	config.InitializeFlags(rootCmd.PersistentFlags(), config.DefaultConfig())

	rootCmd.AddCommand(runCmd)
}

// loadConfig reads the configuration and sets up the logger from it.
func loadConfig(cmd *cobra.Command) (*config.NodeConfig, error) {
	conf, err := config.Load(flagConfigFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	level, err := conf.LogLevel()
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	writer := cmd.ErrOrStderr()
	if conf.Log.Console {
		writer = zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}
	}
	log = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return conf, nil
}
