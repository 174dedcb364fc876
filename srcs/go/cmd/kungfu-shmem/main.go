package main

import (
	"os"

	"github.com/lsds/kungfu-shmem/srcs/go/kungfu/config"
	"github.com/lsds/kungfu-shmem/srcs/go/log"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string

	// env holds the overlay loaded from configFile, falling back to the
	// process environment.
	env = config.Env{}

	rootCmd = &cobra.Command{
		Use:           "kungfu-shmem",
		Short:         "Collective algorithms for a partitioned global address space",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML file of configuration overrides, keyed by environment variable name")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR")
	rootCmd.AddCommand(listCmd, runCmd, topoCmd, versionCmd)
}

func loadConfig() error {
	if len(configFile) > 0 {
		e, err := config.LoadYAML(configFile)
		if err != nil {
			return err
		}
		env = e
	}
	if len(logLevel) > 0 {
		env[config.LogLevelEnvKey] = logLevel
	}
	c, err := config.FromEnv(env.Getenv)
	if err != nil {
		return err
	}
	config.Apply(c)
	if level, ok := log.ParseLevel(c.LogLevel); ok {
		log.SetLevel(level)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
