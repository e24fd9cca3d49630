package main

import (
	"fmt"
	"os"

	"github.com/danmuck/sealdrop/internal/config"
	"github.com/danmuck/sealdrop/internal/logging"
	"github.com/danmuck/sealdrop/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	forceInit  bool

	rootCmd = &cobra.Command{
		Use:           "sealdropd",
		Short:         "Encrypted chunked file transfer server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.ConfigureRuntime()
		},
		RunE: runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Accept transfers until interrupted.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	initConfigCmd = &cobra.Command{
		Use:   "init-config <path>",
		Short: "Write a server config template.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := config.WriteTemplate(args[0], config.KindServer, forceInit); err != nil {
				return err
			}
			log.Info().Str("path", args[0]).Msg("wrote server config template")
			return nil
		},
	}

	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "Load the config and report the resolved settings.",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := loadServiceConfig(configPath)
			if err != nil {
				return err
			}
			log.Info().
				Str("listen", cfg.ListenAddr).
				Str("admin", cfg.AdminAddr).
				Str("storage_backend", cfg.StorageBackend).
				Str("storage_root", cfg.StorageRoot).
				Msg("config ok")
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to sealdropd TOML config")
	initConfigCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
	rootCmd.AddCommand(serveCmd, initConfigCmd, validateCmd)
}

func runServe(*cobra.Command, []string) error {
	cfg, err := loadServiceConfig(configPath)
	if err != nil {
		return err
	}
	svc, err := server.NewService(cfg)
	if err != nil {
		return err
	}
	return svc.Run()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sealdropd: %v\n", err)
		os.Exit(1)
	}
}
