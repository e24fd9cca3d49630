package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/sealdrop/internal/client"
	"github.com/danmuck/sealdrop/internal/config"
	"github.com/danmuck/sealdrop/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	opts      sendOptions
	forceInit bool

	rootCmd = &cobra.Command{
		Use:           "sealdrop",
		Short:         "Send a file to a sealdropd server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.ConfigureRuntime()
		},
	}

	sendCmd = &cobra.Command{
		Use:   "send",
		Short: "Register or reconnect, then upload a file.",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, resolved, err := opts.resolve()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return send(ctx, cfg, resolved)
		},
	}

	initConfigCmd = &cobra.Command{
		Use:   "init-config <path>",
		Short: "Write a client profile template.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := config.WriteTemplate(args[0], config.KindClient, forceInit); err != nil {
				return err
			}
			log.Info().Str("path", args[0]).Msg("wrote client profile template")
			return nil
		},
	}
)

func init() {
	f := sendCmd.Flags()
	f.StringVar(&opts.TransferPath, "transfer", client.TransferFile, "transfer file: host:port, name and file path")
	f.StringVarP(&opts.ProfilePath, "profile", "p", "", "client TOML profile")
	f.StringVar(&opts.IdentityPath, "identity", "", "identity file (default me.info)")
	f.StringVarP(&opts.Server, "server", "s", "", "server host:port")
	f.StringVarP(&opts.Name, "name", "n", "", "client name used when registering")
	f.StringVarP(&opts.File, "file", "f", "", "file to send")
	initConfigCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
	rootCmd.AddCommand(sendCmd, initConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sealdrop: %v\n", err)
		os.Exit(1)
	}
}
