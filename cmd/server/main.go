package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avolkov/linechat-server/internal/app"
	"github.com/avolkov/linechat-server/internal/config"
	"github.com/avolkov/linechat-server/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:          "linechat-server",
		Short:        "Line-oriented TCP chat server",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")

	root.AddCommand(newServeCmd(&cfgPath))
	root.AddCommand(newUseraddCmd(&cfgPath))
	return root
}

func newServeCmd(cfgPath *string) *cobra.Command {
	var (
		addr     string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept client connections and route chat messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cfgFile, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", cfgFile).Str("addr", cfg.Addr).Msg("starting linechat server")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(&cfg, logger)
			if err != nil {
				return err
			}
			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "TCP listen address")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	return cmd
}

func newUseraddCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "useradd <username> <password>",
		Short: "Register a credential without starting the server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}

			st, err := app.OpenStore(&cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			if err := st.Register(cmd.Context(), args[0], args[1]); err != nil {
				return fmt.Errorf("register %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s registered\n", args[0])
			return nil
		},
	}
}

func loadConfig(explicitPath string) (config.Config, string, error) {
	bootstrap := log.New("info")
	return config.Load(bootstrap, explicitPath)
}
