package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"echosphere/internal/config"
	"echosphere/internal/server"
)

func main() {
	var (
		host     string
		port     int
		password string
		pongFile string
	)

	cmd := &cobra.Command{
		Use:           "echosphere-server",
		Short:         "An EchoSphere Chat Protocol server implementation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := config.NewLogger()
			if err != nil {
				return err
			}

			if pongFile == "" {
				pongFile = defaultPongPath()
			}

			networking := server.NewNetworking(logger)
			app := server.NewApplication(logger, networking, server.BuiltinCommands(pongFile))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := app.Start(ctx, host, port, password); err != nil {
				logger.WithError(err).Error("Server failed")
				return err
			}
			logger.Info("Goodbye.")
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "The host address to listen on.")
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "The port number to listen on.")
	cmd.Flags().StringVar(&password, "password", "",
		"The server password that the clients will be required to put in while logging in.")
	cmd.Flags().StringVar(&pongFile, "pong-file", "",
		"Path to the pong message corpus used by /ping. Defaults to pong_messages.txt next to the binary.")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultPongPath() string {
	executable, err := os.Executable()
	if err != nil {
		return "pong_messages.txt"
	}
	return filepath.Join(filepath.Dir(executable), "pong_messages.txt")
}
