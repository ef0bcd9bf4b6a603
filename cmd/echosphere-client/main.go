package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"echosphere/internal/client"
	"echosphere/internal/config"
	"echosphere/internal/event"
)

func main() {
	var (
		host     string
		port     int
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:           "echosphere-client",
		Short:         "A terminal client for EchoSphere Chat Protocol servers",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := config.NewLogger()
			if err != nil {
				return err
			}
			return run(cmd.Context(), logger, host, port, username, password)
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "The host address of the server.")
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "The port number of the server.")
	cmd.Flags().StringVar(&username, "username", "", "The display name to log in with.")
	cmd.Flags().StringVar(&password, "password", "", "The server password, if the server requires one.")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *logrus.Logger, host string, port int, username, password string) error {
	ui := newTerminalUI()
	networking := client.NewNetworking(logger)

	if username == "" {
		var err error
		username, err = ui.AskFor("Username", "")
		if err != nil {
			return err
		}
	}

	networking.MessageReceived.On(event.NewListener(func(message client.Message) {
		if message.Username == "" {
			ui.DisplaySystem(message.Text)
		} else {
			ui.DisplayMessage(message.Username, message.Text)
		}
	}))
	networking.ConnectionLost.On(event.NewListener(func(err error) {
		ui.Exit(err)
	}))
	ui.MessageSubmit().On(event.NewListener(func(text string) {
		if text == "/quit" {
			if err := networking.Disconnect(); err != nil {
				logger.WithError(err).Error("Disconnect failed")
			}
			ui.Exit(nil)
			return
		}
		if err := networking.SendMessage(ctx, text); err != nil {
			ui.Alert(err.Error())
		}
	}))

	if err := networking.Join(ctx, host, port, username, password); err != nil {
		return err
	}
	defer networking.Disconnect()

	ui.DisplaySystem(fmt.Sprintf("Joined %s:%d as %s. Type a message, or /quit to leave.", host, port, username))

	if err := ui.Run(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return networking.Disconnect()
}
