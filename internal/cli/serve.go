// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ollachat/internal/conversation"
	"github.com/jeranaias/ollachat/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat in a browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(server.Options{
				Generator:   conversation.NewOllamaGenerator(a.client),
				Generation:  a.gen,
				Policy:      a.cfg.ErrorHistoryPolicy(),
				BaseURL:     a.client.BaseURL(),
				Health:      a.client,
				SessionIdle: a.cfg.Server.SessionIdle,
				Logger:      a.logger,
				AccessLog:   a.logger.Writer(),
			})
			return srv.Run(ctx, a.cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, 127.0.0.1:8501)")
	return cmd
}

