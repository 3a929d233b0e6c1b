package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"reelforge/internal/app"
	"reelforge/internal/logging"
	"reelforge/internal/pipeline"
	"reelforge/internal/server"
)

const tokenEnv = "REELFORGE_API_TOKEN"

func newServeCommand(ctx *commandContext) *cobra.Command {
	var (
		bind  string
		token string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: "Serve the run lifecycle over HTTP. Set --token or " + tokenEnv + " to\n" +
			"require a bearer token. With --watch the inbox watcher runs alongside.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app.App) error {
				if strings.TrimSpace(bind) == "" {
					bind = a.Config.Paths.APIBind
				}
				if token == "" {
					token = strings.TrimSpace(os.Getenv(tokenEnv))
				}
				srv := server.New(a, a.History, server.Options{
					Bind:     bind,
					Token:    token,
					Defaults: requestDefaults(a),
					Logger:   a.Logger,
				})

				g, gctx := errgroup.WithContext(cmd.Context())
				if err := srv.Start(gctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Listening on http://%s\n", srv.Addr())
				g.Go(func() error {
					<-gctx.Done()
					return nil
				})
				if watch {
					g.Go(func() error { return runWatcher(gctx, a) })
				}
				err := g.Wait()
				if err != nil && !errors.Is(err, context.Canceled) {
					logging.ErrorWithContext(a.Logger, "serve stopped", "serve_failed", logging.Error(err))
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default paths.api_bind)")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token required on API requests")
	cmd.Flags().BoolVar(&watch, "watch", false, "Also process scripts dropped into the inbox")
	return cmd
}

func requestDefaults(a *app.App) func(script string) pipeline.Request {
	return func(script string) pipeline.Request {
		return pipeline.RequestFromConfig(a.Config, script)
	}
}
