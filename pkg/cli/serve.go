package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/jowin03/Slack-NVD-Integration/pkg/cli/config"
	httpctrl "github.com/jowin03/Slack-NVD-Integration/pkg/controller/http"
	"github.com/jowin03/Slack-NVD-Integration/pkg/repository/memory"
	"github.com/jowin03/Slack-NVD-Integration/pkg/service/notifier"
	"github.com/jowin03/Slack-NVD-Integration/pkg/service/worker"
	"github.com/jowin03/Slack-NVD-Integration/pkg/usecase"
	"github.com/jowin03/Slack-NVD-Integration/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var slackCfg config.Slack
	var nvdCfg config.NVD

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("SLACK_NVD_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, nvdCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the feed poller and the interaction webhook server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			// The dispatch ledger is in-memory: a restart starts from a
			// fresh slate and in-flight CVEs are re-dispatched
			repo := memory.New()
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			slackSvc, err := slackCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure slack service")
			}

			feed, err := nvdCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure NVD feed client")
			}

			n, err := notifier.New(slackSvc, slackCfg.AdminChannel())
			if err != nil {
				return goerr.Wrap(err, "failed to configure notifier")
			}

			uc := usecase.New(repo, slackSvc, n)

			poller, err := worker.NewFeedPoller(feed, uc.Dispatch,
				nvdCfg.Schedule(), nvdCfg.PageSize(), nvdCfg.PageDelay())
			if err != nil {
				return goerr.Wrap(err, "failed to create feed poller")
			}
			if err := poller.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start feed poller")
			}

			interactionHandler := httpctrl.NewSlackInteractionHandler(uc.Interaction)

			var httpOpts []httpctrl.Options
			if slackCfg.IsWebhookConfigured() {
				httpOpts = append(httpOpts, httpctrl.WithSigningSecret(slackCfg.SigningSecret()))
			} else {
				logging.Default().Warn("Slack signing secret not configured, webhook signature verification disabled")
			}

			httpHandler, err := httpctrl.New(interactionHandler, httpOpts...)
			if err != nil {
				return goerr.Wrap(err, "failed to create http server")
			}
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr,
					"slack", slackCfg, "nvd", nvdCfg)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				poller.Stop()
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				// Stop the poller before the webhook server so no new
				// dispatches race the shutdown
				poller.Stop()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
