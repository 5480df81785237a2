package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"

	"github.com/jowin03/Slack-NVD-Integration/pkg/cli/config"
	"github.com/jowin03/Slack-NVD-Integration/pkg/repository/memory"
	"github.com/jowin03/Slack-NVD-Integration/pkg/service/notifier"
	"github.com/jowin03/Slack-NVD-Integration/pkg/service/worker"
	"github.com/jowin03/Slack-NVD-Integration/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// cmdPoll runs a single feed pass and exits. Useful for smoke-testing
// the feed and Slack credentials without starting the server.
func cmdPoll() *cli.Command {
	var slackCfg config.Slack
	var nvdCfg config.NVD

	var flags []cli.Flag
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, nvdCfg.Flags()...)

	return &cli.Command{
		Name:  "poll",
		Usage: "Run a single feed pass and exit",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo := memory.New()
			defer repo.Close() //nolint:errcheck // in-memory close never fails

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

			return poller.RunOnce(ctx)
		},
	}
}
