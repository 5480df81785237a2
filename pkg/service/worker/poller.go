package worker

import (
	"context"
	"errors"
	"time"

	"github.com/jowin03/Slack-NVD-Integration/pkg/domain/model"
	"github.com/jowin03/Slack-NVD-Integration/pkg/service/nvd"
	"github.com/jowin03/Slack-NVD-Integration/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"
)

// Dispatcher consumes vulnerabilities discovered by the poller
type Dispatcher interface {
	HandleNewVulnerability(ctx context.Context, v *model.Vulnerability) (bool, error)
}

// FeedPoller periodically walks the NVD feed page by page and hands
// every vulnerability to the dispatcher. The dispatcher's dedup ledger
// makes repeated sightings harmless, so the poller never tracks which
// CVEs it has already seen.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - Overlapping passes are skipped rather than queued
type FeedPoller struct {
	feed       *nvd.Client
	dispatcher Dispatcher
	schedule   string
	pageSize   int
	pageDelay  time.Duration

	cron   *cron.Cron
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewFeedPoller creates a poller that runs a feed pass on the given
// cron schedule, fetching pageSize entries per request and sleeping
// pageDelay between page requests.
func NewFeedPoller(feed *nvd.Client, dispatcher Dispatcher, schedule string, pageSize int, pageDelay time.Duration) (*FeedPoller, error) {
	if feed == nil {
		return nil, goerr.New("feed client is required")
	}
	if dispatcher == nil {
		return nil, goerr.New("dispatcher is required")
	}
	if pageSize <= 0 {
		return nil, goerr.New("page size must be positive", goerr.V("page_size", pageSize))
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, goerr.Wrap(err, "invalid poll schedule", goerr.V("schedule", schedule))
	}

	return &FeedPoller{
		feed:       feed,
		dispatcher: dispatcher,
		schedule:   schedule,
		pageSize:   pageSize,
		pageDelay:  pageDelay,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}, nil
}

// Start runs an initial feed pass in the background and schedules
// recurring passes. Does not block server startup.
func (w *FeedPoller) Start(ctx context.Context) error {
	logging.Default().Info("feed poller starting",
		"schedule", w.schedule, "page_size", w.pageSize)

	w.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	if _, err := w.cron.AddFunc(w.schedule, func() {
		w.pass(ctx)
	}); err != nil {
		return goerr.Wrap(err, "failed to schedule feed poll", goerr.V("schedule", w.schedule))
	}

	go w.run(ctx)

	return nil
}

// Stop signals the poller to stop and waits for completion
func (w *FeedPoller) Stop() {
	logging.Default().Info("feed poller stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("feed poller stopped")
}

func (w *FeedPoller) run(ctx context.Context) {
	defer close(w.doneCh)

	// Initial pass picks up the current feed state right away
	w.pass(ctx)

	w.cron.Start()
	defer func() {
		<-w.cron.Stop().Done()
	}()

	select {
	case <-w.stopCh:
		logging.Default().Info("feed poller received stop signal")
	case <-ctx.Done():
		logging.Default().Info("feed poller context cancelled")
	}
}

// pass wraps RunOnce with log-and-continue error handling for the loop
func (w *FeedPoller) pass(ctx context.Context) {
	if err := w.RunOnce(ctx); err != nil {
		logging.From(ctx).Error("feed pass failed (will retry on next schedule)",
			"error", err.Error())
	}
}

// RunOnce performs a single feed pass: fetch pages until the feed
// reports an empty page, dispatching every entry. A feed failure aborts
// the pass; a single failed dispatch is logged and skipped, the ledger
// lets the next pass retry it.
func (w *FeedPoller) RunOnce(ctx context.Context) error {
	startTime := time.Now()
	logging.From(ctx).Info("starting feed pass")

	var fetched, dispatched int
	offset := 0
	for {
		vulns, pageLen, err := w.feed.FetchPage(ctx, offset, w.pageSize)
		if err != nil {
			return goerr.Wrap(err, "failed to fetch feed page",
				goerr.V("offset", offset), goerr.V("page_size", w.pageSize))
		}

		for _, v := range vulns {
			created, err := w.dispatcher.HandleNewVulnerability(ctx, v)
			if err != nil {
				logging.From(ctx).Error("failed to dispatch vulnerability, skipping",
					"vuln_id", v.ID, "error", err.Error())
				continue
			}
			if created {
				dispatched++
			}
		}
		fetched += pageLen

		if pageLen == 0 {
			break
		}
		// Advance by the raw page length: entries the feed client dropped
		// still occupy feed positions
		offset += pageLen

		if err := w.sleep(ctx, w.pageDelay); err != nil {
			return err
		}
	}

	logging.From(ctx).Info("feed pass completed",
		"fetched", fetched,
		"dispatched", dispatched,
		"duration", time.Since(startTime).String())
	return nil
}

// sleep waits for the inter-page delay unless the poller is stopped
func (w *FeedPoller) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-w.stopCh:
		return goerr.New("feed pass interrupted by shutdown")
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return goerr.Wrap(ctx.Err(), "feed pass cancelled")
		}
		return goerr.Wrap(ctx.Err(), "feed pass deadline exceeded")
	}
}
