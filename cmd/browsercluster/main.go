// Command browsercluster demonstrates wiring a Supervisor end to end: it
// builds a chromedp-backed browser pool, registers the bundled job kinds,
// submits a seed exploration job, optionally resubmits it on a schedule,
// and waits for the cluster to go idle before shutting down.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/germesdev/arachni/internal/browser"
	"github.com/germesdev/arachni/internal/cluster"
	"github.com/germesdev/arachni/internal/cluster/jobs"
)

func main() {
	var (
		seedURL      = flag.String("url", "", "root resource to explore")
		poolSize     = flag.Int("pool-size", 6, "number of browser workers")
		timeToLive   = flag.Int("ttl", 10, "jobs served before a worker recycles its browser")
		maxDepth     = flag.Int("max-depth", 3, "link-following depth for the seed exploration job")
		schedule     = flag.String("schedule", "", "optional cron expression to resubmit the seed job")
		probeBrowser = flag.Bool("with-browser", false, "also queue a single-shot browser-provider job whose page snapshot is reported to a callback")
		taintElement = flag.String("taint-element", "", "element selector to drive for a taint trace probe")
		taintEvent   = flag.String("taint-event", "input", "DOM event fired for the taint trace probe")
		taintMarker  = flag.String("taint-marker", "", "value injected as the taint marker")
	)
	flag.Parse()

	logger := arbor.NewLogger()

	if *seedURL == "" {
		logger.Error().Msg("missing required -url flag")
		os.Exit(2)
	}

	limiter := browser.NewHostLimiter(2, 4)
	factory := func(jsToken string) (cluster.Browser, error) {
		opts := browser.DefaultOptions()
		opts.Limiter = limiter
		return browser.New(jsToken, opts)
	}

	sup, err := cluster.NewSupervisor(factory,
		cluster.WithPoolSize(*poolSize),
		cluster.WithTimeToLive(*timeToLive),
		cluster.WithLogger(logger),
	)
	if err != nil {
		logger.Error().Str("error", err.Error()).Msg("failed to start cluster")
		os.Exit(1)
	}

	jobs.Register(sup)

	logResult := func(res cluster.Result) {
		logger.Info().
			Str("job_id", res.Job.ID()).
			Str("kind", res.Job.Kind()).
			Msg("job result received")
	}

	submit := func() {
		err := jobs.Explore(sup, *seedURL, jobs.ExploreOptions{MaxDepth: *maxDepth}, logResult)
		if err != nil {
			logger.Warn().Str("error", err.Error()).Msg("failed to submit seed exploration job")
		}
	}

	submit()

	if *probeBrowser {
		if err := jobs.WithBrowser(sup, logResult); err != nil {
			logger.Warn().Str("error", err.Error()).Msg("failed to submit with-browser probe")
		}
	}

	if *taintElement != "" && *taintMarker != "" {
		opts := jobs.TaintOptions{Element: *taintElement, Event: *taintEvent, Marker: *taintMarker}
		if err := jobs.TraceTaint(sup, *seedURL, opts, logResult); err != nil {
			logger.Warn().Str("error", err.Error()).Msg("failed to submit taint trace probe")
		}
	}

	var scheduler *cron.Cron
	if *schedule != "" {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(*schedule, submit); err != nil {
			logger.Error().Str("error", err.Error()).Msg("invalid -schedule expression")
			os.Exit(2)
		}
		scheduler.Start()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	waitErr := make(chan error, 1)
	go func() { waitErr <- sup.Wait(ctx) }()

	select {
	case err := <-waitErr:
		if err != nil {
			logger.Warn().Str("error", err.Error()).Msg("wait ended early")
		} else {
			logger.Info().Msg("cluster went idle")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	if scheduler != nil {
		stopCtx := scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
		}
	}

	if err := sup.Shutdown(); err != nil {
		logger.Warn().Str("error", err.Error()).Msg("shutdown returned error")
	}

	fmt.Fprintln(os.Stdout, "browsercluster: sitemap entries:", len(sup.Sitemap()))
}
