package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"

	"news_aggregator/internal/domain"
	"news_aggregator/internal/scheduler"
)

type command struct {
	args    string
	help    string
	minArgs int
	needs   needs
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"run": {
		help:  "run the scheduler (default)",
		needs: needDB | needCache | needPublisher,
		run:   runScheduler,
	},
	"discover": {
		help:  "register the built-in local sources",
		needs: needDB,
		run: func(ctx context.Context, a *app, _ []string) error {
			added, err := a.registry.DiscoverLocalDefaults(ctx)
			if err != nil {
				return err
			}
			return printJSON(map[string]int{"added": added})
		},
	},
	"import-sources": {
		help:  "import pending sources from the external directory",
		needs: needDB,
		run: func(ctx context.Context, a *app, _ []string) error {
			names, err := a.registry.DiscoverFromExternal(ctx)
			if err != nil {
				return err
			}
			return printJSON(map[string][]string{"added": names})
		},
	},
	"add-source": {
		args:    "<name> <feed-url>",
		help:    "register a source manually as active",
		minArgs: 2,
		needs:   needDB,
		run: func(ctx context.Context, a *app, args []string) error {
			added, err := a.registry.Discover(ctx, args[0], args[1], domain.DiscoveredByManual, domain.SourceStatusActive)
			if err != nil {
				return err
			}
			return printJSON(map[string]bool{"added": added})
		},
	},
	"set-score": {
		args:    "<source-id> <score>",
		help:    "set a source's reliability score",
		minArgs: 2,
		needs:   needDB,
		run: func(ctx context.Context, a *app, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("parse source id: %w", err)
			}
			score, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("parse score: %w", err)
			}
			return a.registry.SetReliabilityScore(ctx, id, score)
		},
	},
	"validate": {
		help:  "re-check every source and update its status",
		needs: needDB,
		run: func(ctx context.Context, a *app, _ []string) error {
			report, err := a.registry.ValidateAll(ctx)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	},
	"aggregate": {
		help:  "fetch all active sources once",
		needs: needDB | needPublisher,
		run: func(ctx context.Context, a *app, _ []string) error {
			result, err := a.aggregator.Aggregate(ctx)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	},
	"articles": {
		args:    "<source-id> [limit]",
		help:    "list stored articles of a source",
		minArgs: 1,
		needs:   needDB,
		run:     listArticles,
	},
	"weather": {
		args:    "<location>",
		help:    "print current weather",
		minArgs: 1,
		needs:   needCache,
		run: func(ctx context.Context, a *app, args []string) error {
			payload, err := a.weather.Fetch(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(payload)
		},
	},
	"alerts": {
		args:  "[region]",
		help:  "print active emergency alerts",
		needs: needCache,
		run: func(ctx context.Context, a *app, args []string) error {
			payload, err := a.alerts.Fetch(ctx, regionArg(a, args))
			if err != nil {
				return err
			}
			return printJSON(payload)
		},
	},
	"clear-alerts": {
		args:  "[region]",
		help:  "drop cached alerts",
		needs: needCache,
		run: func(ctx context.Context, a *app, args []string) error {
			cleared, err := a.alerts.Clear(ctx, regionArg(a, args))
			if err != nil {
				return err
			}
			return printJSON(map[string]bool{"cleared": cleared})
		},
	},
}

func runScheduler(ctx context.Context, a *app, _ []string) error {
	cfg := a.cfg.Schedule

	if added, err := a.registry.DiscoverLocalDefaults(ctx); err != nil {
		a.logger.Warn("failed to seed local sources", "error", err)
	} else if added > 0 {
		a.logger.Info("seeded local sources", "added", added)
	}

	jobs := []scheduler.Job{
		{
			Name:     "aggregate",
			Interval: cfg.AggregateInterval,
			Timeout:  cfg.JobTimeout,
			Run: func(ctx context.Context) error {
				_, err := a.aggregator.Aggregate(ctx)
				return err
			},
		},
		{
			Name:     "validate",
			Interval: cfg.ValidateInterval,
			Timeout:  cfg.JobTimeout,
			Run: func(ctx context.Context) error {
				_, err := a.registry.ValidateAll(ctx)
				return err
			},
		},
		{
			Name:     "weather",
			Interval: cfg.WeatherInterval,
			Timeout:  cfg.JobTimeout,
			Run: func(ctx context.Context) error {
				_, err := a.weather.Fetch(ctx, cfg.WeatherLocation)
				return err
			},
		},
		{
			Name:     "alerts",
			Interval: cfg.AlertsInterval,
			Timeout:  cfg.JobTimeout,
			Run: func(ctx context.Context) error {
				_, err := a.alerts.Fetch(ctx, a.alerts.Region())
				return err
			},
		},
		{
			Name:     "heartbeat",
			Interval: cfg.HeartbeatInterval,
			Timeout:  cfg.HeartbeatInterval,
			Run:      a.heartbeat,
		},
	}

	if a.purger != nil {
		jobs = append(jobs, scheduler.Job{
			Name:     "cache-purge",
			Interval: cfg.PurgeInterval,
			Timeout:  cfg.JobTimeout,
			Run: func(ctx context.Context) error {
				n, err := a.purger.Purge(ctx)
				if err != nil {
					return err
				}
				a.logger.Debug("purged expired cache entries", "count", n)
				return nil
			},
		})
	}

	a.logger.Info("starting news aggregator",
		"aggregate_interval", cfg.AggregateInterval,
		"workers", a.cfg.Feeds.Workers,
		"publisher", a.rabbitMQ != nil,
	)

	return scheduler.NewScheduler(a.logger, jobs...).Start(ctx)
}

func (a *app) heartbeat(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if err := a.cache.Ping(ctx); err != nil {
		return err
	}
	a.logger.Debug("heartbeat")
	return nil
}

func listArticles(ctx context.Context, a *app, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("parse source id: %w", err)
	}
	limit := 20
	if len(args) > 1 {
		if limit, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("parse limit: %w", err)
		}
	}

	state, err := a.fetchState.Get(ctx, id)
	if err != nil {
		return err
	}
	articles, err := a.articles.ListBySource(ctx, id, limit)
	if err != nil {
		return err
	}

	return printJSON(struct {
		FetchState *domain.FetchState `json:"fetch_state"`
		Articles   []domain.Article   `json:"articles"`
	}{state, articles})
}

func regionArg(a *app, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return a.alerts.Region()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "usage: aggregator [-config path] <command> [args]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd := commands[name]
		fmt.Fprintf(out, "  %-15s %-22s %s\n", name, cmd.args, cmd.help)
	}
	fmt.Fprintln(out)
	flag.PrintDefaults()
}
