// Package registry owns news sources and their lifecycle: discovery inserts
// them, validation flips them between active and inactive. Sources are never
// deleted.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"news_aggregator/internal/domain"
	"news_aggregator/internal/validate"
)

type Registry struct {
	store     SourceStore
	prober    Prober
	directory Directory
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a registry. directory may be nil when no external directory is
// configured.
func New(store SourceStore, prober Prober, directory Directory, logger *slog.Logger) *Registry {
	return &Registry{
		store:     store,
		prober:    prober,
		directory: directory,
		logger:    logger.With("component", "registry"),
		now:       time.Now,
	}
}

// Discover registers a source. An invalid URL is rejected with
// domain.ErrValidation; an already registered URL is a no-op returning false.
// A name that sanitizes to nothing is replaced by the URL's host.
func (r *Registry) Discover(ctx context.Context, name, website, discoveredBy string, status domain.SourceStatus) (bool, error) {
	website = strings.TrimSpace(website)
	if !validate.IsValidURL(website) {
		return false, fmt.Errorf("%w: invalid source url %q", domain.ErrValidation, website)
	}

	name = strings.TrimSpace(validate.Sanitize(name))
	if name == "" {
		name = hostOf(website)
	}

	src := &domain.Source{
		Name:         name,
		Website:      website,
		Status:       status,
		DiscoveredBy: validate.Sanitize(discoveredBy),
		DiscoveredAt: r.now().UTC(),
	}

	inserted, err := r.store.InsertIfAbsent(ctx, src)
	if err != nil {
		return false, fmt.Errorf("%w: insert source: %w", domain.ErrPersistence, err)
	}

	if inserted {
		r.logger.Info("source added",
			"source_id", src.ID,
			"name", src.Name,
			"website", src.Website,
			"status", src.Status,
		)
	}
	return inserted, nil
}

// ListActive returns active sources, most reliable first.
func (r *Registry) ListActive(ctx context.Context) ([]domain.Source, error) {
	sources, err := r.store.ListByStatus(ctx, domain.SourceStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}
	return sources, nil
}

// DiscoverLocalDefaults seeds LocalSources as active. Re-running it adds
// nothing.
func (r *Registry) DiscoverLocalDefaults(ctx context.Context) (int, error) {
	r.logger.Info("starting local source discovery", "candidates", len(LocalSources))

	added := 0
	for _, s := range LocalSources {
		inserted, err := r.Discover(ctx, s.Name, s.URL, domain.DiscoveredByLocalList, domain.SourceStatusActive)
		if errors.Is(err, domain.ErrValidation) {
			r.logger.Warn("invalid local source skipped", "website", s.URL, "error", err)
			continue
		}
		if err != nil {
			return added, err
		}
		if inserted {
			added++
		}
	}

	r.logger.Info("local source discovery completed", "added", added)
	return added, nil
}

// DiscoverFromExternal imports sources from the external directory as
// pending and returns the names of the sources actually inserted. Transport
// and auth failures abort the call; malformed entries are skipped.
func (r *Registry) DiscoverFromExternal(ctx context.Context) ([]string, error) {
	if r.directory == nil {
		return nil, errors.New("external directory is not configured")
	}

	entries, err := r.directory.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch directory: %w", err)
	}

	r.logger.Info("fetched sources from directory",
		"directory", r.directory.Name(),
		"count", len(entries),
	)

	var added []string
	for _, e := range entries {
		inserted, err := r.Discover(ctx, e.Name, e.URL, r.directory.Name(), domain.SourceStatusPending)
		if errors.Is(err, domain.ErrValidation) {
			r.logger.Warn("malformed directory entry skipped",
				"name", e.Name,
				"url", e.URL,
				"error", err,
			)
			continue
		}
		if err != nil {
			return added, err
		}
		if inserted {
			added = append(added, validate.Sanitize(strings.TrimSpace(e.Name)))
		}
	}

	r.logger.Info("directory discovery completed", "added", len(added))
	return added, nil
}

// Validate re-probes one source, records the resulting status and always
// stamps last_validated.
func (r *Registry) Validate(ctx context.Context, src domain.Source) (domain.SourceStatus, error) {
	status := domain.SourceStatusActive
	if err := r.prober.Check(ctx, src.Website); err != nil {
		status = domain.SourceStatusInactive
		r.logger.Debug("source probe failed",
			"source_id", src.ID,
			"website", src.Website,
			"error", err,
		)
	}

	if err := r.store.UpdateValidation(ctx, src.ID, status, r.now().UTC()); err != nil {
		return status, fmt.Errorf("%w: update source %d: %w", domain.ErrPersistence, src.ID, err)
	}

	if status != src.Status {
		r.logger.Info("source status changed",
			"source_id", src.ID,
			"website", src.Website,
			"from", src.Status,
			"to", status,
		)
	}
	return status, nil
}

// ValidateAll validates every known source regardless of status. A failure
// to update one source is logged and counted; only a failure to list
// sources aborts the pass.
func (r *Registry) ValidateAll(ctx context.Context) (*domain.ValidationReport, error) {
	sources, err := r.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	r.logger.Info("starting source validation", "sources", len(sources))

	report := &domain.ValidationReport{}
	for _, src := range sources {
		status, err := r.Validate(ctx, src)
		if err != nil {
			report.Failed++
			r.logger.Error("source validation failed", "source_id", src.ID, "error", err)
			continue
		}

		report.Checked++
		if status == domain.SourceStatusActive {
			report.Active++
		} else {
			report.Inactive++
		}
	}

	r.logger.Info("source validation completed",
		"checked", report.Checked,
		"active", report.Active,
		"inactive", report.Inactive,
		"failed", report.Failed,
	)
	return report, nil
}

// SetReliabilityScore stores an externally computed score.
func (r *Registry) SetReliabilityScore(ctx context.Context, id int64, score int) error {
	if err := r.store.UpdateReliabilityScore(ctx, id, score); err != nil {
		return fmt.Errorf("update reliability score: %w", err)
	}
	return nil
}

func hostOf(website string) string {
	u, err := url.Parse(website)
	if err != nil {
		return website
	}
	return u.Hostname()
}
