package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// Service is the settings API. Writes hit an in-memory buffer first and
// reach SQLite on a debounce timer, so toggling from the UI never stalls
// on disk.
type Service struct {
	store  *Store
	writer *writer
	logger *slog.Logger
	now    func() time.Time

	notePolicy *bluemonday.Policy
}

// NewService wraps an open store.
func NewService(store *Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		writer:     newWriter(store),
		logger:     logger,
		now:        time.Now,
		notePolicy: bluemonday.StrictPolicy(),
	}
}

// Close flushes pending writes. The store itself is closed by the caller.
func (s *Service) Close() {
	s.writer.Close()
}

// Get resolves a site's settings: buffered write if one is pending, stored
// row otherwise, defaults when nothing is stored.
func (s *Service) Get(ctx context.Context, site string) (SiteSettings, error) {
	if site == "" {
		return SiteSettings{}, errors.New("settings: empty site")
	}
	if set, ok := s.writer.peek(site); ok {
		return set, nil
	}
	set, err := s.store.getSite(ctx, site)
	if errors.Is(err, sql.ErrNoRows) {
		return Defaults(site), nil
	}
	if err != nil {
		return SiteSettings{}, fmt.Errorf("settings: get %s: %w", site, err)
	}
	return set, nil
}

// SetMode stores the filtering mode for a site.
func (s *Service) SetMode(ctx context.Context, site, mode string) (SiteSettings, error) {
	switch mode {
	case ModeOff, ModeStandard, ModeAggressive:
	default:
		return SiteSettings{}, fmt.Errorf("settings: unknown mode %q", mode)
	}
	set, err := s.Get(ctx, site)
	if err != nil {
		return SiteSettings{}, err
	}
	set.Mode = mode
	// An explicit mode choice supersedes a running relax window and any
	// breakage history.
	set.RelaxUntil = time.Time{}
	set.BreakageCount = 0
	s.writer.put(set)
	s.logger.Info("settings: mode set", "site", site, "mode", mode)
	return set, nil
}

// Toggle names accepted by SetToggle.
const (
	ToggleClassification = "classification"
	ToggleInterception   = "interception"
)

// SetToggle flips one of the per-site feature switches.
func (s *Service) SetToggle(ctx context.Context, site, name string, off bool) (SiteSettings, error) {
	set, err := s.Get(ctx, site)
	if err != nil {
		return SiteSettings{}, err
	}
	switch name {
	case ToggleClassification:
		set.ClassificationOff = off
	case ToggleInterception:
		set.InterceptionOff = off
	default:
		return SiteSettings{}, fmt.Errorf("settings: unknown toggle %q", name)
	}
	s.writer.put(set)
	s.logger.Info("settings: toggle set", "site", site, "toggle", name, "off", off)
	return set, nil
}

// Relax disables filtering for a site for the given number of minutes,
// clamped to [RelaxMinMinutes, RelaxMaxMinutes]. Filtering resumes on its
// own when the window lapses.
func (s *Service) Relax(ctx context.Context, site string, minutes int) (SiteSettings, error) {
	if minutes < RelaxMinMinutes {
		minutes = RelaxMinMinutes
	}
	if minutes > RelaxMaxMinutes {
		minutes = RelaxMaxMinutes
	}
	set, err := s.Get(ctx, site)
	if err != nil {
		return SiteSettings{}, err
	}
	set.RelaxUntil = s.now().Add(time.Duration(minutes) * time.Minute).UTC()
	s.writer.put(set)
	s.logger.Info("settings: relax", "site", site, "minutes", minutes,
		"until", set.RelaxUntil)
	return set, nil
}

// ReportBreakage records a user breakage report. Reaching the threshold
// turns filtering off for the site until the user re-enables it.
func (s *Service) ReportBreakage(ctx context.Context, site string) (SiteSettings, error) {
	set, err := s.Get(ctx, site)
	if err != nil {
		return SiteSettings{}, err
	}
	set.BreakageCount++
	if set.BreakageCount >= breakageAutoOff && set.Mode != ModeOff {
		set.Mode = ModeOff
		s.logger.Warn("settings: breakage threshold, filtering off",
			"site", site, "count", set.BreakageCount)
	}
	s.writer.put(set)
	return set, nil
}

// ClearOverrides deletes every stored site override.
func (s *Service) ClearOverrides(ctx context.Context) error {
	s.writer.dropAll()
	if err := s.store.clearSites(ctx); err != nil {
		return err
	}
	s.logger.Info("settings: overrides cleared")
	return nil
}

// Export serializes all stored overrides into a versioned bundle.
func (s *Service) Export(ctx context.Context) (Bundle, error) {
	s.writer.Flush(ctx)
	sites, err := s.store.listSites(ctx)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{
		Version:    SchemaVersion,
		ExportedAt: s.now().UTC(),
		Sites:      sites,
	}, nil
}

// Import replaces the stored overrides with the bundle's contents.
// Free-text notes pass through an HTML-stripping sanitizer since bundles
// arrive from outside the process.
func (s *Service) Import(ctx context.Context, raw []byte) (int, error) {
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return 0, fmt.Errorf("settings: decode bundle: %w", err)
	}
	if b.Version > SchemaVersion {
		return 0, fmt.Errorf("settings: bundle version %d newer than %d",
			b.Version, SchemaVersion)
	}
	for i := range b.Sites {
		set := &b.Sites[i]
		if set.Site == "" {
			return 0, fmt.Errorf("settings: bundle entry %d has empty site", i)
		}
		switch set.Mode {
		case ModeOff, ModeStandard, ModeAggressive:
		case "":
			set.Mode = ModeStandard
		default:
			return 0, fmt.Errorf("settings: bundle entry %q has unknown mode %q",
				set.Site, set.Mode)
		}
		set.Note = s.notePolicy.Sanitize(set.Note)
	}

	s.writer.dropAll()
	if err := s.store.clearSites(ctx); err != nil {
		return 0, err
	}
	for _, set := range b.Sites {
		if err := s.store.upsertSite(ctx, set); err != nil {
			return 0, err
		}
	}
	s.logger.Info("settings: bundle imported", "sites", len(b.Sites))
	return len(b.Sites), nil
}
