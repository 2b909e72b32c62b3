package settings

import "time"

// Mode strings persisted per site. selector.ParseMode maps them onto
// engine sensitivity levels.
const (
	ModeOff        = "off"
	ModeStandard   = "standard"
	ModeAggressive = "aggressive"
)

// Relax window bounds, in minutes.
const (
	RelaxMinMinutes = 1
	RelaxMaxMinutes = 120
)

// breakageAutoOff is the report count at which a site auto-downgrades to
// the lowest sensitivity.
const breakageAutoOff = 2

// SiteSettings is the persisted per-site bundle. The engine core reads it
// once at page start and never blocks on it afterwards.
type SiteSettings struct {
	Site              string    `json:"site"`
	Mode              string    `json:"mode"`
	ClassificationOff bool      `json:"classification_off"`
	InterceptionOff   bool      `json:"interception_off"`
	BreakageCount     int       `json:"breakage_count"`
	RelaxUntil        time.Time `json:"relax_until,omitzero"`
	Note              string    `json:"note,omitempty"`
}

// Defaults returns the settings used for a site with no stored override.
func Defaults(site string) SiteSettings {
	return SiteSettings{Site: site, Mode: ModeStandard}
}

// EffectiveMode resolves the mode at a point in time: a live relax window
// temporarily yields the lowest sensitivity, after which normal filtering
// resumes on its own.
func (s SiteSettings) EffectiveMode(now time.Time) string {
	if !s.RelaxUntil.IsZero() && now.Before(s.RelaxUntil) {
		return ModeOff
	}
	return s.Mode
}

// Bundle is the export/import envelope for the full settings set.
type Bundle struct {
	Version    int            `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Sites      []SiteSettings `json:"sites"`
}
