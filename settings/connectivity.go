package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mugenyume/mugenblock/connectivity"
)

// RegisterConnectivity registers settings services in the connectivity router.
// Services: settings_get, settings_set_mode, settings_toggle, settings_relax,
// settings_breakage, settings_export, settings_import, settings_clear.
func (s *Service) RegisterConnectivity(router *connectivity.Router) {
	router.RegisterLocal("settings_get", s.handleGet)
	router.RegisterLocal("settings_set_mode", s.handleSetMode)
	router.RegisterLocal("settings_toggle", s.handleToggle)
	router.RegisterLocal("settings_relax", s.handleRelax)
	router.RegisterLocal("settings_breakage", s.handleBreakage)
	router.RegisterLocal("settings_export", s.handleExport)
	router.RegisterLocal("settings_import", s.handleImport)
	router.RegisterLocal("settings_clear", s.handleClear)
}

type siteRequest struct {
	Site string `json:"site"`
}

func decodeSite(payload []byte) (string, error) {
	var req siteRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return "", fmt.Errorf("settings: decode request: %w", err)
	}
	if req.Site == "" {
		return "", fmt.Errorf("settings: missing site")
	}
	return req.Site, nil
}

// handleGet resolves one site's settings.
// Payload: {"site": "example.com"}.
func (s *Service) handleGet(ctx context.Context, payload []byte) ([]byte, error) {
	site, err := decodeSite(payload)
	if err != nil {
		return nil, err
	}
	set, err := s.Get(ctx, site)
	if err != nil {
		return nil, err
	}
	return json.Marshal(set)
}

// handleSetMode stores a site's filtering mode.
// Payload: {"site": "...", "mode": "off|standard|aggressive"}.
func (s *Service) handleSetMode(ctx context.Context, payload []byte) ([]byte, error) {
	var req struct {
		Site string `json:"site"`
		Mode string `json:"mode"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("settings: decode request: %w", err)
	}
	set, err := s.SetMode(ctx, req.Site, req.Mode)
	if err != nil {
		return nil, err
	}
	return json.Marshal(set)
}

// handleToggle flips a per-site feature switch.
// Payload: {"site": "...", "toggle": "classification|interception", "off": bool}.
func (s *Service) handleToggle(ctx context.Context, payload []byte) ([]byte, error) {
	var req struct {
		Site   string `json:"site"`
		Toggle string `json:"toggle"`
		Off    bool   `json:"off"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("settings: decode request: %w", err)
	}
	set, err := s.SetToggle(ctx, req.Site, req.Toggle, req.Off)
	if err != nil {
		return nil, err
	}
	return json.Marshal(set)
}

// handleRelax opens a timed relax window on a site.
// Payload: {"site": "...", "minutes": N}.
func (s *Service) handleRelax(ctx context.Context, payload []byte) ([]byte, error) {
	var req struct {
		Site    string `json:"site"`
		Minutes int    `json:"minutes"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("settings: decode request: %w", err)
	}
	set, err := s.Relax(ctx, req.Site, req.Minutes)
	if err != nil {
		return nil, err
	}
	return json.Marshal(set)
}

// handleBreakage records one breakage report for a site.
// Payload: {"site": "..."}.
func (s *Service) handleBreakage(ctx context.Context, payload []byte) ([]byte, error) {
	site, err := decodeSite(payload)
	if err != nil {
		return nil, err
	}
	set, err := s.ReportBreakage(ctx, site)
	if err != nil {
		return nil, err
	}
	return json.Marshal(set)
}

// handleExport returns the full settings bundle.
func (s *Service) handleExport(ctx context.Context, payload []byte) ([]byte, error) {
	b, err := s.Export(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(b)
}

// handleImport replaces stored overrides with the bundle in the payload.
// Payload: the bundle JSON itself. Response: {"imported": N}.
func (s *Service) handleImport(ctx context.Context, payload []byte) ([]byte, error) {
	n, err := s.Import(ctx, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]int{"imported": n})
}

// handleClear deletes every stored override.
func (s *Service) handleClear(ctx context.Context, payload []byte) ([]byte, error) {
	if err := s.ClearOverrides(ctx); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]bool{"cleared": true})
}
