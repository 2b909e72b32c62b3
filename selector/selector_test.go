package selector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mugenyume/mugenblock/dom"
)

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
	}{
		{"off", ModeOff},
		{"aggressive", ModeAggressive},
		{"standard", ModeStandard},
		{"", ModeStandard},
		{"AGGRESSIVE", ModeAggressive},
		{"garbage", ModeStandard},
	}
	for _, tc := range cases {
		if got := ParseMode(tc.in); got != tc.want {
			t.Errorf("ParseMode(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuild_OffHasNoRules(t *testing.T) {
	cfg := Build("example.com", ModeOff, nil)
	if len(cfg.FastRules) != 0 || len(cfg.SlowRules) != 0 {
		t.Errorf("off mode built rules: fast=%d slow=%d",
			len(cfg.FastRules), len(cfg.SlowRules))
	}
	if cfg.RuleText() != "" {
		t.Error("off mode has rule text")
	}
}

func TestBuild_StandardVsAggressive(t *testing.T) {
	std := Build("example.com", ModeStandard, nil)
	agg := Build("example.com", ModeAggressive, nil)

	if len(std.FastRules) == 0 {
		t.Fatal("standard has no fast rules")
	}
	if len(std.SlowRules) != 0 {
		t.Error("standard built slow rules")
	}
	if len(agg.SlowRules) == 0 {
		t.Error("aggressive has no slow rules")
	}
}

func TestBuild_GenericExclusion(t *testing.T) {
	normal := Build("news.example.com", ModeStandard, nil)
	excluded := Build("github.com", ModeStandard, nil)
	subdomain := Build("gist.github.com", ModeStandard, nil)

	if len(excluded.FastRules) >= len(normal.FastRules) {
		t.Errorf("excluded domain should carry fewer rules: %d vs %d",
			len(excluded.FastRules), len(normal.FastRules))
	}
	if len(subdomain.FastRules) != len(excluded.FastRules) {
		t.Error("subdomain of excluded domain not excluded")
	}
}

func TestBuild_StyleHashChangesWithRules(t *testing.T) {
	a := Build("example.com", ModeStandard, nil)
	b := Build("example.com", ModeStandard, &RuleFile{FastRules: []string{".sponsor-x"}})
	if a.StyleHash() == b.StyleHash() {
		t.Error("hash identical despite different rules")
	}
	c := Build("example.com", ModeStandard, nil)
	if a.StyleHash() != c.StyleHash() {
		t.Error("hash differs for identical rules")
	}
}

func TestFastMatch(t *testing.T) {
	cfg := Build("example.com", ModeStandard, nil)

	ad := dom.NewNode("ins", "class", "adsbygoogle")
	if !cfg.FastMatch(ad) {
		t.Error("adsbygoogle ins not matched")
	}
	plain := dom.NewNode("div", "class", "article-body")
	if cfg.FastMatch(plain) {
		t.Error("plain content matched")
	}
}

func TestSlowRule_StyleConstraints(t *testing.T) {
	r := SlowRule{
		Selector:  `div[class*="overlay"]`,
		Positions: []string{"fixed"},
		MinZ:      100,
		parsed:    dom.ParseSelector(`div[class*="overlay"]`),
	}

	n := dom.NewNode("div", "class", "promo-overlay")
	if r.Matches(n) {
		t.Error("matched without computed style")
	}
	n.SetComputed("fixed", 500)
	if !r.Matches(n) {
		t.Error("fixed z=500 overlay not matched")
	}
	n.SetComputed("static", 500)
	if r.Matches(n) {
		t.Error("static position matched")
	}
	n.SetComputed("fixed", 50)
	if r.Matches(n) {
		t.Error("z below threshold matched")
	}
}

func TestInstallStyle_HealsStrippedArtifact(t *testing.T) {
	cfg := Build("example.com", ModeStandard, nil)
	doc := dom.NewDocument("https://example.com")

	if !cfg.InstallStyle(doc) {
		t.Fatal("first install did nothing")
	}
	style := doc.ByID(StyleID)
	if style == nil {
		t.Fatal("style artifact missing after install")
	}
	if style.Text != cfg.RuleText() {
		t.Error("artifact text does not match rule text")
	}

	// Matching artifact is left alone.
	if cfg.InstallStyle(doc) {
		t.Error("reinstall rebuilt a matching artifact")
	}

	// Host strips it; install puts it back.
	if err := doc.RemoveNode(style); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !cfg.InstallStyle(doc) {
		t.Error("stripped artifact not rebuilt")
	}

	// Stale hash is replaced.
	doc.SetAttribute(doc.ByID(StyleID), "data-rule-hash", "stale")
	if !cfg.InstallStyle(doc) {
		t.Error("stale artifact not replaced")
	}
}

func TestFastSweep_HidesMatches(t *testing.T) {
	cfg := Build("example.com", ModeStandard, nil)
	doc := dom.NewDocument("https://example.com")
	ad := dom.NewNode("ins", "class", "adsbygoogle")
	doc.AppendChild(doc.Body, ad)
	doc.AppendChild(doc.Body, dom.NewNode("div", "class", "content"))

	var hidden []*dom.Node
	n := cfg.FastSweep(doc, func(n *dom.Node) { hidden = append(hidden, n) })
	if n != 1 || len(hidden) != 1 || hidden[0] != ad {
		t.Errorf("sweep: n=%d hidden=%v", n, hidden)
	}
}

func TestMarkerHelpers(t *testing.T) {
	n := dom.NewNode("ins", "data-ad-client", "ca-pub-123")
	if !HasMarkerAttr(n) {
		t.Error("marker attr not recognised")
	}
	if !IsMarkerAttrName("DATA-AD-CLIENT") {
		t.Error("marker name check not case-insensitive")
	}
	if IsMarkerAttrName("data-theme") {
		t.Error("non-marker name recognised")
	}

	slot := dom.NewNode("div", "class", "sidebar gpt-ad-rect")
	if !HasAdSlotClass(slot) {
		t.Error("ad slot class not recognised")
	}

	if !MatchesAdNetwork("https://securepubads.doubleclick.net/gampad") {
		t.Error("doubleclick URL not recognised")
	}
	if MatchesAdNetwork("https://example.com/article") {
		t.Error("plain URL recognised as ad network")
	}
}

func TestIsPlayerUI(t *testing.T) {
	if !IsPlayerUI(dom.NewNode("video")) {
		t.Error("video element not player UI")
	}
	if !IsPlayerUI(dom.NewNode("div", "class", "vjs-control-bar")) {
		t.Error("video.js control bar not player UI")
	}
	if IsPlayerUI(dom.NewNode("div", "class", "ad-banner")) {
		t.Error("ad banner mistaken for player UI")
	}
}

func TestLoadRuleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data := []byte(`
fast_rules:
  - '[data-sponsor]'
slow_rules:
  - selector: 'div[class*="takeover"]'
    positions: [fixed]
    min_z: 200
exclude_generic_on:
  - example.org
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	rf, err := LoadRuleFile(path)
	if err != nil {
		t.Fatalf("LoadRuleFile: %v", err)
	}
	if len(rf.FastRules) != 1 || rf.FastRules[0] != "[data-sponsor]" {
		t.Errorf("fast rules: %v", rf.FastRules)
	}
	if len(rf.SlowRules) != 1 || rf.SlowRules[0].MinZ != 200 {
		t.Errorf("slow rules: %+v", rf.SlowRules)
	}
	if len(rf.ExcludeGenericOn) != 1 {
		t.Errorf("exclusions: %v", rf.ExcludeGenericOn)
	}

	cfg := Build("shop.example.net", ModeAggressive, rf)
	if !cfg.FastMatch(dom.NewNode("div", "data-sponsor", "1")) {
		t.Error("extra fast rule not merged")
	}
}
