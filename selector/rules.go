package selector

// Marker attributes written by known ad-delivery frameworks. An exact match
// on any of these is high-confidence: the urgent path escalates immediately.
var MarkerAttrs = []string{
	"data-ad-client",
	"data-ad-slot",
	"data-ad-format",
	"data-ad-targeting",
	"data-adsbygoogle-status",
	"data-google-query-id",
}

// AdSlotClassMarkers are substrings of class tokens strongly associated with
// ad slots.
var AdSlotClassMarkers = []string{
	"adsbygoogle",
	"ad-slot",
	"adslot",
	"adunit",
	"gpt-ad",
}

// AdNetworkSubstrings match frame sources and navigation targets served by
// known ad networks.
var AdNetworkSubstrings = []string{
	"doubleclick.net",
	"googlesyndication.com",
	"adservice.google",
	"adnxs.com",
	"exoclick.com",
	"juicyads.com",
	"popads.net",
	"propellerads.com",
	"trafficjunky",
	"taboola.com",
	"outbrain.com",
}

// SuspiciousNavKeywords flag navigation targets that smell like forced
// redirects even when the host is unknown.
var SuspiciousNavKeywords = []string{
	"popunder",
	"clickunder",
	"sweepstake",
	"luckyspin",
	"dating-offer",
}

// MarkupMarkerSubstrings flag bulk markup fragments carrying ad payloads.
var MarkupMarkerSubstrings = []string{
	"adsbygoogle",
	"doubleclick",
	"ad-slot",
	"data-ad-client",
	"sponsored",
}

// MarkupBlockThreshold is the minimum fragment length for the markup
// interceptor to consider blocking. Short fragments always pass.
const MarkupBlockThreshold = 200

// CloseIconViewBoxes are the declared view-boxes of the close-button icons
// ad frameworks stamp onto dismissable overlays.
var CloseIconViewBoxes = []string{
	"0 0 14 14",
	"0 0 16 16",
	"0 0 18 18",
}

// playerUITags are semantic tags never hidden by geometry sweeps.
var playerUITags = map[string]bool{
	"video": true,
	"audio": true,
	"track": true,
}

// playerUIPatterns are class/id substrings of legitimate player chrome.
var playerUIPatterns = []string{
	"vjs-",
	"video-js",
	"jw-",
	"ytp-",
	"plyr",
	"mejs",
	"player-control",
	"media-control",
}

// defaultFastRules are structural selectors evaluable without style
// computation.
var defaultFastRules = []string{
	"[data-ad-client]",
	"[data-ad-slot]",
	"[data-adsbygoogle-status]",
	"[data-google-query-id]",
	".adsbygoogle",
	".ad-banner",
	"#ad-banner",
	".sponsored-post",
	`iframe[src*="doubleclick.net"]`,
	`iframe[src*="googlesyndication.com"]`,
	`iframe[src*="adnxs.com"]`,
	`iframe[src*="exoclick.com"]`,
}

// genericTokenRules are the short ad-like token rules. Cheap and effective,
// but they misfire on domains whose own naming contains the token, so Build
// omits them there.
var genericTokenRules = []string{
	`[class*="advert"]`,
	`[id*="advert"]`,
	`[class*="ad-wrapper"]`,
	`[id*="ad-container"]`,
}

// genericExcludedDomains are sites known to false-positive on the generic
// token rules.
var genericExcludedDomains = []string{
	"adobe.com",
	"academia.edu",
	"wikipedia.org",
	"github.com",
}

// defaultSlowRules apply only in aggressive mode; each requires a computed
// position check on top of the structural match.
var defaultSlowRules = []SlowRule{
	{Selector: `div[class*="overlay"]`, Positions: []string{"fixed"}, MinZ: 100},
	{Selector: `div[class*="interstitial"]`, Positions: []string{"fixed", "absolute"}, MinZ: 50},
	{Selector: `div[id*="popup"]`, Positions: []string{"fixed"}, MinZ: 100},
}
