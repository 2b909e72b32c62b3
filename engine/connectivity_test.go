package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mugenyume/mugenblock/connectivity"
	"github.com/mugenyume/mugenblock/dom"
	"github.com/mugenyume/mugenblock/selector"
)

func TestConn_Stats(t *testing.T) {
	e, doc := newTestEngine(t, selector.ModeStandard)
	router := connectivity.New()
	e.RegisterConnectivity(router)

	ad := dom.NewNode("div", "class", "ad-banner")
	doc.AppendChild(doc.Body, ad)
	e.Hide(ad, false)

	resp, err := router.Call(context.Background(), "engine_stats", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var st Stats
	if err := json.Unmarshal(resp, &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.Site != "example.com" || st.Hides != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestConn_Sweep(t *testing.T) {
	e, doc := newTestEngine(t, selector.ModeStandard)
	router := connectivity.New()
	e.RegisterConnectivity(router)

	doc.AppendChild(doc.Body, dom.NewNode("div", "class", "ad-banner"))
	doc.AppendChild(doc.Body, dom.NewNode("div", "class", "sponsored-post"))

	resp, err := router.Call(context.Background(), "engine_sweep", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var result struct {
		Hidden int `json:"hidden"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Hidden != 2 {
		t.Errorf("hidden = %d, want 2", result.Hidden)
	}
}
