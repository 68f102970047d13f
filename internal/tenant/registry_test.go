package tenant

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestRegistryResolve(t *testing.T) {
	transfit := NewContext("transfit", "Transfit", "/static/transfit.svg", nil, "k1")
	proimp := NewContext("pro-imp", "Pro Implant", "/static/pro_implant.svg", nil, "k2")
	r := NewStatic(transfit, transfit, proimp)

	tc, ok := r.Resolve("transfit")
	if !ok {
		t.Fatal("transfit not resolved")
	}
	if tc.DisplayName != "Transfit" || tc.Key() != "k1" {
		t.Errorf("resolved wrong context: %s", tc.ID)
	}

	if _, ok := r.Resolve("nope"); ok {
		t.Error("unknown tenant resolved")
	}
}

func TestRegistryDefault(t *testing.T) {
	transfit := NewContext("transfit", "Transfit", "", nil, "k1")
	r := NewStatic(transfit, transfit)

	if got := r.Default(); got != transfit {
		t.Errorf("default = %v", got)
	}
}

// Each tenant keeps its own key even when tenants share a pool.
func TestContextKeyIsolation(t *testing.T) {
	transfit := NewContext("transfit", "Transfit", "", nil, "k1")
	proimp := NewContext("pro-imp", "Pro Implant", "", nil, "k2")

	if transfit.Key() == proimp.Key() {
		t.Error("tenant keys are shared")
	}
}

func TestContextLogValueRedactsKey(t *testing.T) {
	tc := NewContext("transfit", "Transfit", "/static/transfit.svg", nil, "very-secret-key")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	log.Info("resolved", "tenant", tc)

	out := buf.String()
	if strings.Contains(out, "very-secret-key") {
		t.Errorf("log line contains key material: %s", out)
	}
	if !strings.Contains(out, `"id":"transfit"`) {
		t.Errorf("log line lost tenant id: %s", out)
	}
}
