package scenario

import (
	"strings"
	"testing"
)

func TestBuildCatalogDefaults(t *testing.T) {
	specs, err := BuildCatalog("20260823_120000", nil)
	if err != nil {
		t.Fatalf("BuildCatalog: %v", err)
	}
	if len(specs) != 6 {
		t.Fatalf("expected 6 built-in scenarios, got %d", len(specs))
	}
	if specs[0].Name != "baseline" || specs[0].OutputPrefix != "20260823_120000_baseline" {
		t.Errorf("unexpected first spec: %+v", specs[0])
	}
	seen := map[string]bool{}
	for _, s := range specs {
		if seen[s.OutputPrefix] {
			t.Errorf("duplicate prefix %q", s.OutputPrefix)
		}
		seen[s.OutputPrefix] = true
	}
}

func TestBuildCatalogSelection(t *testing.T) {
	specs, err := BuildCatalog("ts", []string{"loss_2", "custom:delay 5ms"})
	if err != nil {
		t.Fatalf("BuildCatalog: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
	if specs[1].Name != "custom" || !strings.HasPrefix(specs[1].OutputPrefix, "ts_custom") {
		t.Errorf("unexpected custom spec: %+v", specs[1])
	}
}

func TestBuildCatalogRejectsUnknown(t *testing.T) {
	if _, err := BuildCatalog("ts", []string{"loss_42"}); err == nil {
		t.Fatal("expected error for unknown rule")
	}
}

func TestBuildCatalogRejectsDuplicatePrefix(t *testing.T) {
	if _, err := BuildCatalog("ts", []string{"loss_2", "loss_2"}); err == nil {
		t.Fatal("expected error for duplicate prefix")
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"loss_2":              "loss_2",
		"custom:delay 5ms":    "custom_delay_5ms",
		"Custom:Loss 1% x":    "custom_loss_1__x",
		"  spaced  ":          "spaced",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStateString(t *testing.T) {
	if Idle.String() != "idle" || Done.String() != "done" {
		t.Errorf("unexpected state names: %s %s", Idle, Done)
	}
	if ImpairmentCleared.String() != "impairment-cleared" {
		t.Errorf("unexpected: %s", ImpairmentCleared)
	}
}
