package preferences_test

import (
	"errors"
	"testing"

	"github.com/goliatone/go-accountstate/layering"
	"github.com/goliatone/go-accountstate/preferences"
)

func TestTraceFieldReportsEachLayer(t *testing.T) {
	defaults, user := loadDocuments(t)

	trace, err := preferences.TraceField(preferences.CategoryGeneral, "theme", &defaults, &user)
	if err != nil {
		t.Fatalf("TraceField: %v", err)
	}
	if len(trace.Layers) != 3 {
		t.Fatalf("expected 3 layers, got %d", len(trace.Layers))
	}
	levels := []string{"user", "default", "baseline"}
	found := []bool{false, true, true}
	for i, p := range trace.Layers {
		if p.Level != levels[i] || p.Found != found[i] {
			t.Fatalf("layer %d: got %+v", i, p)
		}
	}
	if trace.Value != preferences.ThemeDark {
		t.Fatalf("expected effective DARK, got %v", trace.Value)
	}
	eff, ok := trace.Effective()
	if !ok || eff.Level != "default" || eff.Revision != "d1" {
		t.Fatalf("unexpected effective layer %+v", eff)
	}

	payload, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	decoded, err := preferences.TraceFromJSON(payload)
	if err != nil {
		t.Fatalf("TraceFromJSON: %v", err)
	}
	if decoded.Path != "theme" || len(decoded.Layers) != 3 {
		t.Fatalf("unexpected decoded trace %+v", decoded)
	}
}

func TestTraceFieldExplicitEmptyList(t *testing.T) {
	defaults, user := loadDocuments(t)
	trace, err := preferences.TraceField(preferences.CategoryGeneral, "change_table", &defaults, &user)
	if err != nil {
		t.Fatalf("TraceField: %v", err)
	}
	if !trace.Layers[0].Found {
		t.Fatalf("explicit empty list must count as present")
	}
}

func TestTraceFieldUnknown(t *testing.T) {
	_, err := preferences.TraceField(preferences.CategoryDiff, "theme", nil, nil)
	if !errors.Is(err, preferences.ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
	_, err = preferences.TraceField("bogus", "theme", nil, nil)
	if !errors.Is(err, preferences.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestFields(t *testing.T) {
	fields, err := preferences.Fields(preferences.CategoryEdit)
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	byPath := map[string]string{}
	for _, f := range fields {
		byPath[f.Path] = f.Type
	}
	if byPath["tab_size"] != "int" || byPath["show_tabs"] != "bool" {
		t.Fatalf("unexpected descriptors %v", byPath)
	}
	general, _ := preferences.Fields(preferences.CategoryGeneral)
	for _, f := range general {
		if f.Path == "my" && f.Type != "[]preferences.MenuItem" {
			t.Fatalf("unexpected menu type %q", f.Type)
		}
	}
}

func TestStackValidation(t *testing.T) {
	base := preferences.NewLayer(layering.Source{Level: layering.LevelBaseline}, "", preferences.BaselineEdit())
	if _, err := preferences.NewStack(base, base); !errors.Is(err, preferences.ErrDuplicateLevel) {
		t.Fatalf("expected ErrDuplicateLevel, got %v", err)
	}
	if _, err := preferences.NewStack(preferences.Layer[preferences.Edit]{}); !errors.Is(err, preferences.ErrUnknownLevel) {
		t.Fatalf("expected ErrUnknownLevel, got %v", err)
	}

	user := preferences.NewLayer(layering.Source{Level: layering.LevelUser, Owner: "1"}, "u", preferences.Edit{TabSize: preferences.Ptr(2)})
	stack, err := preferences.NewStack(base, user)
	if err != nil {
		t.Fatalf("NewStack: %v", err)
	}
	if stack.Chain().Strongest().Level != layering.LevelUser {
		t.Fatalf("expected user layer first")
	}
	if got := stack.Merge(); *got.TabSize != 2 || *got.IndentUnit != 2 {
		t.Fatalf("unexpected merge %+v", got)
	}
	layers := stack.Layers()
	*layers[0].Snapshot.TabSize = 9
	if got := stack.Merge(); *got.TabSize != 2 {
		t.Fatalf("stack exposes internal layers")
	}
}
