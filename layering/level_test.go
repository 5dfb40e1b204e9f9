package layering_test

import (
	"reflect"
	"testing"

	"github.com/goliatone/go-accountstate/layering"
)

func TestNewChainOrdering(t *testing.T) {
	cases := []struct {
		name   string
		input  []layering.Source
		expect []layering.Source
	}{
		{
			name: "sorted strongest first",
			input: []layering.Source{
				{Level: layering.LevelBaseline},
				{Level: layering.LevelUser, Owner: "1000"},
				{Level: layering.LevelDefault},
			},
			expect: []layering.Source{
				{Level: layering.LevelUser, Owner: "1000"},
				{Level: layering.LevelDefault},
				{Level: layering.LevelBaseline},
			},
		},
		{
			name: "drops unknown and duplicates",
			input: []layering.Source{
				{Level: layering.LevelUnknown},
				{Level: layering.LevelDefault},
				{Level: layering.LevelDefault},
			},
			expect: []layering.Source{{Level: layering.LevelDefault}},
		},
		{name: "empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chain := layering.NewChain(tc.input...)
			got := chain.Ordered()
			if len(got) == 0 && len(tc.expect) == 0 {
				if chain.Strongest() != (layering.Source{}) || chain.Weakest() != (layering.Source{}) {
					t.Fatalf("expected zero sources on empty chain")
				}
				return
			}
			if !reflect.DeepEqual(tc.expect, got) {
				t.Fatalf("unexpected order\nwant: %#v\n got: %#v", tc.expect, got)
			}
			if chain.Strongest() != tc.expect[0] || chain.Weakest() != tc.expect[len(tc.expect)-1] {
				t.Fatalf("unexpected strongest/weakest")
			}
		})
	}
}

func TestLevelRoundTrip(t *testing.T) {
	for _, lvl := range []layering.Level{layering.LevelBaseline, layering.LevelDefault, layering.LevelUser} {
		if got := layering.ParseLevel(lvl.String()); got != lvl {
			t.Fatalf("ParseLevel(%q) = %v", lvl.String(), got)
		}
	}
	if layering.ParseLevel("group") != layering.LevelUnknown {
		t.Fatalf("expected unknown level")
	}
	if id := (layering.Source{Level: layering.LevelUser, Owner: "7"}).Identifier(); id != "user/7" {
		t.Fatalf("unexpected identifier %q", id)
	}
}
