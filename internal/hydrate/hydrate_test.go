package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

type record struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Tags    []string `json:"tags"`
	Enabled bool     `json:"enabled"`
}

func TestDecodeCases(t *testing.T) {
	cases := []struct {
		name      string
		input     string
		opts      []DecoderOption[record]
		expect    record
		expectErr string
	}{
		{
			name:   "plain",
			input:  `{"id": 7, "name": "bob", "tags": ["a"], "enabled": true}`,
			expect: record{ID: 7, Name: "bob", Tags: []string{"a"}, Enabled: true},
		},
		{
			name:   "large identifiers keep precision",
			input:  `{"id": 9007199254740993, "name": "big"}`,
			expect: record{ID: 9007199254740993, Name: "big"},
		},
		{
			name:  "pre hook strips envelope",
			input: `{"version": 2, "name": "bob"}`,
			opts: []DecoderOption[record]{
				WithPreHook[record](stripVersion),
				WithDisallowUnknownFields[record](),
			},
			expect: record{Name: "bob"},
		},
		{
			name:      "unknown field rejected",
			input:     `{"name": "bob", "extra": 1}`,
			opts:      []DecoderOption[record]{WithDisallowUnknownFields[record]()},
			expectErr: "unknown field",
		},
		{
			name:  "post hook fills tags",
			input: `{"id": 3}`,
			opts: []DecoderOption[record]{
				WithPostHook[record](defaultTags),
			},
			expect: record{ID: 3, Tags: []string{"memory:acct/3"}},
		},
		{
			name:      "post hook failure",
			input:     `{"id": 0}`,
			opts:      []DecoderOption[record]{WithPostHook[record](requireID)},
			expectErr: "post-hook",
		},
		{
			name:      "not an object",
			input:     `null`,
			expectErr: "not a JSON object",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decoder := NewDecoder(tc.opts...)
			got, err := decoder.DecodeBytes(Context{Key: "acct/3", Source: "memory"}, []byte(tc.input))
			if tc.expectErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.expectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if !reflect.DeepEqual(tc.expect, got) {
				t.Fatalf("decoded value mismatch:\nwant: %#v\n got: %#v", tc.expect, got)
			}
		})
	}
}

func TestDecodeDoesNotMutateInput(t *testing.T) {
	payload := map[string]any{"version": 1, "name": "bob"}
	decoder := NewDecoder(WithPreHook[record](stripVersion))
	if _, err := decoder.Decode(Context{Key: "k"}, payload); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, ok := payload["version"]; !ok {
		t.Fatalf("decoder mutated caller payload")
	}
	if _, err := decoder.Decode(Context{Key: "k"}, nil); err == nil {
		t.Fatalf("expected error for nil payload")
	}
}

func stripVersion(_ Context, payload map[string]any) (map[string]any, error) {
	v, ok := payload["version"].(json.Number)
	if !ok {
		return nil, errors.New("missing version")
	}
	if _, err := v.Int64(); err != nil {
		return nil, err
	}
	delete(payload, "version")
	return payload, nil
}

func defaultTags(ctx Context, r *record) error {
	if len(r.Tags) == 0 {
		r.Tags = []string{fmt.Sprintf("%s:%s", ctx.Source, ctx.Key)}
	}
	return nil
}

func requireID(_ Context, r *record) error {
	if r.ID == 0 {
		return errors.New("id is required")
	}
	return nil
}
