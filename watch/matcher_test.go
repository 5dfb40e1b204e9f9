package watch_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/goliatone/go-accountstate/watch"
)

func sampleWatches(t *testing.T, filters ...string) watch.Set {
	t.Helper()
	entries := map[watch.Key]watch.NotifyTypes{
		{Project: "other"}: watch.Notify(watch.NewChanges),
	}
	for _, f := range filters {
		entries[watch.Key{Project: "core", Filter: f}] = watch.Notify(watch.NewChanges, watch.AllComments)
	}
	set, err := watch.NewSet(entries)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return set
}

func TestMatcherEngines(t *testing.T) {
	engines := map[string]watch.Evaluator{
		"expr": watch.NewExprEvaluator(),
		"cel":  watch.NewCELEvaluator(watch.CELWithProgramCache(watch.NewProgramCache(0))),
	}
	change := map[string]any{"branch": "main", "owner": "alice", "size": 42}

	for name, evaluator := range engines {
		t.Run(name, func(t *testing.T) {
			set := sampleWatches(t, "", `change.branch == "main"`, `change.branch == "dev"`, `project == "core" && notify == "NEW_CHANGES"`)
			m := watch.NewMatcher(watch.WithEvaluator(evaluator))

			got, err := m.Match(context.Background(), set, "core", watch.NewChanges, change)
			if err != nil {
				t.Fatalf("Match: %v", err)
			}
			want := []watch.Key{
				{Project: "core"},
				{Project: "core", Filter: `change.branch == "main"`},
				{Project: "core", Filter: `project == "core" && notify == "NEW_CHANGES"`},
			}
			if !reflect.DeepEqual(want, got) {
				t.Fatalf("unexpected matches\nwant: %v\n got: %v", want, got)
			}

			got, err = m.Match(context.Background(), set, "core", watch.SubmittedChanges, change)
			if err != nil || len(got) != 0 {
				t.Fatalf("expected no match for unsubscribed type, got %v (%v)", got, err)
			}
		})
	}
}

func TestMatcherDefaultsToExpr(t *testing.T) {
	var events []watch.EvaluatorLogEvent
	m := watch.NewMatcher(watch.WithEvaluatorLogger(watch.EvaluatorLoggerFunc(func(e watch.EvaluatorLogEvent) {
		events = append(events, e)
	})))
	set := sampleWatches(t, "*", "change.size > 10")
	got, err := m.Match(context.Background(), set, "core", watch.AllComments, map[string]any{"size": 42})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %v", got)
	}
	if len(events) != 1 || events[0].Engine != "expr" || !events[0].Matched {
		t.Fatalf("unexpected log events %+v", events)
	}
}

func TestMatcherFunctionRegistry(t *testing.T) {
	registry := watch.NewFunctionRegistry()
	if err := registry.Register("is_bot", func(args ...any) (any, error) {
		name, _ := args[0].(string)
		return strings.HasSuffix(name, "-bot"), nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := registry.Register("IS_BOT", func(...any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate registration error")
	}

	cases := []struct {
		name      string
		evaluator watch.Evaluator
		filter    string
	}{
		{name: "expr direct", evaluator: watch.NewExprEvaluator(watch.ExprWithFunctionRegistry(registry)), filter: "!is_bot(change.owner)"},
		{name: "expr call", evaluator: watch.NewExprEvaluator(watch.ExprWithFunctionRegistry(registry)), filter: `call("is_bot", change.owner) == false`},
		{name: "cel call", evaluator: watch.NewCELEvaluator(watch.CELWithFunctionRegistry(registry)), filter: `call("is_bot", [change.owner]) == false`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := watch.NewMatcher(watch.WithEvaluator(tc.evaluator))
			set := sampleWatches(t, tc.filter)

			got, err := m.Match(context.Background(), set, "core", watch.NewChanges, map[string]any{"owner": "alice"})
			if err != nil {
				t.Fatalf("Match: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("expected human change to match, got %v", got)
			}
			got, err = m.Match(context.Background(), set, "core", watch.NewChanges, map[string]any{"owner": "ci-bot"})
			if err != nil {
				t.Fatalf("Match: %v", err)
			}
			if len(got) != 0 {
				t.Fatalf("expected bot change to be filtered, got %v", got)
			}
		})
	}
}

func TestMatcherErrors(t *testing.T) {
	m := watch.NewMatcher()

	_, err := m.Match(context.Background(), sampleWatches(t, "change.branch"), "core", watch.NewChanges, map[string]any{"branch": "main"})
	if !errors.Is(err, watch.ErrFilterResult) {
		t.Fatalf("expected ErrFilterResult, got %v", err)
	}
	var evalErr *watch.EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Engine != "expr" || evalErr.Project != "core" {
		t.Fatalf("expected EvaluationError with metadata, got %#v", err)
	}

	_, err = m.Match(context.Background(), sampleWatches(t, "change.branch =="), "core", watch.NewChanges, nil)
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected compile error wrapped in EvaluationError, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Match(ctx, sampleWatches(t, ""), "core", watch.NewChanges, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCompiledFilter(t *testing.T) {
	cache := watch.NewProgramCache(0)
	evaluator := watch.NewExprEvaluator(watch.ExprWithProgramCache(cache))
	filter, err := evaluator.Compile(`change.status == "NEW"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, ok := cache.Get(`change.status == "NEW"`); !ok {
		t.Fatalf("expected compiled program in cache")
	}
	out, err := filter.Evaluate(watch.Input{Project: "core", Change: map[string]any{"status": "NEW"}})
	if err != nil || out != true {
		t.Fatalf("Evaluate = %v, %v", out, err)
	}
	if _, err := evaluator.Compile(""); err == nil {
		t.Fatalf("expected empty expression error")
	}
}
