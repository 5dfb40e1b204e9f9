package watch

import (
	"context"
	"time"
)

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithEvaluator selects the engine used for filter expressions.
func WithEvaluator(e Evaluator) MatcherOption {
	return func(m *Matcher) {
		if e != nil {
			m.evaluator = e
		}
	}
}

// WithEvaluatorLogger attaches an evaluator logger.
func WithEvaluatorLogger(logger EvaluatorLogger) MatcherOption {
	return func(m *Matcher) {
		if logger == nil {
			m.logger = noopEvaluatorLogger{}
			return
		}
		m.logger = logger
	}
}

// WithArgs binds static arguments exposed to filters as `args`.
func WithArgs(args map[string]any) MatcherOption {
	return func(m *Matcher) {
		m.args = args
	}
}

// Matcher selects the watches of a set that apply to a change event. It holds
// no per-call state and is safe for concurrent use when its evaluator is.
type Matcher struct {
	evaluator Evaluator
	logger    EvaluatorLogger
	args      map[string]any
	now       func() time.Time
}

// NewMatcher returns a matcher. Without WithEvaluator filters run on expr with
// a program cache.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{logger: noopEvaluatorLogger{}, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.evaluator == nil {
		m.evaluator = NewExprEvaluator(ExprWithProgramCache(NewProgramCache(0)))
	}
	return m
}

// Match returns, in key order, the watches on project that subscribe to
// notify and whose filter accepts change.
func (m *Matcher) Match(ctx context.Context, set Set, project string, notify NotifyType, change map[string]any) ([]Key, error) {
	var matched []Key
	now := m.now()
	for _, key := range set.Keys() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if key.Project != project {
			continue
		}
		if types, _ := set.Get(key); !types.Has(notify) {
			continue
		}
		if key.MatchesAll() {
			matched = append(matched, key)
			continue
		}
		ok, err := m.evaluate(key, Input{
			Project: project,
			Notify:  notify,
			Change:  change,
			Args:    m.args,
			Now:     &now,
		})
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, key)
		}
	}
	return matched, nil
}

func (m *Matcher) evaluate(key Key, in Input) (bool, error) {
	if m.evaluator == nil {
		return false, ErrNoEvaluator
	}
	engine := m.evaluator.Engine()
	start := time.Now()
	value, err := m.evaluator.Evaluate(in, key.Filter)
	var matched bool
	if err == nil {
		var isBool bool
		matched, isBool = value.(bool)
		if !isBool {
			err = ErrFilterResult
		}
	}
	err = wrapEvaluationError(engine, key.Filter, key.Project, err)
	m.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Filter:   key.Filter,
		Project:  key.Project,
		Matched:  matched,
		Duration: time.Since(start),
		Err:      err,
	})
	return matched, err
}
