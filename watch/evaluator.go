package watch

import (
	"errors"
	"time"
)

// ErrNoEvaluator indicates a filter needed evaluation but no engine is set.
var ErrNoEvaluator = errors.New("watch: evaluator not configured")

// Input carries the bindings a filter is evaluated against.
type Input struct {
	Project string
	Notify  NotifyType
	Change  map[string]any
	Args    map[string]any
	Now     *time.Time
}

func (in Input) withDefaults() Input {
	if in.Now == nil {
		now := time.Now()
		in.Now = &now
	}
	if in.Change == nil {
		in.Change = map[string]any{}
	}
	if in.Args == nil {
		in.Args = map[string]any{}
	}
	return in
}

// bindings returns the variables every engine exposes to a filter.
func (in Input) bindings() map[string]any {
	in = in.withDefaults()
	return map[string]any{
		"project": in.Project,
		"notify":  in.Notify.String(),
		"change":  in.Change,
		"args":    in.Args,
		"now":     *in.Now,
	}
}

// Evaluator executes filter expressions.
type Evaluator interface {
	Engine() string
	Evaluate(in Input, expr string) (any, error)
	Compile(expr string) (CompiledFilter, error)
}

// CompiledFilter is a reusable filter program.
type CompiledFilter interface {
	Evaluate(in Input) (any, error)
}
