package watch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFilterResult indicates a filter that did not evaluate to a boolean.
var ErrFilterResult = errors.New("watch: filter must evaluate to a boolean")

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine  string
	Filter  string
	Project string
	Err     error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("watch: %s evaluator %s project=%s: %v", e.Engine, describeFilter(e.Filter), e.Project, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeFilter(filter string) string {
	if filter == "" {
		return "filter=<empty>"
	}
	return fmt.Sprintf("filter=%q", filter)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}
	if strings.HasPrefix(err.Error(), "watch:") {
		return err
	}
	return fmt.Errorf("watch: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, filter, project string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Filter == "" {
			evalErr.Filter = filter
		}
		if evalErr.Project == "" {
			evalErr.Project = project
		}
		return evalErr
	}
	return &EvaluationError{Engine: engine, Filter: filter, Project: project, Err: err}
}
