// Package preferences models per-account preference documents and resolves the
// effective settings of a category by layering a built-in baseline, the
// installation default document and an optional user document.
package preferences

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCategory indicates a category outside general, diff and edit.
var ErrUnknownCategory = errors.New("preferences: unknown category")

// Category names one of the independent preference partitions.
type Category string

const (
	CategoryGeneral Category = "general"
	CategoryDiff    Category = "diff"
	CategoryEdit    Category = "edit"
)

// Categories returns every category in a stable order.
func Categories() []Category {
	return []Category{CategoryGeneral, CategoryDiff, CategoryEdit}
}

// ParseCategory parses a category name, ignoring case and surrounding space.
func ParseCategory(value string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(value)))
	if err := c.Validate(); err != nil {
		return "", err
	}
	return c, nil
}

// Validate reports ErrUnknownCategory for unrecognised categories.
func (c Category) Validate() error {
	switch c {
	case CategoryGeneral, CategoryDiff, CategoryEdit:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCategory, string(c))
	}
}

func (c Category) String() string {
	return string(c)
}

// Settings is implemented by the settings struct of every category.
type Settings interface {
	Category() Category
}

// Ptr returns a pointer to v. It marks a field as present in a document.
func Ptr[T any](v T) *T {
	return &v
}
