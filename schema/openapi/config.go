package openapi

import (
	"strings"

	"github.com/goliatone/go-accountstate/preferences"
)

type generatorConfig struct {
	openAPIVersion string
	info           openapiInfo
	basePath       string
	categories     []preferences.Category
	withDefaults   bool
}

type openapiInfo struct {
	Title       string
	Version     string
	Description string
}

func defaultGeneratorConfig() generatorConfig {
	return generatorConfig{
		openAPIVersion: "3.0.3",
		info: openapiInfo{
			Title:   "Account Preferences",
			Version: "1.0.0",
		},
		categories:   preferences.Categories(),
		withDefaults: true,
	}
}

// GeneratorOption configures the OpenAPI generator behaviour.
type GeneratorOption func(*generatorConfig)

// WithOpenAPIVersion overrides the OpenAPI version string (default: 3.0.3).
func WithOpenAPIVersion(version string) GeneratorOption {
	return func(cfg *generatorConfig) {
		if version == "" {
			return
		}
		cfg.openAPIVersion = version
	}
}

// InfoOption configures optional fields on the OpenAPI info section.
type InfoOption func(*openapiInfo)

// WithInfoDescription sets the optional description field for the info section.
func WithInfoDescription(description string) InfoOption {
	return func(info *openapiInfo) {
		info.Description = description
	}
}

// WithInfo configures the OpenAPI info block. Empty strings retain the
// existing values.
func WithInfo(title, version string, opts ...InfoOption) GeneratorOption {
	return func(cfg *generatorConfig) {
		if title != "" {
			cfg.info.Title = title
		}
		if version != "" {
			cfg.info.Version = version
		}
		for _, opt := range opts {
			if opt != nil {
				opt(&cfg.info)
			}
		}
	}
}

// WithBasePath prefixes every generated path, e.g. "/a".
func WithBasePath(prefix string) GeneratorOption {
	return func(cfg *generatorConfig) {
		prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
		if prefix != "" && !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		cfg.basePath = prefix
	}
}

// WithCategories limits the per-category endpoints to the given categories.
// Unknown categories are reported by Generate.
func WithCategories(categories ...preferences.Category) GeneratorOption {
	return func(cfg *generatorConfig) {
		if len(categories) == 0 {
			return
		}
		cfg.categories = append([]preferences.Category(nil), categories...)
	}
}

// WithoutDefaults omits the built-in values from the generated schemas.
func WithoutDefaults() GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.withDefaults = false
	}
}

func (c generatorConfig) path(segments ...string) string {
	return c.basePath + "/" + strings.Join(segments, "/")
}
