package openapi

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/goliatone/go-accountstate/preferences"
)

const (
	documentComponent = "PreferencesDocument"
	contentType       = "application/json"
)

type openAPIDocumentBuilder struct {
	config   generatorConfig
	registry *componentRegistry
	paths    map[string]any
}

func newOpenAPIDocumentBuilder(config generatorConfig) *openAPIDocumentBuilder {
	return &openAPIDocumentBuilder{
		config:   config,
		registry: newComponentRegistry(),
		paths:    map[string]any{},
	}
}

func (b *openAPIDocumentBuilder) build() (map[string]any, error) {
	// Documents are partial overrides, so they never carry built-in defaults.
	docNode, err := buildSchemaGraph(preferences.Document{}, "", false)
	if err != nil {
		return nil, err
	}
	docRef := b.registry.name(documentComponent, docNode, b.schemaFor(docNode, documentComponent))

	b.addOperation(b.config.path("accounts", "{account_id}", "preferences"), http.MethodGet, operation{
		id:       "getAccountPreferences",
		summary:  "Read the preference document stored for an account",
		params:   []map[string]any{accountParameter()},
		response: docRef,
		errors:   map[string]string{"404": "Account not found"},
	})
	b.addOperation(b.config.path("accounts", "{account_id}", "preferences"), http.MethodPut, operation{
		id:       "putAccountPreferences",
		summary:  "Replace the preference document of an account",
		params:   []map[string]any{accountParameter(), ifMatchParameter()},
		request:  docRef,
		response: docRef,
		errors: map[string]string{
			"400": "Invalid preference document",
			"404": "Account not found",
			"409": "Revision mismatch",
		},
	})

	for _, category := range b.config.categories {
		if err := category.Validate(); err != nil {
			return nil, fmt.Errorf("openapi: %w", err)
		}
		ref, err := b.categoryComponent(category)
		if err != nil {
			return nil, err
		}
		b.addOperation(b.config.path("accounts", "{account_id}", "preferences", category.String()), http.MethodGet, operation{
			id:       "get" + componentName(category.String()) + "Preferences",
			summary:  fmt.Sprintf("Resolve the effective %s preferences of an account", category),
			params:   []map[string]any{accountParameter()},
			response: ref,
			errors:   map[string]string{"404": "Account not found"},
		})
	}

	b.addOperation(b.config.path("config", "server", "preferences"), http.MethodGet, operation{
		id:       "getDefaultPreferences",
		summary:  "Read the installation default preferences",
		response: docRef,
	})
	b.addOperation(b.config.path("config", "server", "preferences"), http.MethodPut, operation{
		id:       "putDefaultPreferences",
		summary:  "Replace the installation default preferences",
		params:   []map[string]any{ifMatchParameter()},
		request:  docRef,
		response: docRef,
		errors: map[string]string{
			"400": "Invalid default document",
			"409": "Revision mismatch",
		},
	})

	document := map[string]any{
		"openapi": b.config.openAPIVersion,
		"info":    b.buildInfo(),
		"paths":   b.paths,
	}
	if components := b.registry.componentsMap(); components != nil {
		document["components"] = map[string]any{
			"schemas": components,
		}
	}

	if err := validateDocument(document); err != nil {
		return nil, err
	}
	return document, nil
}

func (b *openAPIDocumentBuilder) categoryComponent(c preferences.Category) (string, error) {
	baseline, err := preferences.Baseline(c)
	if err != nil {
		return "", err
	}
	node, err := buildSchemaGraph(baseline, c.String(), b.config.withDefaults)
	if err != nil {
		return "", err
	}
	// Effective settings carry every field.
	node.Required = sortedKeys(node.Properties)
	name := componentName(c.String(), "preferences")
	return b.registry.name(name, node, b.schemaFor(node, name)), nil
}

func (b *openAPIDocumentBuilder) buildInfo() map[string]any {
	info := map[string]any{
		"title":   b.config.info.Title,
		"version": b.config.info.Version,
	}
	if b.config.info.Description != "" {
		info["description"] = b.config.info.Description
	}
	return info
}

type operation struct {
	id       string
	summary  string
	params   []map[string]any
	request  string
	response string
	errors   map[string]string
}

func (b *openAPIDocumentBuilder) addOperation(path, method string, op operation) {
	item, _ := b.paths[path].(map[string]any)
	if item == nil {
		item = map[string]any{}
		b.paths[path] = item
	}

	responses := map[string]any{
		"200": map[string]any{
			"description": "OK",
			"content":     refContent(op.response),
		},
	}
	for status, description := range op.errors {
		responses[status] = map[string]any{"description": description}
	}

	out := map[string]any{
		"operationId": op.id,
		"responses":   responses,
	}
	if summary := strings.TrimSpace(op.summary); summary != "" {
		out["summary"] = summary
	}
	if len(op.params) > 0 {
		params := make([]any, 0, len(op.params))
		for _, p := range op.params {
			params = append(params, p)
		}
		out["parameters"] = params
	}
	if op.request != "" {
		out["requestBody"] = map[string]any{
			"required": true,
			"content":  refContent(op.request),
		}
	}
	item[strings.ToLower(method)] = out
}

func refContent(ref string) map[string]any {
	return map[string]any{
		contentType: map[string]any{
			"schema": map[string]any{"$ref": ref},
		},
	}
}

func accountParameter() map[string]any {
	return map[string]any{
		"name":     "account_id",
		"in":       "path",
		"required": true,
		"schema":   map[string]any{"type": "integer", "format": "int64"},
	}
}

func ifMatchParameter() map[string]any {
	return map[string]any{
		"name":        "If-Match",
		"in":          "header",
		"required":    false,
		"description": "Expected revision of the stored document. Omit to write unconditionally.",
		"schema":      map[string]any{"type": "string"},
	}
}

// schemaFor renders node, replacing shared object schemas with references.
func (b *openAPIDocumentBuilder) schemaFor(node *schemaNode, nameHint string) map[string]any {
	result := node.baseMap()

	if len(node.Properties) > 0 || node.Type == "object" {
		props := make(map[string]any, len(node.Properties))
		for _, key := range sortedKeys(node.Properties) {
			child := node.Properties[key]
			hint := componentName(key)
			rendered := b.schemaFor(child, hint)
			if child.Type == "object" {
				if ref := b.registry.reuse(hint, child, rendered); ref != "" {
					rendered = map[string]any{"$ref": ref}
				}
			}
			props[key] = rendered
		}
		result["properties"] = props
	}

	if len(node.Required) > 0 {
		required := append([]string{}, node.Required...)
		sort.Strings(required)
		result["required"] = required
	}

	if node.Items != nil {
		hint := nameHint + "Item"
		rendered := b.schemaFor(node.Items, hint)
		if node.Items.Type == "object" {
			if ref := b.registry.reuse(hint, node.Items, rendered); ref != "" {
				rendered = map[string]any{"$ref": ref}
			}
		}
		result["items"] = rendered
	}
	return result
}

func validateDocument(document map[string]any) error {
	if document == nil {
		return fmt.Errorf("openapi: document cannot be nil")
	}
	if version, _ := document["openapi"].(string); version == "" {
		return fmt.Errorf("openapi: document missing version string")
	}
	info, _ := document["info"].(map[string]any)
	if info == nil {
		return fmt.Errorf("openapi: document missing info section")
	}
	if title, _ := info["title"].(string); title == "" {
		return fmt.Errorf("openapi: info.title must be set")
	}
	if version, _ := info["version"].(string); version == "" {
		return fmt.Errorf("openapi: info.version must be set")
	}
	paths, _ := document["paths"].(map[string]any)
	if len(paths) == 0 {
		return fmt.Errorf("openapi: document must define at least one path")
	}
	for pathKey, pathValue := range paths {
		pathItem, _ := pathValue.(map[string]any)
		if len(pathItem) == 0 {
			return fmt.Errorf("openapi: path %q missing operations", pathKey)
		}
		for method, operationValue := range pathItem {
			op, _ := operationValue.(map[string]any)
			if op == nil {
				return fmt.Errorf("openapi: operation %s %s invalid payload", method, pathKey)
			}
			if id, _ := op["operationId"].(string); id == "" {
				return fmt.Errorf("openapi: operation %s %s missing operationId", method, pathKey)
			}
			if method == "put" {
				if _, ok := op["requestBody"].(map[string]any); !ok {
					return fmt.Errorf("openapi: operation %s %s missing requestBody", method, pathKey)
				}
			}
			if _, ok := op["responses"].(map[string]any); !ok {
				return fmt.Errorf("openapi: operation %s %s missing responses", method, pathKey)
			}
		}
	}
	return nil
}
