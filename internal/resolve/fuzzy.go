// Package resolve matches user input against the known import and export
// types of 4me.
package resolve

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/sahilm/fuzzy"
)

// ImportTypes are the types accepted by the 4me import API.
var ImportTypes = []string{
	"affected_slas", "cis", "ci_contacts", "ci_relations", "configuration_items",
	"contracts", "first_line_support_agreements", "flsas", "invoices", "organizations",
	"people", "people_contact_details", "problems", "product_categories", "products",
	"project_tasks", "project_task_templates", "projects", "releases", "requests",
	"request_templates", "risks", "service_instances", "service_level_agreements",
	"service_offerings", "services", "sites", "skill_pools", "slas", "tasks",
	"task_templates", "teams", "time_allocations", "time_entries", "translations",
	"ui_extensions", "user_interface_extensions", "workflows", "workflow_templates",
}

// ExportTypes are the types accepted by the 4me export API.
var ExportTypes = append([]string{
	"knowledge_articles", "product_backlogs", "project_phases", "request_knowledge_articles",
	"request_tags", "shop_articles", "shop_order_lines",
}, ImportTypes...)

var ErrEmptyQuery = errors.New("empty type")

// UnknownError is returned for a type that is not in the list.
type UnknownError struct {
	Kind        string
	Type        string
	Suggestions []string
}

func (e *UnknownError) Error() string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "unknown %s type %q", e.Kind, e.Type)
	if len(e.Suggestions) > 0 {
		b.WriteString(", did you mean: ")
		b.WriteString(strings.Join(e.Suggestions, ", "))
	}
	return b.String()
}

type lowerSource []string

func (s lowerSource) String(i int) string { return strings.ToLower(s[i]) }
func (s lowerSource) Len() int            { return len(s) }

// Type normalizes query to snake case and checks it against known. kind
// ("import" or "export") names the list in the error.
func Type(kind, query string, known []string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}
	name := strcase.ToSnake(query)
	for _, k := range known {
		if k == name {
			return name, nil
		}
	}
	return "", &UnknownError{Kind: kind, Type: query, Suggestions: Suggest(name, known, 3)}
}

// Suggest returns up to limit candidates ranked by fuzzy score, best first.
// Duplicates in candidates are reported once.
func Suggest(query string, candidates []string, limit int) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || len(candidates) == 0 || limit <= 0 {
		return nil
	}

	unique := dedupe(candidates)
	results := fuzzy.FindFrom(query, lowerSource(unique))
	if len(results) > limit {
		results = results[:limit]
	}
	suggestions := make([]string, len(results))
	for i, r := range results {
		suggestions[i] = unique[r.Index]
	}
	return suggestions
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	sort.Strings(out)
	return out
}
