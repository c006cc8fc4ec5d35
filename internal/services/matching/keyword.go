// Package matching implements the keyword query language used to narrow bank
// lines before an operator links one to an entity, and the search over open
// reconciliation files.
//
// A query is a comma-separated list of groups; each group is a
// whitespace-separated list of terms. A label matches when every term of at
// least one group occurs in it, ignoring case:
//
//	"orange abonnement, sfr"  =>  (orange AND abonnement) OR sfr
package matching

import "strings"

// Query is a parsed keyword query. The zero value matches nothing.
type Query struct {
	groups [][]string
}

// ParseQuery splits q into OR-groups of AND-terms, lower-cased, dropping empty
// groups and terms.
func ParseQuery(q string) Query {
	var groups [][]string
	for _, part := range strings.Split(q, ",") {
		terms := strings.Fields(strings.ToLower(strings.TrimSpace(part)))
		if len(terms) == 0 {
			continue
		}
		groups = append(groups, terms)
	}
	return Query{groups: groups}
}

// Empty reports whether the query has no terms at all.
func (q Query) Empty() bool {
	return len(q.groups) == 0
}

// Match reports whether label satisfies the query. Terms are matched as plain
// substrings of the label.
func (q Query) Match(label string) bool {
	if q.Empty() {
		return false
	}
	label = strings.ToLower(label)
	for _, group := range q.groups {
		if containsAll(label, group) {
			return true
		}
	}
	return false
}

// String renders the normalized query, e.g. "orange abonnement, sfr".
func (q Query) String() string {
	parts := make([]string, len(q.groups))
	for i, g := range q.groups {
		parts[i] = strings.Join(g, " ")
	}
	return strings.Join(parts, ", ")
}

func containsAll(label string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(label, t) {
			return false
		}
	}
	return true
}

// Evaluate parses query and matches it against label.
func Evaluate(query, label string) bool {
	return ParseQuery(query).Match(label)
}
