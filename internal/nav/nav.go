// Package nav derives the visible navigation menu from the current session
// snapshot. The menu is a pure projection: it never grants access by itself,
// every target path is still guarded by its own gate.
package nav

import (
	"edu-admin-console/internal/gate"
	"edu-admin-console/internal/policy/engine"
	"edu-admin-console/internal/session"
)

// Entry is one navigation item. Visible decides whether the entry appears for
// a given snapshot; a nil Visible hides the entry unconditionally.
type Entry struct {
	Title   string
	Path    string
	Visible gate.Predicate
}

// Visible filters catalog down to the entries the snapshot may see, keeping
// catalog order. While the snapshot is loading no entry is visible, so the
// menu never flashes privileged items before the profile resolves.
func Visible(catalog []Entry, snap session.Snapshot) []Entry {
	if snap.Loading || snap.State == session.StateInitializing {
		return nil
	}
	var out []Entry
	for _, e := range catalog {
		if e.Visible != nil && e.Visible(snap) {
			out = append(out, e)
		}
	}
	return out
}

// DefaultCatalog is the console's built-in menu with role predicates baked in.
func DefaultCatalog() []Entry {
	return []Entry{
		{Title: "Dashboard", Path: "/dashboard", Visible: gate.Staff},
		{Title: "Exams", Path: "/exams", Visible: gate.Staff},
		{Title: "Questions", Path: "/questions", Visible: gate.Staff},
		{Title: "Subjects", Path: "/subjects", Visible: gate.Admin},
		{Title: "Tags", Path: "/tags", Visible: gate.Admin},
		{Title: "News", Path: "/news", Visible: gate.Admin},
		{Title: "Announcements", Path: "/announcements", Visible: gate.Admin},
		{Title: "Users", Path: "/users", Visible: gate.Admin},
	}
}

// PolicyCatalog mirrors DefaultCatalog but sources every visibility decision
// from the policy evaluator, so a deployment can reshape the menu in Rego
// without a rebuild.
func PolicyCatalog(evaluator engine.Evaluator) []Entry {
	sections := []struct {
		title    string
		path     string
		resource string
	}{
		{"Dashboard", "/dashboard", "dashboard"},
		{"Exams", "/exams", "exams"},
		{"Questions", "/questions", "questions"},
		{"Subjects", "/subjects", "subjects"},
		{"Tags", "/tags", "tags"},
		{"News", "/news", "news"},
		{"Announcements", "/announcements", "announcements"},
		{"Users", "/users", "users"},
	}
	entries := make([]Entry, 0, len(sections))
	for _, s := range sections {
		entries = append(entries, Entry{
			Title:   s.title,
			Path:    s.path,
			Visible: gate.Policy(evaluator, s.resource),
		})
	}
	return entries
}
