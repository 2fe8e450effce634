// Package route decides, from the request path alone, whether a request
// renders the application shell, reaches a public API endpoint or needs an
// authenticated identity.
package route

import (
	"fmt"
	"strings"
)

type Class int

const (
	Shell Class = iota
	PublicAPI
	ProtectedAPI
)

func (c Class) String() string {
	switch c {
	case Shell:
		return "shell"
	case PublicAPI:
		return "public-api"
	case ProtectedAPI:
		return "protected-api"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

type Visibility int

const (
	Protected Visibility = iota
	Public
)

func ParseVisibility(s string) (Visibility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return Public, nil
	case "protected":
		return Protected, nil
	}
	return Protected, fmt.Errorf("route: unknown visibility %q", s)
}

// Route is one entry of the declarative route table.
type Route struct {
	Pattern    string
	Visibility Visibility
}

type Classifier struct {
	prefix []string
	public map[string]struct{}
	routes []Route
}

// NewClassifier builds a classifier for API paths under prefix (e.g. "/api").
// Routes not tagged Public need a token; listing them is optional.
func NewClassifier(prefix string, routes []Route) *Classifier {
	c := &Classifier{
		prefix: segments(prefix),
		public: make(map[string]struct{}),
	}
	for _, r := range routes {
		r.Pattern = normalize(r.Pattern)
		c.routes = append(c.routes, r)
		if r.Visibility == Public {
			c.public[r.Pattern] = struct{}{}
		}
	}
	return c
}

// PublicRoutes builds a table where every pattern is public.
func PublicRoutes(patterns ...string) []Route {
	routes := make([]Route, 0, len(patterns))
	for _, p := range patterns {
		routes = append(routes, Route{Pattern: p, Visibility: Public})
	}
	return routes
}

// Classify never fails. The query string must not be part of path.
func (c *Classifier) Classify(path string) Class {
	if !c.IsAPI(path) {
		return Shell
	}
	if _, ok := c.public[normalize(path)]; ok {
		return PublicAPI
	}
	return ProtectedAPI
}

// IsAPI reports whether path lies under the API prefix, segment-wise.
func (c *Classifier) IsAPI(path string) bool {
	segs := segments(path)
	if len(segs) < len(c.prefix) {
		return false
	}
	for i, s := range c.prefix {
		if segs[i] != s {
			return false
		}
	}
	return true
}

// Public lists the exempted patterns in table order.
func (c *Classifier) Public() []string {
	var out []string
	for _, r := range c.routes {
		if r.Visibility == Public {
			out = append(out, r.Pattern)
		}
	}
	return out
}

func segments(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalize(path string) string {
	return "/" + strings.Join(segments(path), "/")
}
