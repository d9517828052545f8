package route

import (
	"fmt"
	"strings"
)

// Match is the result of a successful Lookup.
type Match struct {
	Endpoint *Endpoint
	// Params holds raw, still-escaped path variable values keyed by name.
	Params map[string]string
}

// compiled is one inbound pattern split into segments.
type compiled struct {
	endpoint *Endpoint
	segments []string
	params   int
}

// Table is the immutable route table. It is safe for concurrent use.
type Table struct {
	endpoints []*Endpoint
	patterns  []compiled
}

// NewTable builds the built-in route table and applies per-route policy
// overrides keyed by endpoint name.
func NewTable(policies map[string]string) (*Table, error) {
	return newTable(defaultEndpoints(), policies)
}

func newTable(defs []Endpoint, policies map[string]string) (*Table, error) {
	t := &Table{}
	byName := make(map[string]*Endpoint, len(defs))

	for i := range defs {
		ep := &defs[i]
		if _, dup := byName[ep.Name]; dup {
			return nil, fmt.Errorf("route %q defined twice", ep.Name)
		}
		byName[ep.Name] = ep
		t.endpoints = append(t.endpoints, ep)

		for _, p := range ep.Patterns {
			c, err := compile(ep, p)
			if err != nil {
				return nil, fmt.Errorf("route %q: %w", ep.Name, err)
			}
			t.patterns = append(t.patterns, c)
		}
	}

	for name, raw := range policies {
		ep, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("policy override for unknown route %q", name)
		}
		p, err := ParsePolicy(raw)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", name, err)
		}
		ep.Policy = p
	}

	return t, nil
}

func compile(ep *Endpoint, pattern string) (compiled, error) {
	if !strings.HasPrefix(pattern, "/") {
		return compiled{}, fmt.Errorf("pattern %q must start with '/'", pattern)
	}
	c := compiled{endpoint: ep, segments: strings.Split(pattern, "/")}
	for _, seg := range c.segments {
		if name, ok := strings.CutPrefix(seg, ":"); ok {
			if _, declared := ep.PathParam(name); !declared {
				return compiled{}, fmt.Errorf("pattern %q uses undeclared variable %q", pattern, name)
			}
			c.params++
		}
	}
	return c, nil
}

// Lookup returns the endpoint serving method and path. When several patterns
// match, the one with the fewest path variables wins, so literal routes such
// as /api/user/profile take precedence over /api/user/:id.
func (t *Table) Lookup(method, path string) (Match, bool) {
	segments := strings.Split(path, "/")

	var best *compiled
	for i := range t.patterns {
		c := &t.patterns[i]
		if c.endpoint.Method != method || len(c.segments) != len(segments) {
			continue
		}
		if !c.matches(segments) {
			continue
		}
		if best == nil || c.params < best.params {
			best = c
		}
	}
	if best == nil {
		return Match{}, false
	}

	m := Match{Endpoint: best.endpoint}
	if best.params > 0 {
		m.Params = make(map[string]string, best.params)
		for i, seg := range best.segments {
			if name, ok := strings.CutPrefix(seg, ":"); ok {
				m.Params[name] = segments[i]
			}
		}
	}
	return m, true
}

func (c *compiled) matches(segments []string) bool {
	for i, seg := range c.segments {
		if strings.HasPrefix(seg, ":") {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if seg != segments[i] {
			return false
		}
	}
	return true
}

// Endpoints returns every endpoint in definition order.
func (t *Table) Endpoints() []*Endpoint {
	out := make([]*Endpoint, len(t.endpoints))
	copy(out, t.endpoints)
	return out
}

// Endpoint returns the endpoint with the given name.
func (t *Table) Endpoint(name string) (*Endpoint, bool) {
	for _, ep := range t.endpoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return nil, false
}
