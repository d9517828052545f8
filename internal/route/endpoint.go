// Package route holds the static table mapping inbound gateway routes to
// backend endpoints.
package route

import (
	"fmt"
	"net/http"
)

// Policy selects how backend server failures are presented to the caller.
type Policy int

const (
	// PolicyDefault maps backend 5xx replies to a generic bad-gateway envelope.
	PolicyDefault Policy = iota
	// PolicyDegradeToEmptyList answers backend 5xx replies with an empty page
	// and status 200, so list views keep rendering.
	PolicyDegradeToEmptyList
)

var policyNames = map[Policy]string{
	PolicyDefault:            "default",
	PolicyDegradeToEmptyList: "degrade-to-empty-list",
}

// String returns the configuration name of the policy.
func (p Policy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return "unknown"
}

// ParsePolicy converts a configuration name into a Policy.
func ParsePolicy(s string) (Policy, error) {
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return PolicyDefault, fmt.Errorf("unknown policy %q (want %q or %q)",
		s, PolicyDefault, PolicyDegradeToEmptyList)
}

// Kind is the declared type of a path or query parameter.
type Kind int

const (
	KindString Kind = iota
	KindInt
)

// BodyMode describes what the outbound request carries as a body.
type BodyMode int

const (
	// BodyNone sends no body.
	BodyNone BodyMode = iota
	// BodyForward relays the inbound JSON body.
	BodyForward
	// BodyEmptyObject always sends "{}" regardless of the inbound body.
	BodyEmptyObject
)

// PathParam declares a path variable, written ":name" in patterns and templates.
type PathParam struct {
	Name string
	Kind Kind
}

// QueryParam declares a recognized query parameter. An empty Default means
// the key is omitted when the caller does not send it.
type QueryParam struct {
	Name    string
	Kind    Kind
	Default string
}

// Endpoint maps one inbound route onto the backend. Endpoints are never
// mutated once a Table has been built.
type Endpoint struct {
	Name      string
	Method    string
	Patterns  []string
	Backend   string
	Operation string
	Path      []PathParam
	Query     []QueryParam
	Body      BodyMode
	Policy    Policy
}

// HasBody reports whether the outbound request carries a body.
func (e *Endpoint) HasBody() bool {
	return e.Body != BodyNone
}

// PathParam returns the declaration of the named path variable.
func (e *Endpoint) PathParam(name string) (PathParam, bool) {
	for _, p := range e.Path {
		if p.Name == name {
			return p, true
		}
	}
	return PathParam{}, false
}

var (
	idParam = []PathParam{{Name: "id", Kind: KindInt}}

	paging10 = []QueryParam{
		{Name: "page", Kind: KindInt, Default: "1"},
		{Name: "pageSize", Kind: KindInt, Default: "10"},
	}

	taskFilters = []QueryParam{
		{Name: "page", Kind: KindInt, Default: "1"},
		{Name: "pageSize", Kind: KindInt, Default: "10"},
		{Name: "status"},
		{Name: "priority"},
	}
)

// defaultEndpoints is the built-in route list, in no particular order;
// Lookup resolves overlaps by specificity.
func defaultEndpoints() []Endpoint {
	return []Endpoint{
		{
			Name: "auth.login", Method: http.MethodPost,
			Patterns: []string{"/api/login", "/api/login/"}, Backend: "/login",
			Operation: "login", Body: BodyForward,
		},
		{
			Name: "user.list", Method: http.MethodGet,
			Patterns: []string{"/api/user"}, Backend: "/user",
			Operation: "get user list",
			Query: append(append([]QueryParam{}, paging10...),
				QueryParam{Name: "keyword"},
				QueryParam{Name: "role_id"},
				QueryParam{Name: "team_id"},
			),
		},
		{
			Name: "user.create", Method: http.MethodPost,
			Patterns: []string{"/api/user"}, Backend: "/user",
			Operation: "create user", Body: BodyForward,
		},
		{
			Name: "user.get", Method: http.MethodGet,
			Patterns: []string{"/api/user/:id"}, Backend: "/user/:id",
			Operation: "get user", Path: idParam,
		},
		{
			Name: "user.update", Method: http.MethodPut,
			Patterns: []string{"/api/user/:id"}, Backend: "/user/:id",
			Operation: "update user", Path: idParam, Body: BodyForward,
		},
		{
			Name: "profile.get", Method: http.MethodGet,
			Patterns: []string{"/api/user/profile"}, Backend: "/user/profile",
			Operation: "get profile",
		},
		{
			Name: "profile.update", Method: http.MethodPut,
			Patterns: []string{"/api/user/profile"}, Backend: "/user/profile",
			Operation: "update profile", Body: BodyForward,
		},
		{
			Name: "user.logout", Method: http.MethodPost,
			Patterns: []string{"/api/user/logout"}, Backend: "/user/logout",
			Operation: "logout", Body: BodyEmptyObject,
		},
		{
			Name: "tasks.all", Method: http.MethodGet,
			Patterns: []string{"/api/tasks/all"}, Backend: "/tasks/all",
			Operation: "get all tasks", Query: taskFilters,
		},
		{
			Name: "tasks.get", Method: http.MethodGet,
			Patterns: []string{"/api/tasks/:id"}, Backend: "/tasks/:id",
			Operation: "get task", Path: idParam,
		},
		{
			Name: "tasks.personal", Method: http.MethodGet,
			Patterns: []string{"/api/tasks/personal"}, Backend: "/tasks/personal",
			Operation: "get personal tasks", Query: taskFilters,
		},
		{
			Name: "tasks.view", Method: http.MethodGet,
			Patterns: []string{"/api/tasks/myView"}, Backend: "/tasks/myView",
			Operation: "get visible tasks", Query: taskFilters,
		},
		{
			Name: "tasks.create", Method: http.MethodPost,
			Patterns: []string{"/api/tasks"}, Backend: "/tasks",
			Operation: "create task", Body: BodyForward,
		},
		{
			Name: "verification.send", Method: http.MethodPost,
			Patterns: []string{"/api/send-verification-code/"}, Backend: "/send-verification-code/",
			Operation: "send verification code", Body: BodyForward,
		},
		{
			// The backend route has no trailing slash.
			Name: "password.reset", Method: http.MethodPost,
			Patterns: []string{"/api/forgot-password/reset/"}, Backend: "/forgot-password/reset",
			Operation: "reset password", Body: BodyForward,
		},
		{
			// Callers may send "date"; it is deliberately not forwarded so the
			// backend lists every day.
			Name: "journals.list", Method: http.MethodGet,
			Patterns: []string{"/api/journals/"}, Backend: "/journals/",
			Operation: "get journal list",
			Query: []QueryParam{
				{Name: "page", Kind: KindInt, Default: "1"},
				{Name: "pageSize", Kind: KindInt, Default: "9"},
			},
			Policy: PolicyDegradeToEmptyList,
		},
		{
			Name: "journals.create", Method: http.MethodPost,
			Patterns: []string{"/api/journals/"}, Backend: "/journals/",
			Operation: "create journal", Body: BodyForward,
		},
		{
			Name: "team.get", Method: http.MethodGet,
			Patterns: []string{"/api/team/:id"}, Backend: "/team/:id",
			Operation: "get team", Path: idParam,
		},
		{
			Name: "company_tasks.important", Method: http.MethodGet,
			Patterns: []string{"/api/company-tasks/important"}, Backend: "/company-tasks/important",
			Operation: "get important company tasks",
		},
	}
}
