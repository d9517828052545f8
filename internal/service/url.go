package service

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"merweb-gateway/internal/route"
)

// Resolved holds the decoded parameter values a request was forwarded with.
type Resolved struct {
	Path  map[string]string
	Query map[string]string
}

// Int returns the named query value as an int, or 0 when absent.
func (r Resolved) Int(name string) int {
	n, _ := strconv.Atoi(r.Query[name])
	return n
}

// BuildURL resolves the endpoint's backend template against the raw path
// variables and inbound query. Only declared query parameters are forwarded,
// in declared order; a parameter whose value (after defaults) is empty is
// omitted. Values that do not parse as their declared kind yield
// ErrInvalidParam.
func (f *Forwarder) BuildURL(ep *route.Endpoint, params map[string]string, query url.Values) (string, Resolved, error) {
	res := Resolved{
		Path:  make(map[string]string, len(ep.Path)),
		Query: make(map[string]string, len(ep.Query)),
	}

	segments := strings.Split(ep.Backend, "/")
	for i, seg := range segments {
		name, ok := strings.CutPrefix(seg, ":")
		if !ok {
			continue
		}
		decl, _ := ep.PathParam(name)
		raw, err := url.PathUnescape(params[name])
		if err != nil {
			return "", res, fmt.Errorf("%w %q", ErrInvalidParam, name)
		}
		v, err := normalize(decl.Kind, raw)
		if err != nil || v == "" {
			return "", res, fmt.Errorf("%w %q", ErrInvalidParam, name)
		}
		res.Path[name] = v
		segments[i] = url.PathEscape(v)
	}

	var q strings.Builder
	for _, qp := range ep.Query {
		v := query.Get(qp.Name)
		if v == "" {
			v = qp.Default
		}
		if v == "" {
			continue
		}
		v, err := normalize(qp.Kind, v)
		if err != nil {
			return "", res, fmt.Errorf("%w %q", ErrInvalidParam, qp.Name)
		}
		res.Query[qp.Name] = v

		if q.Len() > 0 {
			q.WriteByte('&')
		}
		q.WriteString(queryEscape(qp.Name))
		q.WriteByte('=')
		q.WriteString(queryEscape(v))
	}

	target := f.baseURL + strings.Join(segments, "/")
	if q.Len() > 0 {
		target += "?" + q.String()
	}
	return target, res, nil
}

// queryEscape percent-encodes s for a query component, writing spaces as
// %20 rather than '+'. A literal '+' is already escaped as %2B.
func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// normalize validates v against kind. Integers are re-formatted so "007"
// reaches the backend as "7".
func normalize(kind route.Kind, v string) (string, error) {
	if kind != route.KindInt {
		return v, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}
