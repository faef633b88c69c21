package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-gateway/core"
)

// apiPrefix is the mount point of every gateway route.
const apiPrefix = "/api"

// commandMethods pins mutating commands to their HTTP verb. Commands absent
// from the table (version, life, search, read) answer any method, matching
// the legacy routes that declared none.
var commandMethods = map[string]string{
	"authenticate": http.MethodPost,
	"refresh":      http.MethodPost,
	"close":        http.MethodPost,
	"create":       http.MethodPost,
	"call":         http.MethodPost,
	"write":        http.MethodPut,
	"unlink":       http.MethodDelete,
}

// route is a parsed gateway request: the command plus the positional path
// segments the legacy URL layout allows after it. Positional segments take
// precedence over the equivalent form parameters.
type route struct {
	Command  string
	Segments []string
}

func parseRoute(path string) (route, bool) {
	trimmed := strings.Trim(strings.TrimPrefix(path, apiPrefix), "/")
	if trimmed == "" {
		return route{Command: "version"}, true
	}
	segments := strings.Split(trimmed, "/")
	return route{
		Command:  strings.ToLower(segments[0]),
		Segments: segments[1:],
	}, true
}

func (r route) segment(index int) string {
	if index < 0 || index >= len(r.Segments) {
		return ""
	}
	return r.Segments[index]
}

func (r route) intSegment(index int) (int64, bool) {
	raw := strings.TrimSpace(r.segment(index))
	if raw == "" {
		return 0, false
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// formValue reads a request parameter from the form (body or query string);
// the legacy endpoint accepted both interchangeably.
func formValue(req *http.Request, name string) string {
	return strings.TrimSpace(req.FormValue(name))
}

func formInt(req *http.Request, name string) int64 {
	raw := formValue(req, name)
	if raw == "" {
		return 0
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

// parseDomain decodes the legacy domain parameter: a JSON array of
// [field, operator, value] triples.
func parseDomain(raw string) ([]core.Clause, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var triples [][]any
	if err := json.Unmarshal([]byte(raw), &triples); err != nil {
		return nil, fmt.Errorf("rest: malformed domain: %w", err)
	}
	clauses := make([]core.Clause, 0, len(triples))
	for _, triple := range triples {
		if len(triple) != 3 {
			return nil, fmt.Errorf("rest: domain clause must have three members, got %d", len(triple))
		}
		field, ok := triple[0].(string)
		if !ok {
			return nil, fmt.Errorf("rest: domain clause field must be a string")
		}
		operator, ok := triple[1].(string)
		if !ok {
			return nil, fmt.Errorf("rest: domain clause operator must be a string")
		}
		clauses = append(clauses, core.Clause{
			Field:    field,
			Operator: operator,
			Value:    triple[2],
		})
	}
	return clauses, nil
}

func parseStringList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("rest: malformed list parameter: %w", err)
	}
	return values, nil
}

func parseIDList(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var values []int64
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("rest: malformed ids parameter: %w", err)
	}
	return values, nil
}

func parseObject(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("rest: malformed object parameter: %w", err)
	}
	return values, nil
}

func parseArgs(raw string) ([]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var values []any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("rest: malformed args parameter: %w", err)
	}
	return values, nil
}
