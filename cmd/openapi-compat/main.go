// Command openapi-compat checks docs/swagger.yaml against the routes the web client calls
// and, optionally, against an earlier revision so operations are never silently removed.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var supportedMethods = map[string]struct{}{
	"get":     {},
	"put":     {},
	"post":    {},
	"delete":  {},
	"patch":   {},
	"head":    {},
	"options": {},
}

// clientRoutes are the operations the web client depends on.
var clientRoutes = []route{
	{"post", "/users/register"},
	{"post", "/users/login"},
	{"get", "/users/profile"},
	{"get", "/donations"},
	{"post", "/donations"},
	{"get", "/donations/available"},
	{"get", "/donations/{id}"},
	{"put", "/donations/{id}/claim"},
	{"put", "/donations/{id}/distribute"},
	{"get", "/leaderboard"},
}

type route struct {
	Method string
	Path   string
}

type operation struct {
	Responses map[string]struct{}
}

type parsedSpec struct {
	Paths map[string]map[string]operation
}

// document mirrors the parts of a swagger 2.0 file the checks read. Path items stay
// raw because they may also carry non-operation keys such as "parameters".
type document struct {
	Paths map[string]map[string]yaml.Node `yaml:"paths"`
}

type operationNode struct {
	Responses map[string]yaml.Node `yaml:"responses"`
}

func main() {
	specPath := flag.String("spec", "docs/swagger.yaml", "OpenAPI swagger.yaml to check")
	basePath := flag.String("base", "", "earlier swagger.yaml revision to compare against (optional)")
	flag.Parse()

	revision, err := loadSpec(*specPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load spec: %v\n", err)
		os.Exit(1)
	}

	issues := missingRoutes(revision, clientRoutes)
	if strings.TrimSpace(*basePath) != "" {
		base, err := loadSpec(*basePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load base spec: %v\n", err)
			os.Exit(1)
		}
		issues = append(issues, compare(base, revision)...)
	}

	if len(issues) > 0 {
		fmt.Fprintln(os.Stderr, "openapi compatibility check failed:")
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "- %s\n", issue)
		}
		os.Exit(1)
	}

	fmt.Println("openapi compatibility check passed")
}

func loadSpec(path string) (parsedSpec, error) {
	// #nosec G304: path comes from CLI flags in a dev tool
	raw, err := os.ReadFile(path)
	if err != nil {
		return parsedSpec{}, err
	}
	return parseSpec(raw)
}

func parseSpec(raw []byte) (parsedSpec, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return parsedSpec{}, err
	}
	if doc.Paths == nil {
		return parsedSpec{}, errors.New("missing top-level paths field")
	}

	spec := parsedSpec{Paths: make(map[string]map[string]operation)}
	for pathKey, methods := range doc.Paths {
		ops := make(map[string]operation)
		for methodKey, node := range methods {
			method := strings.ToLower(strings.TrimSpace(methodKey))
			if _, supported := supportedMethods[method]; !supported {
				continue
			}
			var op operationNode
			if err := node.Decode(&op); err != nil {
				return parsedSpec{}, fmt.Errorf("%s %s: %w", strings.ToUpper(method), pathKey, err)
			}
			responses := make(map[string]struct{}, len(op.Responses))
			for code := range op.Responses {
				if normalized := strings.ToLower(strings.TrimSpace(code)); normalized != "" {
					responses[normalized] = struct{}{}
				}
			}
			ops[method] = operation{Responses: responses}
		}
		if len(ops) > 0 {
			spec.Paths[pathKey] = ops
		}
	}
	return spec, nil
}

func missingRoutes(spec parsedSpec, required []route) []string {
	var issues []string
	for _, r := range required {
		if _, ok := spec.Paths[r.Path][r.Method]; !ok {
			issues = append(issues, fmt.Sprintf("missing client route: %s %s", strings.ToUpper(r.Method), r.Path))
		}
	}
	sort.Strings(issues)
	return issues
}

func compare(base, revision parsedSpec) []string {
	var issues []string

	for path, baseOps := range base.Paths {
		revOps, ok := revision.Paths[path]
		if !ok {
			issues = append(issues, fmt.Sprintf("removed path: %s", path))
			continue
		}

		for method, baseOp := range baseOps {
			revOp, ok := revOps[method]
			if !ok {
				issues = append(issues, fmt.Sprintf("removed operation: %s %s", strings.ToUpper(method), path))
				continue
			}

			for responseCode := range baseOp.Responses {
				if _, ok := revOp.Responses[responseCode]; !ok {
					issues = append(issues, fmt.Sprintf(
						"removed response code: %s %s -> %s",
						strings.ToUpper(method), path, strings.ToUpper(responseCode),
					))
				}
			}
		}
	}

	sort.Strings(issues)
	return issues
}
