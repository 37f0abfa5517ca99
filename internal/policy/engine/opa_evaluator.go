package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const policyQuery = "data.educonsole.access.allow"

// Default Rego policy mirroring the console's built-in role model: admins see
// everything, teachers see everything except the admin-only sections.
const defaultRegoPolicy = `package educonsole.access

default allow = false

admin_only := {"subjects", "tags", "news", "announcements", "users"}

allow if {
	input.role == "admin"
}

allow if {
	input.role == "teacher"
	not admin_only[input.resource]
}
`

// OPAEvaluator evaluates access policies using OPA Rego. The policy module is
// compiled once at construction.
type OPAEvaluator struct {
	compiler *ast.Compiler
}

// NewOPAEvaluator compiles policy and returns an evaluator over it. An empty
// policy selects the built-in default.
func NewOPAEvaluator(policy string) (*OPAEvaluator, error) {
	if policy == "" {
		policy = defaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"access.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile access policy: %w", err)
	}
	return &OPAEvaluator{compiler: compiler}, nil
}

// HealthCheck verifies that the compiled policy evaluates against a minimal
// input. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	if _, err := e.Allow(ctx, "admin", "dashboard"); err != nil {
		return fmt.Errorf("eval access policy: %w", err)
	}
	return nil
}

// Allow queries the compiled policy for the role/resource pair. A query that
// produces no result is reported as an error rather than a deny so callers can
// tell a broken policy from a deliberate one.
func (e *OPAEvaluator) Allow(ctx context.Context, role, resource string) (bool, error) {
	input := map[string]interface{}{
		"role":     role,
		"resource": resource,
	}
	q := rego.New(
		rego.Query(policyQuery),
		rego.Compiler(e.compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return false, fmt.Errorf("eval access policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("access policy query returned no result")
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("access policy produced %T, want bool", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}
