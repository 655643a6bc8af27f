package pipeline

import (
	"fmt"
	"regexp"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/gralabs/snmpworker/pkg/snmpworker/workerr"
)

// exprVarPattern finds $N references in a sensor expression, the same
// 1-based positional placeholders used in output path templates.
var exprVarPattern = regexp.MustCompile(`\$(\d+)`)

// Expression is a compiled sensor expression ready to be evaluated once per
// index against that index's converted OID values.
type Expression struct {
	program *vm.Program
	refs    []int // distinct referenced $N positions, in order of first use
}

// CompileExpression rewrites $1..$N references to valid identifiers (v1..vN)
// and compiles the result with expr-lang/expr. A plain, placeholder-free
// expression (the common single-OID case) compiles the same way.
func CompileExpression(source string) (*Expression, error) {
	nVars := 0
	seen := make(map[int]struct{})
	var refs []int
	rewritten := exprVarPattern.ReplaceAllStringFunc(source, func(m string) string {
		sub := exprVarPattern.FindStringSubmatch(m)
		var n int
		fmt.Sscanf(sub[1], "%d", &n)
		if n > nVars {
			nVars = n
		}
		if _, ok := seen[n]; !ok && n >= 1 {
			seen[n] = struct{}{}
			refs = append(refs, n)
		}
		return "v" + sub[1]
	})

	env := make(map[string]interface{}, nVars)
	for i := 1; i <= nVars; i++ {
		env[fmt.Sprintf("v%d", i)] = float64(0)
	}

	program, err := expr.Compile(rewritten, expr.Env(env), expr.AsFloat64())
	if err != nil {
		return nil, workerr.NewConfigError(fmt.Sprintf("invalid expression %q", source), err)
	}
	return &Expression{program: program, refs: refs}, nil
}

// Eval runs the expression against values, where values[i-1] is the
// converted OID value at position i-1 ($i). Only positions the expression
// actually references are bound and required: a value at a position the
// expression never mentions may be nil or a non-numeric string (it might
// still be used by the output path template) without affecting evaluation.
// Returns NoValueForOid if a referenced position is missing, nil, or not a
// number.
func (e *Expression) Eval(values []interface{}) (float64, error) {
	env := make(map[string]interface{}, len(e.refs))
	for _, i := range e.refs {
		if i > len(values) || values[i-1] == nil {
			return 0, workerr.NewNoValueForOid(fmt.Sprintf("$%d", i))
		}
		f, ok := toFloat64(values[i-1])
		if !ok {
			return 0, workerr.NewNoValueForOid(fmt.Sprintf("$%d", i))
		}
		env[fmt.Sprintf("v%d", i)] = f
	}

	out, err := expr.Run(e.program, env)
	if err != nil {
		return 0, workerr.NewConfigError("expression evaluation failed", err)
	}
	f, ok := out.(float64)
	if !ok {
		return 0, workerr.NewConfigError(fmt.Sprintf("expression did not evaluate to a number: %v", out), nil)
	}
	return f, nil
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}

// NumVars reports how many distinct $N positions the expression references.
func (e *Expression) NumVars() int { return len(e.refs) }
