package routing

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Rule is one entry of an ordered context routing table: the first rule
// whose predicate accepts the context value wins
type Rule struct {
	Predicate func(value interface{}) bool
	Target    NodeID
	Reason    string
}

// NewEqualsRule matches when the context value equals want by string form
func NewEqualsRule(want string, target NodeID, reason string) Rule {
	return Rule{
		Predicate: func(value interface{}) bool {
			return fmt.Sprintf("%v", value) == want
		},
		Target: target,
		Reason: reason,
	}
}

// NewExprRule compiles an expression predicate evaluated against the
// context value. The expression sees one variable, "value", and must
// produce a boolean, e.g. `value == "high"` or `value > 10`.
func NewExprRule(expression string, target NodeID, reason string) (Rule, error) {
	program, err := expr.Compile(expression,
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return Rule{}, fmt.Errorf("failed to compile rule expression %q: %w", expression, err)
	}

	return Rule{
		Predicate: exprPredicate(program),
		Target:    target,
		Reason:    reason,
	}, nil
}

// MustExprRule is NewExprRule that panics on a bad expression, for
// statically known rule tables
func MustExprRule(expression string, target NodeID, reason string) Rule {
	rule, err := NewExprRule(expression, target, reason)
	if err != nil {
		panic(err)
	}
	return rule
}

func exprPredicate(program *vm.Program) func(value interface{}) bool {
	return func(value interface{}) bool {
		out, err := expr.Run(program, map[string]interface{}{"value": value})
		if err != nil {
			// A rule that cannot evaluate against this value simply
			// does not match; the next rule gets its turn.
			return false
		}
		matched, ok := out.(bool)
		return ok && matched
	}
}
