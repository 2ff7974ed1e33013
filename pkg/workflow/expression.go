package workflow

import (
	"fmt"

	"github.com/expr-lang/expr"
)

// conditionEnv builds the evaluation environment for when expressions.
// Expressions can reference workflow inputs (inputs.topic) and the outputs
// and statuses of visible upstream steps (steps.research.output,
// steps.research.status).
func conditionEnv(inputs map[string]any, visible map[string]*StepResult) map[string]any {
	stepsEnv := make(map[string]any, len(visible))
	for name, sr := range visible {
		stepsEnv[name] = map[string]any{
			"output": sr.Output,
			"status": string(sr.Status),
		}
	}
	return map[string]any{
		"inputs": inputs,
		"steps":  stepsEnv,
	}
}

// evalCondition evaluates a when expression to a boolean.
// Supports expressions like:
//   - inputs.mode == "strict"
//   - steps.research.status == "completed"
//   - inputs.count > 5 && inputs.enabled
func evalCondition(expression string, env map[string]any) (bool, error) {
	out, err := expr.Eval(expression, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q evaluated to %T, not bool", expression, out)
	}
	return b, nil
}
