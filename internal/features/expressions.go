package features

import (
	"fmt"
	"math"

	"bankiq/internal/domain"

	"github.com/maja42/goval"
)

// ExpressionDerivation is a user-authored feature: Target is computed by
// evaluating Expression against each row, with every numeric column exposed
// as a variable. Example: {Target: "asset_to_income", Expression:
// "total_assets / max(monthly_income, 1)"}.
type ExpressionDerivation struct {
	Target     string
	Expression string
}

func expressionFunctions() map[string]goval.ExpressionFunction {
	return map[string]goval.ExpressionFunction{
		"abs": func(args ...interface{}) (interface{}, error) {
			v, err := argToFloat("abs", args, 0, 1)
			if err != nil {
				return nil, err
			}
			return math.Abs(v), nil
		},
		"log": func(args ...interface{}) (interface{}, error) {
			v, err := argToFloat("log", args, 0, 1)
			if err != nil {
				return nil, err
			}
			return math.Log(v), nil
		},
		"min": func(args ...interface{}) (interface{}, error) {
			a, err := argToFloat("min", args, 0, 2)
			if err != nil {
				return nil, err
			}
			b, err := argToFloat("min", args, 1, 2)
			if err != nil {
				return nil, err
			}
			return math.Min(a, b), nil
		},
		"max": func(args ...interface{}) (interface{}, error) {
			a, err := argToFloat("max", args, 0, 2)
			if err != nil {
				return nil, err
			}
			b, err := argToFloat("max", args, 1, 2)
			if err != nil {
				return nil, err
			}
			return math.Max(a, b), nil
		},
	}
}

func argToFloat(fn string, args []interface{}, i, want int) (float64, error) {
	if len(args) < want {
		return 0, fmt.Errorf("%s needs %d args, got %d", fn, want, len(args))
	}
	switch v := args[i].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	}
	return 0, fmt.Errorf("%s: arg %d is %T, want a number", fn, i, args[i])
}

// CreateExpressionFeatures evaluates the configured expression derivations row
// by row. The usual derivation guard applies: a target column that already
// exists is left alone. Missing cells read as zero, matching the rest of the
// feature layer.
func (e Engineer) CreateExpressionFeatures(f *domain.Frame) (*domain.Frame, error) {
	out := f.Clone()
	if len(e.cfg.ExpressionDerivations) == 0 {
		return out, nil
	}

	eval := goval.NewEvaluator()
	functions := expressionFunctions()
	for _, d := range e.cfg.ExpressionDerivations {
		if out.Has(d.Target) {
			continue
		}
		cols := out.Columns()
		vals := make([]float64, out.NumRows())
		for i := range vals {
			variables := make(map[string]interface{}, len(cols))
			for _, name := range cols {
				variables[name] = out.ValueOrZero(name, i)
			}

			result, err := eval.Evaluate(d.Expression, variables, functions)
			if err != nil {
				return nil, fmt.Errorf("failed to evaluate expression for %s: %w", d.Target, err)
			}
			v, err := resultToFloat(result)
			if err != nil {
				return nil, fmt.Errorf("expression for %s: %w", d.Target, err)
			}
			vals[i] = v
		}
		out.SetColumn(d.Target, vals)
	}
	return out, nil
}

func resultToFloat(result interface{}) (float64, error) {
	switch v := result.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("evaluated to a non-finite value")
		}
		return v, nil
	case int:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("evaluated to %T, want a number", result)
}
