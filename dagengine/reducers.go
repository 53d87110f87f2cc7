package dagengine

import (
	"fmt"

	"github.com/agentflow-runtime/workflowcore/domain"
)

// Reduce combines an aggregation node's source outputs per reducer kind
// (spec.md §4.5, aggregation nodes), adapted from workflow/state_reducer.go's
// built-in Reducer[T] implementations (LastValueReducer/AppendReducer/
// MergeMapReducer/SumReducer), generalized from typed channels to the
// dynamic any-valued outputs a declarative node carries.
func Reduce(kind domain.ReducerKind, values []any) (any, error) {
	switch kind {
	case domain.ReducerConcat:
		var out []any
		for _, v := range values {
			if arr, ok := v.([]any); ok {
				out = append(out, arr...)
				continue
			}
			out = append(out, v)
		}
		return out, nil
	case domain.ReducerMergeObject:
		merged := map[string]any{}
		for _, v := range values {
			m, ok := v.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("merge_object reducer: value is not an object: %T", v)
			}
			for k, vv := range m {
				merged[k] = vv
			}
		}
		return merged, nil
	case domain.ReducerSum:
		var sum float64
		for _, v := range values {
			f, ok := toFloat64(v)
			if !ok {
				return nil, fmt.Errorf("sum reducer: value is not numeric: %T", v)
			}
			sum += f
		}
		return sum, nil
	case domain.ReducerLast:
		if len(values) == 0 {
			return nil, nil
		}
		return values[len(values)-1], nil
	default:
		return nil, fmt.Errorf("unknown reducer kind %q", kind)
	}
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case float32:
		return float64(val), true
	default:
		return 0, false
	}
}
