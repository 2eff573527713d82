package jsonlogic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonlogic "github.com/diegoholiveira/jsonlogic/v3"
)

// Executor evaluates JsonLogic expressions against an object's property bag.
// It satisfies the engine's LogicExecutor port.
type Executor struct{}

// AddOperator writes into a process-global registry, so the custom
// operations are registered exactly once no matter how many executors
// are built.
var registerOnce sync.Once

// NewExecutor registers the custom operations once and returns the executor.
func NewExecutor() *Executor {
	registerOnce.Do(func() {
		jsonlogic.AddOperator("starts_with", func(values, data any) any {
			args, ok := values.([]any)
			if !ok || len(args) != 2 {
				return false
			}
			s, _ := args[0].(string)
			prefix, _ := args[1].(string)
			return strings.HasPrefix(s, prefix)
		})
		jsonlogic.AddOperator("ends_with", func(values, data any) any {
			args, ok := values.([]any)
			if !ok || len(args) != 2 {
				return false
			}
			s, _ := args[0].(string)
			suffix, _ := args[1].(string)
			return strings.HasSuffix(s, suffix)
		})
	})
	return &Executor{}
}

// Apply runs one expression over the data and coerces the outcome to a
// boolean. Non-boolean outcomes follow JsonLogic truthiness.
func (e *Executor) Apply(logic map[string]any, data map[string]any) (bool, error) {
	ruleJSON, err := json.Marshal(logic)
	if err != nil {
		return false, fmt.Errorf("marshal logic: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return false, fmt.Errorf("marshal data: %w", err)
	}

	var out bytes.Buffer
	if err := jsonlogic.Apply(bytes.NewReader(ruleJSON), bytes.NewReader(dataJSON), &out); err != nil {
		return false, fmt.Errorf("apply logic: %w", err)
	}

	var result any
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		return false, fmt.Errorf("decode logic result: %w", err)
	}
	return truthy(result), nil
}

func truthy(v any) bool {
	switch r := v.(type) {
	case bool:
		return r
	case float64:
		return r != 0
	case string:
		return r != ""
	case nil:
		return false
	case []any:
		return len(r) > 0
	case map[string]any:
		return len(r) > 0
	default:
		return false
	}
}
