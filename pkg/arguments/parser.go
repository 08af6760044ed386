package arguments

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/expr-lang/expr"
)

// ErrMalformedArguments is returned when argument text cannot be decoded into an object.
var ErrMalformedArguments = errors.New("malformed tool arguments")

// MalformedError carries the original argument text alongside the decode failure.
type MalformedError struct {
	Raw string
	Err error
}

func (e *MalformedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %q", ErrMalformedArguments, e.Raw)
	}
	return fmt.Sprintf("%s: %q: %v", ErrMalformedArguments, e.Raw, e.Err)
}

// Unwrap returns the underlying decode failure.
func (e *MalformedError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrMalformedArguments.
func (e *MalformedError) Is(target error) bool {
	return target == ErrMalformedArguments
}

// safeEnv is the complete symbol table visible to relaxed evaluation.
// Functions are variadic over interface{} so integer literals are accepted
// where a float is expected; bad arguments panic and surface as eval errors.
var safeEnv = map[string]interface{}{
	"True":  true,
	"False": false,
	"None":  nil,
	"math": map[string]interface{}{
		"pi":    math.Pi,
		"e":     math.E,
		"inf":   math.Inf(1),
		"sqrt":  unary(math.Sqrt),
		"floor": unary(math.Floor),
		"ceil":  unary(math.Ceil),
		"log":   unary(math.Log),
		"exp":   unary(math.Exp),
		"sin":   unary(math.Sin),
		"cos":   unary(math.Cos),
		"tan":   unary(math.Tan),
		"fabs":  unary(math.Abs),
		"pow": func(args ...interface{}) float64 {
			x := floatArgs("pow", 2, args)
			return math.Pow(x[0], x[1])
		},
	},
	"random": map[string]interface{}{
		"random": func(args ...interface{}) float64 {
			floatArgs("random", 0, args)
			return rand.Float64()
		},
		"randint": func(args ...interface{}) int {
			x := floatArgs("randint", 2, args)
			a, b := int(x[0]), int(x[1])
			if b < a {
				panic(fmt.Sprintf("randint: empty range %d..%d", a, b))
			}
			return a + rand.Intn(b-a+1)
		},
		"uniform": func(args ...interface{}) float64 {
			x := floatArgs("uniform", 2, args)
			return x[0] + rand.Float64()*(x[1]-x[0])
		},
	},
}

func unary(fn func(float64) float64) func(...interface{}) float64 {
	return func(args ...interface{}) float64 {
		x := floatArgs("math", 1, args)
		return fn(x[0])
	}
}

// floatArgs converts exactly n numeric arguments.
func floatArgs(name string, n int, args []interface{}) []float64 {
	if len(args) != n {
		panic(fmt.Sprintf("%s: expected %d arguments, got %d", name, n, len(args)))
	}
	out := make([]float64, n)
	for i, arg := range args {
		switch v := arg.(type) {
		case int:
			out[i] = float64(v)
		case int64:
			out[i] = float64(v)
		case float64:
			out[i] = v
		default:
			panic(fmt.Sprintf("%s: argument %d is %T, not a number", name, i+1, arg))
		}
	}
	return out
}

// Parse decodes raw argument text into a structured map.
//
// Strict JSON is tried first. Anything else that still looks like an object
// literal is evaluated in a restricted expression mode with no builtins, which accepts the
// Python-flavoured dicts models sometimes emit (single quotes, bare keys, True/False).
func Parse(raw string) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return nil, &MalformedError{Raw: raw, Err: errors.New("expected object literal")}
	}

	if json.Valid([]byte(trimmed)) {
		var out map[string]interface{}
		if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
			return nil, &MalformedError{Raw: raw, Err: err}
		}
		return out, nil
	}

	out, err := evalRelaxed(trimmed)
	if err != nil {
		return nil, &MalformedError{Raw: raw, Err: err}
	}
	return out, nil
}

// CanParse reports whether Parse would succeed.
func CanParse(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}

// ParseOrEmpty treats blank argument text as an empty object.
func ParseOrEmpty(raw string) (map[string]interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]interface{}{}, nil
	}
	return Parse(raw)
}

func evalRelaxed(src string) (map[string]interface{}, error) {
	program, err := expr.Compile(src, expr.Env(safeEnv), expr.DisableAllBuiltins())
	if err != nil {
		return nil, fmt.Errorf("relaxed compile: %w", err)
	}
	value, err := expr.Run(program, safeEnv)
	if err != nil {
		return nil, fmt.Errorf("relaxed eval: %w", err)
	}
	if _, ok := value.(map[string]interface{}); !ok {
		return nil, fmt.Errorf("relaxed eval: result is %T, not an object", value)
	}

	// Round-trip so numbers and nested containers have the same shapes as strict JSON.
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("relaxed normalize: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("relaxed normalize: %w", err)
	}
	return out, nil
}
