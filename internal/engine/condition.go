package engine

import (
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/pricevault/tierkit/internal/domain"
)

// newConditionEnv creates the CEL environment for cart-level conditions.
func newConditionEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("cart_subtotal", cel.DoubleType),
		cel.Variable("cart_line_count", cel.IntType),
		cel.Variable("cart_total_quantity", cel.IntType),
		cel.Variable("currency", cel.StringType),
	)
}

// conditionCache holds compiled condition programs keyed by expression text.
// Conditions are merchant-authored and few per shop, so the cache stays small.
type conditionCache struct {
	mu       sync.RWMutex
	env      *cel.Env
	programs map[string]cel.Program
}

func newConditionCache(env *cel.Env) *conditionCache {
	return &conditionCache{
		env:      env,
		programs: make(map[string]cel.Program),
	}
}

func (c *conditionCache) program(expr string) (cel.Program, error) {
	c.mu.RLock()
	prg, ok := c.programs[expr]
	c.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.programs[expr] = prg
	c.mu.Unlock()

	return prg, nil
}

// conditionMet evaluates an optional cart-level condition. An empty condition
// is unconditionally met. A condition that fails to compile, errors at
// evaluation time, or yields a non-boolean disables the discount for this
// call, the same fail-open-to-no-discount policy as configuration parsing.
func (c *conditionCache) conditionMet(expr string, cart *domain.Cart) bool {
	if expr == "" {
		return true
	}

	prg, err := c.program(expr)
	if err != nil {
		return false
	}

	out, _, err := prg.Eval(map[string]any{
		"cart_subtotal":       cart.Subtotal().InexactFloat64(),
		"cart_line_count":     len(cart.Lines),
		"cart_total_quantity": cart.TotalQuantity(),
		"currency":            cart.Currency,
	})
	if err != nil {
		return false
	}

	b, ok := out.(types.Bool)
	return ok && bool(b)
}
