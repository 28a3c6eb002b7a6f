package policy

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"golang.org/x/sync/singleflight"

	"blackroad.io/operator/models"
)

// Compile parses a rule condition. Conditions are expr-lang boolean
// expressions over subject, resource and the request context keys, e.g.
//
//	resource startsWith "/admin" and not (subject contains "admin")
func Compile(condition string) (*vm.Program, error) {
	program, err := expr.Compile(condition, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidCondition, err)
	}
	return program, nil
}

// conditionCache holds compiled programs keyed by rule and condition text,
// so an edited condition never reuses a stale program.
type conditionCache struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
	group    singleflight.Group
}

func newConditionCache() *conditionCache {
	return &conditionCache{programs: make(map[string]*vm.Program)}
}

func cacheKey(ruleID, condition string) string {
	return ruleID + "\x00" + condition
}

// get returns the compiled program, compiling at most once per key even
// under concurrent callers.
func (c *conditionCache) get(ruleID, condition string) (*vm.Program, error) {
	key := cacheKey(ruleID, condition)

	c.mu.RLock()
	program, ok := c.programs[key]
	c.mu.RUnlock()
	if ok {
		return program, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		program, err := Compile(condition)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.programs[key] = program
		c.mu.Unlock()
		return program, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*vm.Program), nil
}

// forget drops every cached program for ruleID.
func (c *conditionCache) forget(ruleID string) {
	prefix := ruleID + "\x00"
	c.mu.Lock()
	for key := range c.programs {
		if strings.HasPrefix(key, prefix) {
			delete(c.programs, key)
		}
	}
	c.mu.Unlock()
}

func (c *conditionCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

// evaluate runs program against env. Any runtime error or non-bool result
// counts as no match.
func evaluate(program *vm.Program, env map[string]interface{}) (bool, error) {
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	matched, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition returned %T, want bool", out)
	}
	return matched, nil
}

// conditionEnv builds the evaluation environment. Context keys are applied
// last and shadow subject and resource.
func conditionEnv(subject, resource string, attrs map[string]interface{}) map[string]interface{} {
	env := make(map[string]interface{}, len(attrs)+2)
	env["subject"] = subject
	env["resource"] = resource
	for k, v := range attrs {
		env[k] = v
	}
	return env
}
