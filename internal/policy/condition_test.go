package policy

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackroad.io/operator/models"
)

func TestCompile(t *testing.T) {
	_, err := Compile(`subject matches "^svc:" and resource in ["/a", "/b"]`)
	assert.NoError(t, err)

	_, err = Compile(`subject +`)
	assert.ErrorIs(t, err, models.ErrInvalidCondition)
}

func TestEvaluate(t *testing.T) {
	env := conditionEnv("user:john", "/admin/settings", map[string]interface{}{"ip": "192.168.1.1"})

	tests := []struct {
		condition string
		want      bool
		wantErr   bool
	}{
		{adminCondition, true, false},
		{`ip == "192.168.1.1"`, true, false},
		{`resource endsWith "/users"`, false, false},
		{`len(subject) > 100`, false, false},
		{`missing startsWith "x"`, false, true},
		{`ip`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.condition, func(t *testing.T) {
			program, err := Compile(tt.condition)
			if err != nil {
				// Non-bool literals may be rejected at compile time.
				require.True(t, tt.wantErr)
				return
			}
			got, err := evaluate(program, env)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConditionEnv_ContextShadows(t *testing.T) {
	env := conditionEnv("s", "r", map[string]interface{}{"resource": "override", "x": 1})
	assert.Equal(t, "s", env["subject"])
	assert.Equal(t, "override", env["resource"])
	assert.Equal(t, 1, env["x"])
}

func TestConditionCache(t *testing.T) {
	c := newConditionCache()

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.get("rule", `subject == "a"`); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, failures.Load())
	assert.Equal(t, 1, c.len())

	p1, err := c.get("rule", `subject == "a"`)
	require.NoError(t, err)
	p2, err := c.get("rule", `subject == "a"`)
	require.NoError(t, err)
	assert.Same(t, p1, p2)

	_, err = c.get("rule", `subject == "b"`)
	require.NoError(t, err)
	_, err = c.get("other", `true`)
	require.NoError(t, err)
	assert.Equal(t, 3, c.len())

	c.forget("rule")
	assert.Equal(t, 1, c.len())

	_, err = c.get("bad", `(`)
	assert.ErrorIs(t, err, models.ErrInvalidCondition)
	assert.Equal(t, 1, c.len(), "failed compiles are not cached")
}
