package policy

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"blackroad.io/operator/internal/database/dbtest"
	"blackroad.io/operator/models"
)

// newBenchEngine returns an engine with n allow rules that never match plus
// the admin deny rule.
func newBenchEngine(b *testing.B, n int) *Engine {
	b.Helper()
	e := NewEngine(dbtest.New(b), zap.NewNop(), 4)
	ctx := context.Background()

	for i := 0; i < n; i++ {
		_, err := e.AddRule(ctx, &models.PolicyRuleCreateRequest{
			RuleID:    fmt.Sprintf("rule_%03d", i),
			Name:      "filler",
			Condition: fmt.Sprintf(`resource == "/never/%d"`, i),
			Action:    models.ActionAllow,
		})
		if err != nil {
			b.Fatal(err)
		}
	}
	_, err := e.AddRule(ctx, &models.PolicyRuleCreateRequest{
		RuleID:    "admin_access",
		Name:      "Admin Access",
		Condition: adminCondition,
		Action:    models.ActionDeny,
		Priority:  100,
	})
	if err != nil {
		b.Fatal(err)
	}
	return e
}

func BenchmarkEvaluateAccess_Allow(b *testing.B) {
	for _, n := range []int{10, 100} {
		b.Run(fmt.Sprintf("rules=%d", n), func(b *testing.B) {
			e := newBenchEngine(b, n)
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := e.EvaluateAccess(ctx, "user:alice", "/docs/index", nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkEvaluateBatch(b *testing.B) {
	e := newBenchEngine(b, 20)
	ctx := context.Background()

	requests := make([]models.AccessRequest, 32)
	for i := range requests {
		requests[i] = models.AccessRequest{
			Subject:  fmt.Sprintf("user:%d", i),
			Resource: fmt.Sprintf("/docs/%d", i),
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.EvaluateBatch(ctx, requests); err != nil {
			b.Fatal(err)
		}
	}
}
