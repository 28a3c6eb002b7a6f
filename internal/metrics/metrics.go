// Package metrics provides Prometheus metrics for the Operator server.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "operator"

var (
	// Registry is the global Prometheus registry for all metrics.
	Registry = prometheus.NewRegistry()

	mu          sync.Mutex
	initialized = false
)

// Init registers runtime, HTTP, database, rate limit and domain collectors.
// Calling it more than once is a no-op.
func Init() error {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return nil
	}

	if err := register(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	); err != nil {
		return err
	}

	for _, fn := range []func() error{
		registerHTTPMetrics,
		registerRateLimitMetrics,
		registerDatabaseMetrics,
		registerDomainMetrics,
	} {
		if err := fn(); err != nil {
			return err
		}
	}

	initialized = true
	return nil
}

// MustInit initializes metrics and panics on error.
func MustInit() {
	if err := Init(); err != nil {
		panic("failed to initialize metrics: " + err.Error())
	}
}

// Reset swaps in a fresh registry. Tests call it before Init.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	Registry = prometheus.NewRegistry()
	initialized = false
}

func register(cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := Registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}
