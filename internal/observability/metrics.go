package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// UnmatchedRoute labels requests that never reached a registered route,
// including those rejected by group middleware.
const UnmatchedRoute = "unmatched"

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	requestTime  map[string]time.Duration
	errorCount   map[string]int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Requests map[string]int64         `json:"requests"`
	Latency  map[string]time.Duration `json:"latency"`
	Errors   map[string]int64         `json:"errors"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		requestTime:  make(map[string]time.Duration),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, strconv.Itoa(status))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.requestTime[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := pathKey(path, method, code)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Snapshot copies the current counters. Latency is the cumulative duration per key.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Requests: map[string]int64{},
		Latency:  map[string]time.Duration{},
		Errors:   map[string]int64{},
	}
	if m == nil {
		return snap
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.requestCount {
		snap.Requests[k] = v
	}
	for k, v := range m.requestTime {
		snap.Latency[k] = v
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	return snap
}

// RouteLabel returns the registered route pattern for the request, so counter
// keys stay bounded by the route table rather than by client-supplied paths.
// Call it after c.Next has returned.
func RouteLabel(c *fiber.Ctx) string {
	route := c.Route()
	// "/" is where the global and group middlewares are mounted; a route
	// without handlers is fiber's placeholder when nothing matched at all.
	if route == nil || len(route.Handlers) == 0 || route.Path == "" || route.Path == "/" {
		return UnmatchedRoute
	}
	return route.Path
}

func pathKey(path, method, suffix string) string {
	return path + "|" + method + "|" + suffix
}
