package plc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dockmonitor/internal/metrics"
	"dockmonitor/pkg/circuit"
	"dockmonitor/pkg/types"

	"github.com/sirupsen/logrus"
)

// connectionCache holds one enipConn per controller IP, created once and
// reused across polling cycles. A circuit breaker per IP trips after repeated transport failures so
// a dead controller doesn't re-pay the full dial+timeout on every tag of
// every poll tick.
type connectionCache struct {
	mu       sync.Mutex
	conns    map[string]*enipConn
	breakers map[string]*circuit.Breaker
	logger   *logrus.Logger
	timeout  time.Duration
}

func newConnectionCache(timeout time.Duration, logger *logrus.Logger) *connectionCache {
	return &connectionCache{
		conns:    make(map[string]*enipConn),
		breakers: make(map[string]*circuit.Breaker),
		logger:   logger,
		timeout:  timeout,
	}
}

// get returns the cached connection for ip, dialing and storing a new one
// under lock on miss. The factory returns the cached handle if present;
// otherwise it constructs one.
func (c *connectionCache) get(ctx context.Context, ip string) (*enipConn, *circuit.Breaker, error) {
	c.mu.Lock()
	breaker, ok := c.breakers[ip]
	if !ok {
		controller := ip
		breaker = circuit.NewBreaker(circuit.BreakerConfig{
			Name:             "plc-" + ip,
			FailureThreshold: 5,
			OpenTimeout:      60 * time.Second,
			FailureDecay:     10 * time.Minute,
			OnStateChange: func(name string, from, to types.CircuitBreakerState) {
				metrics.PlcBreakerState.WithLabelValues(controller).Set(float64(to))
			},
		}, c.logger)
		c.breakers[ip] = breaker
	}

	conn, ok := c.conns[ip]
	c.mu.Unlock()
	if ok {
		return conn, breaker, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Re-check under the write section in case another goroutine raced us.
	if conn, ok := c.conns[ip]; ok {
		return conn, breaker, nil
	}

	if !breaker.CanExecute() {
		return nil, breaker, fmt.Errorf("circuit breaker plc-%s is open", ip)
	}
	newConn, err := dialENIP(ctx, ip, c.timeout)
	if err != nil {
		breaker.Record(err)
		return nil, breaker, err
	}
	c.conns[ip] = newConn
	return newConn, breaker, nil
}

// invalidate drops a cached connection, e.g. after a read fails in a way
// that suggests the TCP session itself is dead, forcing a fresh dial next
// cycle.
func (c *connectionCache) invalidate(ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[ip]; ok {
		conn.Close()
		delete(c.conns, ip)
	}
}

func (c *connectionCache) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ip, conn := range c.conns {
		conn.Close()
		delete(c.conns, ip)
	}
}
