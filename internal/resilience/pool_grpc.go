package resilience

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// GRPCPoolConfig controls how many parallel channels the pool keeps open
// to one target. Channels are opened eagerly at construction time
// (default 5).
type GRPCPoolConfig struct {
	Target     string
	Size       int
	DialOption []grpc.DialOption
}

func DefaultGRPCPoolConfig(target string) GRPCPoolConfig {
	return GRPCPoolConfig{Target: target, Size: 5}
}

// channelHealth tracks whether a given channel answered its last probe.
type channelHealth struct {
	healthy bool
}

// GRPCPool round-robins over N grpc.ClientConn channels under a single
// mutex guarding the index, the channels and their health flags; never
// held across an RPC. The pool is
// healthy as long as at least one channel is healthy; unhealthy channels
// are lazily reopened on the next HealthCheck pass rather than eagerly.
type GRPCPool struct {
	mu      sync.Mutex
	target  string
	conns   []*grpc.ClientConn
	health  []channelHealth
	next    int
}

func DialGRPCPool(cfg GRPCPoolConfig) (*GRPCPool, error) {
	if cfg.Size <= 0 {
		cfg.Size = 5
	}
	opts := cfg.DialOption
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	p := &GRPCPool{target: cfg.Target}
	for i := 0; i < cfg.Size; i++ {
		conn, err := grpc.NewClient(cfg.Target, opts...)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("dial grpc channel %d/%d to %s: %w", i+1, cfg.Size, cfg.Target, err)
		}
		p.conns = append(p.conns, conn)
		p.health = append(p.health, channelHealth{healthy: true})
	}
	return p, nil
}

// Get returns the next channel in round-robin order under the index
// mutex; the mutex is released before the caller ever issues an RPC.
func (p *GRPCPool) Get() *grpc.ClientConn {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.conns[p.next%len(p.conns)]
	p.next++
	return c
}

// MarkUnhealthy flags a channel so HealthCheckAll attempts to reopen it.
func (p *GRPCPool) MarkUnhealthy(conn *grpc.ClientConn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.conns {
		if c == conn {
			p.health[i].healthy = false
			return
		}
	}
}

// HealthCheckAll probes every channel's connectivity state and lazily
// reopens any channel whose underlying connection has gone permanently
// bad. The pool as a whole is healthy iff at least one channel reports
// healthy afterward.
func (p *GRPCPool) HealthCheckAll(ctx context.Context, dialOpts ...grpc.DialOption) (healthyCount int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	opts := dialOpts
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	for i, c := range p.conns {
		state := c.GetState()
		switch s := state.String(); {
		case !p.health[i].healthy || s == "SHUTDOWN" || s == "TRANSIENT_FAILURE":
			c.Close()
			newConn, dialErr := grpc.NewClient(p.target, opts...)
			if dialErr != nil {
				p.health[i] = channelHealth{healthy: false}
				continue
			}
			p.conns[i] = newConn
			p.health[i] = channelHealth{healthy: true}
		default:
			p.health[i] = channelHealth{healthy: true}
		}
		if p.health[i].healthy {
			healthyCount++
		}
	}
	if healthyCount == 0 {
		return 0, fmt.Errorf("grpc pool for %s: no healthy channels", p.target)
	}
	return healthyCount, nil
}

func (p *GRPCPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, c := range p.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *GRPCPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}
