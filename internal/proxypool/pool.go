package proxypool

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"podigest/internal/logging"
	"podigest/internal/services"
)

// Health is the classification of one candidate relay.
type Health string

const (
	HealthUntested Health = "untested"
	HealthWorking  Health = "working"
	HealthFailed   Health = "failed"
)

const (
	defaultTestDelay      = 500 * time.Millisecond
	defaultFallbackBudget = 20
)

// Record describes one candidate and its last observed health.
type Record struct {
	Address    string
	Health     Health
	LastTested time.Time
}

// Prober checks whether a relay can carry a request. A nil error means working.
type Prober interface {
	Probe(ctx context.Context, address string) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, address string) error

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, address string) error { return f(ctx, address) }

// WarmUpResult summarizes one warm-up pass.
type WarmUpResult struct {
	Tested  int
	Working int
	Failed  int
}

// Option customizes a Pool.
type Option func(*Pool)

// WithTestDelay sets the pause between consecutive probes.
func WithTestDelay(d time.Duration) Option {
	return func(p *Pool) {
		if d >= 0 {
			p.testDelay = d
		}
	}
}

// WithFallbackBudget sets how many candidates Acquire may probe when no relay is known to work.
func WithFallbackBudget(n int) Option {
	return func(p *Pool) {
		if n >= 0 {
			p.fallbackBudget = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logging.NewComponentLogger(logger, "proxypool")
	}
}

// WithRand overrides the index picker used by Acquire. pick(n) must return a value in [0, n).
func WithRand(pick func(n int) int) Option {
	return func(p *Pool) {
		if pick != nil {
			p.pick = pick
		}
	}
}

// WithSleeper overrides the pause implementation used between probes.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(p *Pool) {
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// WithClock overrides the clock used for LastTested.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}

// Pool holds the candidate list and its Working and Failed sets.
// Working and Failed never overlap and both only contain candidates.
type Pool struct {
	// warmMu serializes warm-ups; mu guards records and working.
	warmMu sync.Mutex
	mu     sync.Mutex

	candidates []string
	records    map[string]*Record
	working    []string
	prober     Prober

	testDelay      time.Duration
	fallbackBudget int
	pick           func(n int) int
	sleep          func(context.Context, time.Duration) error
	now            func() time.Time
	logger         *slog.Logger
}

// New creates a pool over candidates. Blank and duplicate entries are dropped; order is kept.
func New(candidates []string, prober Prober, opts ...Option) *Pool {
	p := &Pool{
		records:        make(map[string]*Record, len(candidates)),
		prober:         prober,
		testDelay:      defaultTestDelay,
		fallbackBudget: defaultFallbackBudget,
		pick:           rand.IntN,
		sleep:          services.Sleep,
		now:            time.Now,
		logger:         logging.NewComponentLogger(nil, "proxypool"),
	}
	for _, raw := range candidates {
		addr := strings.TrimSpace(raw)
		if addr == "" {
			continue
		}
		if _, dup := p.records[addr]; dup {
			continue
		}
		p.candidates = append(p.candidates, addr)
		p.records[addr] = &Record{Address: addr, Health: HealthUntested}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Len returns the number of candidates.
func (p *Pool) Len() int {
	return len(p.candidates)
}

// WarmUp probes untested candidates in list order until maxToTest probes ran
// or no untested candidate remains. Already classified candidates are skipped,
// so repeated calls never reprobe. Cancelling ctx stops the pass early.
func (p *Pool) WarmUp(ctx context.Context, maxToTest int) WarmUpResult {
	var result WarmUpResult
	if maxToTest <= 0 || p.prober == nil {
		return result
	}

	p.warmMu.Lock()
	defer p.warmMu.Unlock()

	for _, addr := range p.candidates {
		if result.Tested >= maxToTest || ctx.Err() != nil {
			break
		}
		if p.health(addr) != HealthUntested {
			continue
		}
		if result.Tested > 0 {
			if err := p.sleep(ctx, p.testDelay); err != nil {
				break
			}
		}

		err := p.prober.Probe(ctx, addr)
		if err != nil && ctx.Err() != nil {
			// Cancelled mid-probe; the relay was not really observed.
			break
		}
		result.Tested++
		if p.classify(addr, err == nil) {
			result.Working++
			p.logger.Debug("proxy working", logging.String(logging.FieldProxy, addr))
		} else {
			result.Failed++
			p.logger.Debug("proxy failed probe", logging.String(logging.FieldProxy, addr), logging.Error(err))
		}
	}

	p.logger.Info("proxy warm-up finished",
		logging.Int("tested", result.Tested),
		logging.Int("working", result.Working),
		logging.Int("failed", result.Failed),
		logging.Int("known_working", len(p.Working())),
		logging.String(logging.FieldEventType, "proxy_warmup"),
	)
	return result
}

// Acquire returns a uniformly random working relay. When none is known it first
// runs one warm-up with the fallback budget. A false result means callers
// should go direct; it is not an error.
func (p *Pool) Acquire(ctx context.Context) (string, bool) {
	p.mu.Lock()
	empty := len(p.working) == 0
	p.mu.Unlock()

	if empty && p.fallbackBudget > 0 {
		p.WarmUp(ctx, p.fallbackBudget)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.working) == 0 {
		return "", false
	}
	return p.working[p.pick(len(p.working))], true
}

// ReportFailure moves address to Failed. It is idempotent, ignores unknown
// addresses, and a failed relay is never restored.
func (p *Pool) ReportFailure(address string) {
	addr := strings.TrimSpace(address)
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[addr]
	if !ok || rec.Health == HealthFailed {
		return
	}
	rec.Health = HealthFailed
	rec.LastTested = p.now()
	p.working = slices.DeleteFunc(p.working, func(candidate string) bool { return candidate == addr })
	p.logger.Info("proxy retired",
		logging.String(logging.FieldProxy, addr),
		logging.Int("remaining_working", len(p.working)),
		logging.String(logging.FieldEventType, "proxy_retired"),
	)
}

// Working returns the working relays in classification order.
func (p *Pool) Working() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.working)
}

// Failed returns the failed relays in candidate order.
func (p *Pool) Failed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, addr := range p.candidates {
		if p.records[addr].Health == HealthFailed {
			out = append(out, addr)
		}
	}
	return out
}

// Records returns a copy of every candidate record in candidate order.
func (p *Pool) Records() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Record, 0, len(p.candidates))
	for _, addr := range p.candidates {
		out = append(out, *p.records[addr])
	}
	return out
}

func (p *Pool) health(addr string) Health {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.records[addr].Health
}

// classify records a probe outcome unless the candidate was reported failed
// while the probe ran. It returns whether the candidate ended up working.
func (p *Pool) classify(addr string, ok bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec := p.records[addr]
	if rec.Health != HealthUntested {
		return rec.Health == HealthWorking
	}
	rec.LastTested = p.now()
	if ok {
		rec.Health = HealthWorking
		p.working = append(p.working, addr)
		return true
	}
	rec.Health = HealthFailed
	return false
}
