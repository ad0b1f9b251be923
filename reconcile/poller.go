package reconcile

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Jwl06/civicledger360/models"
	"github.com/Jwl06/civicledger360/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PendingSource is anything that can list violations awaiting review.
type PendingSource interface {
	Name() string
	ListPending(ctx context.Context) ([]models.Violation, error)
}

// StoreSource adapts a local violation store.
type StoreSource struct {
	Store store.ViolationStore
}

func (s StoreSource) Name() string { return "backend" }

func (s StoreSource) ListPending(ctx context.Context) ([]models.Violation, error) {
	return s.Store.ListViolations(ctx, store.Filter{Status: models.ViolationPending})
}

// Snapshot is the merged queue as of the last applied poll.
type Snapshot struct {
	Violations   []models.Violation `json:"violations"`
	BackendCount int                `json:"backendCount"`
	ChainCount   int                `json:"chainCount"`
	Divergence   Report             `json:"divergence"`
	Errors       map[string]string  `json:"errors,omitempty"`
	Seq          uint64             `json:"seq"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// Poller refreshes the merged pending queue on a fixed interval. Every poll gets a
// sequence number when it starts and its result is applied only when no newer poll
// has been applied yet, so a slow response never overwrites a fresher one.
type Poller struct {
	backend  PendingSource
	chain    PendingSource
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger

	seq atomic.Uint64

	mu          sync.RWMutex
	applied     uint64
	lastBackend []models.Violation
	lastChain   []models.Violation
	snap        Snapshot

	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPoller builds a poller. chain may be nil when no contract is configured.
func NewPoller(backend, chain PendingSource, interval, timeout time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		backend:  backend,
		chain:    chain,
		interval: interval,
		timeout:  timeout,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		stopChan: make(chan struct{}),
	}
}

// Start polls immediately and then every interval until Stop.
func (p *Poller) Start() {
	p.wg.Add(1)
	go p.loop()
}

// Stop cancels in-flight polls and waits for them to return.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopChan)
		p.cancel()
	})
	p.wg.Wait()
}

func (p *Poller) loop() {
	defer p.wg.Done()

	p.spawn()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.spawn()
		}
	}
}

// spawn runs one poll without blocking the ticker, so a slow source never delays the next tick.
func (p *Poller) spawn() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.poll(p.ctx)
	}()
}

// Refresh polls now and reports whether the result was applied.
func (p *Poller) Refresh(ctx context.Context) (Snapshot, bool) {
	applied := p.poll(ctx)
	return p.Snapshot(), applied
}

// Snapshot returns a copy of the current merged queue.
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.snap
	s.Violations = append([]models.Violation(nil), p.snap.Violations...)
	if p.snap.Errors != nil {
		s.Errors = make(map[string]string, len(p.snap.Errors))
		for k, v := range p.snap.Errors {
			s.Errors[k] = v
		}
	}
	return s
}

func (p *Poller) poll(ctx context.Context) bool {
	seq := p.seq.Add(1)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var (
		backendList, chainList []models.Violation
		backendErr, chainErr   error
		g                      errgroup.Group
	)
	g.Go(func() error {
		backendList, backendErr = p.backend.ListPending(ctx)
		return nil
	})
	if p.chain != nil {
		g.Go(func() error {
			chainList, chainErr = p.chain.ListPending(ctx)
			return nil
		})
	}
	_ = g.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	if seq <= p.applied {
		p.log.Debug("dropping stale poll result", zap.Uint64("seq", seq), zap.Uint64("applied", p.applied))
		return false
	}
	p.applied = seq

	errs := map[string]string{}
	if backendErr != nil {
		errs[p.backend.Name()] = backendErr.Error()
		p.log.Warn("pending poll failed", zap.String("source", p.backend.Name()), zap.Error(backendErr))
	} else {
		p.lastBackend = backendList
	}
	if p.chain != nil {
		if chainErr != nil {
			errs[p.chain.Name()] = chainErr.Error()
			p.log.Warn("pending poll failed", zap.String("source", p.chain.Name()), zap.Error(chainErr))
		} else {
			p.lastChain = chainList
		}
	}
	if len(errs) == 0 {
		errs = nil
	}

	report := Diff(p.lastBackend, p.lastChain)
	if p.chain != nil && report.Divergent() {
		p.log.Info("pending queues diverge",
			zap.Int("onlyBackend", len(report.OnlyBackend)),
			zap.Int("onlyChain", len(report.OnlyChain)))
	}

	p.snap = Snapshot{
		Violations:   MergePendingViolations(p.lastBackend, p.lastChain),
		BackendCount: len(p.lastBackend),
		ChainCount:   len(p.lastChain),
		Divergence:   report,
		Errors:       errs,
		Seq:          seq,
		UpdatedAt:    time.Now().UTC(),
	}
	return true
}
