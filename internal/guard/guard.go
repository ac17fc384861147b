package guard

import (
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Config controls attempt counting and block duration. Non-positive values
// fall back to the defaults.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	Block       time.Duration
}

// Default guard settings
const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
	DefaultBlock       = 60 * time.Minute
)

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Block <= 0 {
		c.Block = DefaultBlock
	}
	return c
}

// Decision is the admission-control outcome for one request
type Decision struct {
	Blocked      bool
	Count        int // attempts in the current window, including this one
	RetryAfter   time.Duration
	BlockedUntil time.Time
}

// AttemptInfo describes the caller's standing within the current window
type AttemptInfo struct {
	Current   int       `json:"current"`
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetAt   time.Time `json:"resetAt"`
}

// BlockInfo is the administrative view of one active block
type BlockInfo struct {
	Key            string    `json:"key"`
	IP             string    `json:"ip"`
	UserAgent      string    `json:"userAgent"`
	Route          string    `json:"route"`
	BlockedUntil   time.Time `json:"blockedUntil"`
	RemainingMs    int64     `json:"remainingMs"`
	LastIdentity   string    `json:"lastIdentity,omitempty"`
	FirstBlockedAt time.Time `json:"firstBlockedAt"`
	LastAttemptAt  time.Time `json:"lastAttemptAt"`
}

// BlockReporter receives a best-effort notification when a client crosses the
// attempt ceiling. Implementations must never fail the caller.
type BlockReporter interface {
	ReportBlock(ip, userAgent, route, identity string)
}

type attemptWindow struct {
	start time.Time
	count int
}

type blockRecord struct {
	blockedUntil   time.Time
	lastIdentity   string
	firstBlockedAt time.Time
	lastAttemptAt  time.Time
}

// Guard is the in-memory admission-control layer for authentication routes.
// State is deliberately process-local: a restart is an acceptable, bounded
// reset of protection state.
type Guard struct {
	mu       sync.Mutex
	cfg      Config
	attempts map[string]*attemptWindow
	blocks   map[string]*blockRecord
	reporter BlockReporter
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Guard with the given configuration
func New(cfg Config, logger *slog.Logger) *Guard {
	return &Guard{
		cfg:      cfg.withDefaults(),
		attempts: make(map[string]*attemptWindow),
		blocks:   make(map[string]*blockRecord),
		logger:   logger,
		now:      time.Now,
	}
}

// SetReporter attaches the best-effort block reporter. Optional; without it
// blocks still take effect, they just go unreported.
func (g *Guard) SetReporter(r BlockReporter) {
	g.reporter = r
}

// Config returns the effective guard configuration
func (g *Guard) Config() Config {
	return g.cfg
}

// CheckAndTrack decides whether a request is admitted and records the attempt.
// Total over its inputs; it never fails.
func (g *Guard) CheckAndTrack(r *http.Request) Decision {
	key, _ := KeyForRequest(r)
	// The body peek happens before the lock: a client trickling its body in
	// must never hold up admission for everyone else
	identity := IdentityFromRequest(r)

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()

	if rec, ok := g.blocks[key]; ok {
		if rec.blockedUntil.After(now) {
			rec.lastAttemptAt = now
			if identity != "" {
				rec.lastIdentity = identity
			}
			return Decision{
				Blocked:      true,
				RetryAfter:   rec.blockedUntil.Sub(now),
				BlockedUntil: rec.blockedUntil,
			}
		}
		// Expired block: evict lazily and start the client on a fresh window
		delete(g.blocks, key)
		delete(g.attempts, key)
	}

	w, ok := g.attempts[key]
	if !ok || now.After(w.start.Add(g.cfg.Window)) {
		w = &attemptWindow{start: now, count: 0}
		g.attempts[key] = w
	}
	w.count++

	return Decision{Count: w.count}
}

// OnLimitExceeded records a block for the request's client. Re-blocking keeps
// the original firstBlockedAt. The audit notification is best-effort and can
// never prevent the block from taking effect.
func (g *Guard) OnLimitExceeded(r *http.Request) {
	key, parts := KeyForRequest(r)
	identity := IdentityFromRequest(r)

	g.mu.Lock()
	now := g.now()
	rec := &blockRecord{
		blockedUntil:   now.Add(g.cfg.Block),
		lastIdentity:   identity,
		firstBlockedAt: now,
		lastAttemptAt:  now,
	}
	if prev, ok := g.blocks[key]; ok {
		rec.firstBlockedAt = prev.firstBlockedAt
		if identity == "" {
			rec.lastIdentity = prev.lastIdentity
		}
	}
	g.blocks[key] = rec
	g.mu.Unlock()

	g.logger.Warn("client blocked",
		slog.String("ip", parts.IP),
		slog.String("route", parts.Route),
		slog.Time("blocked_until", rec.blockedUntil),
	)

	if g.reporter != nil {
		g.reporter.ReportBlock(parts.IP, parts.UserAgent, parts.Route, identity)
	}
}

// AttemptInfo reports the current standing for a client key. Unknown keys
// behave as zero attempts.
func (g *Guard) AttemptInfo(ip, userAgent, route string) AttemptInfo {
	key := Key(ip, userAgent, route)

	g.mu.Lock()
	defer g.mu.Unlock()

	info := AttemptInfo{Limit: g.cfg.MaxAttempts, Remaining: g.cfg.MaxAttempts}

	w, ok := g.attempts[key]
	if !ok {
		return info
	}

	now := g.now()
	resetAt := w.start.Add(g.cfg.Window)
	if now.After(resetAt) {
		return info
	}

	info.Current = w.count
	info.ResetAt = resetAt
	if remaining := g.cfg.MaxAttempts - w.count; remaining > 0 {
		info.Remaining = remaining
	} else {
		info.Remaining = 0
	}
	return info
}

// ActiveBlocks returns every block whose expiry is still in the future.
// No ordering guarantee; callers sort if they need one.
func (g *Guard) ActiveBlocks() []BlockInfo {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	blocks := make([]BlockInfo, 0, len(g.blocks))
	for key, rec := range g.blocks {
		if !rec.blockedUntil.After(now) {
			continue
		}
		parts := SplitKey(key)
		blocks = append(blocks, BlockInfo{
			Key:            key,
			IP:             parts.IP,
			UserAgent:      parts.UserAgent,
			Route:          parts.Route,
			BlockedUntil:   rec.blockedUntil,
			RemainingMs:    rec.blockedUntil.Sub(now).Milliseconds(),
			LastIdentity:   rec.lastIdentity,
			FirstBlockedAt: rec.firstBlockedAt,
			LastAttemptAt:  rec.lastAttemptAt,
		})
	}
	return blocks
}

// ClearBlock removes a block by its composite key and reports whether one
// existed. The attempt window is reset too, so the next attempt is admitted
// on a clean slate.
func (g *Guard) ClearBlock(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, existed := g.blocks[key]
	delete(g.blocks, key)
	delete(g.attempts, key)
	return existed
}

// ClearBlockParts removes a block addressed by its discrete parts
func (g *Guard) ClearBlockParts(ip, userAgent, route string) bool {
	return g.ClearBlock(Key(ip, userAgent, route))
}

// ClearForRequest lifts any block for the requesting client. Invoked on
// successful login so a just-authenticated user is not left waiting out a
// stale block.
func (g *Guard) ClearForRequest(r *http.Request) bool {
	key, _ := KeyForRequest(r)
	return g.ClearBlock(key)
}

// SweepExpired removes every expired block record and returns how many were
// dropped. Correctness never depends on the sweep; lazy eviction on lookup
// already guarantees it. This only bounds memory for clients that never retry.
func (g *Guard) SweepExpired() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := 0
	for key, rec := range g.blocks {
		if !rec.blockedUntil.After(now) {
			delete(g.blocks, key)
			removed++
		}
	}
	return removed
}
