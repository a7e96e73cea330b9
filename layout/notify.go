package layout

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Notifier polls the layout database for changes and fans a refresh signal
// out to subscribers. Editor sessions subscribe so concurrent edits to the
// same store surface without manual reloads.
//
// Change detection uses PRAGMA data_version, which advances whenever another
// connection commits a write.
type Notifier struct {
	db       *sql.DB
	interval time.Duration
	debounce time.Duration
	detect   ChangeDetector
	logger   *slog.Logger

	version atomic.Int64

	mu     sync.Mutex
	subs   map[int]chan struct{}
	nextID int
}

// ChangeDetector reads a version token; two calls returning different values
// mean "something changed". The default reads PRAGMA data_version, which only
// advances on commits from other connections, so the notifier must watch
// through its own *sql.DB.
type ChangeDetector func(ctx context.Context, db *sql.DB) (int64, error)

// NotifierOptions tunes the polling loop.
type NotifierOptions struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a detected change before
	// subscribers are signalled. 0 signals immediately.
	Debounce time.Duration
	// Detector overrides the PRAGMA data_version default.
	Detector ChangeDetector
	Logger   *slog.Logger
}

// NewNotifier creates a Notifier. Call Run to start polling.
func NewNotifier(db *sql.DB, opts NotifierOptions) *Notifier {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Detector == nil {
		opts.Detector = pragmaDataVersion
	}
	return &Notifier{
		db:       db,
		interval: opts.Interval,
		debounce: opts.Debounce,
		detect:   opts.Detector,
		logger:   opts.Logger,
		subs:     make(map[int]chan struct{}),
	}
}

// Subscribe returns a channel that receives one signal per detected change
// burst, and a cancel func releasing the subscription. The channel has a
// buffer of one; signals arriving while a previous one is unconsumed merge.
func (n *Notifier) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.mu.Unlock()
	return ch, func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// Run blocks until ctx is cancelled, polling at the configured interval and
// signalling subscribers when the database version advances.
func (n *Notifier) Run(ctx context.Context) {
	if v, err := n.detect(ctx, n.db); err == nil {
		n.version.Store(v)
	} else {
		n.logger.Warn("notifier: initial version check failed", "error", err)
	}

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	pending := int64(-1)

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-ticker.C:
			cur, err := n.detect(ctx, n.db)
			if err != nil {
				n.logger.Warn("notifier: version check failed", "error", err)
				continue
			}
			if cur != n.version.Load() && cur != pending {
				pending = cur
				if n.debounce <= 0 {
					n.signal(pending)
					pending = -1
				} else {
					if debounceTimer != nil {
						debounceTimer.Stop()
					}
					debounceTimer = time.NewTimer(n.debounce)
					debounceCh = debounceTimer.C
				}
			}

		case <-debounceCh:
			debounceCh = nil
			if pending >= 0 {
				n.signal(pending)
				pending = -1
			}
		}
	}
}

func (n *Notifier) signal(version int64) {
	n.version.Store(version)
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	n.logger.Debug("notifier: refresh signalled", "version", version, "subscribers", len(n.subs))
}

func pragmaDataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}
