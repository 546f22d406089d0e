package diffsync

import (
	"context"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/harun/agentdiff/internal/observability"
	"github.com/harun/agentdiff/internal/tracing"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "agentdiff.diffsync"

// Options configures a Manager
type Options struct {
	// ResolveTimeout bounds document resolution. Zero means 5s.
	ResolveTimeout time.Duration
	// OnReconcile, if set, is called for every view after each reconciliation pass
	OnReconcile func(path string, view View, outcome Outcome)
}

// registration is the per-path view set and its document subscription
type registration struct {
	path         string
	views        []View
	subscription Subscription
	// token identifies the in-flight resolution, zero when none is pending
	token uint64
	// seq counts document events; stale reconciliation writes are dropped
	seq uint64
}

// Manager keeps registered views in sync with their live documents
type Manager struct {
	resolver      Resolver
	scheduler     Scheduler
	opts          Options
	registrations map[string]*registration
	nextToken     uint64
	closed        bool
	mu            sync.Mutex
}

// NewManager creates a Manager
func NewManager(resolver Resolver, scheduler Scheduler, opts Options) *Manager {
	observability.EnsureRegistered()

	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = 5 * time.Second
	}

	return &Manager{
		resolver:      resolver,
		scheduler:     scheduler,
		opts:          opts,
		registrations: make(map[string]*registration),
	}
}

// RegisterEditor adds view to the set previewing path. The first view for a
// path triggers resolution of its document and installation of a listener.
func (m *Manager) RegisterEditor(path string, view View) {
	path = filepath.Clean(path)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		log.Debug().Str("path", path).Msg("Ignoring registration on closed sync manager")
		return
	}

	reg, ok := m.registrations[path]
	if !ok {
		reg = &registration{path: path}
		m.registrations[path] = reg
	}
	if slices.Contains(reg.views, view) {
		m.mu.Unlock()
		return
	}
	reg.views = append(reg.views, view)
	observability.AddRegisteredViews(1)

	var token uint64
	if reg.subscription == nil && reg.token == 0 {
		m.nextToken++
		token = m.nextToken
		reg.token = token
	}
	m.mu.Unlock()

	if token != 0 {
		m.scheduler.Background(func(ctx context.Context) {
			m.resolve(ctx, path, token)
		})
	}
}

// UnregisterEditor removes view from the set previewing path. Removing the
// last view drops the registration and detaches its listener.
func (m *Manager) UnregisterEditor(path string, view View) {
	path = filepath.Clean(path)

	m.mu.Lock()
	reg, ok := m.registrations[path]
	if !ok {
		m.mu.Unlock()
		return
	}
	idx := slices.Index(reg.views, view)
	if idx < 0 {
		m.mu.Unlock()
		return
	}
	reg.views = slices.Delete(reg.views, idx, idx+1)
	observability.AddRegisteredViews(-1)

	var sub Subscription
	if len(reg.views) == 0 {
		delete(m.registrations, path)
		sub = reg.subscription
		reg.subscription = nil
		reg.token = 0
	}
	m.mu.Unlock()

	if sub != nil {
		m.scheduler.Background(func(ctx context.Context) {
			sub.Unsubscribe()
			observability.AddActiveSubscriptions(-1)
			log.Debug().Str("path", path).Msg("Document listener detached")
		})
	}
}

// resolve opens the document for path and hands installation to the foreground
func (m *Manager) resolve(ctx context.Context, path string, token uint64) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "diffsync.resolve", attribute.String("path", path))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, m.opts.ResolveTimeout)
	doc, err := m.resolver.Resolve(ctx, path)
	cancel()
	if err != nil {
		tracing.RecordError(span, err)
		log.Debug().Err(err).Str("path", path).Msg("Document resolution failed, preview will not sync")
		m.abandon(path, token)
		return
	}

	m.scheduler.Foreground(func(ctx context.Context) {
		m.install(path, token, doc)
	})
}

// abandon clears the pending resolution slot if token still owns it
func (m *Manager) abandon(path string, token uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if reg, ok := m.registrations[path]; ok && reg.token == token {
		reg.token = 0
	}
}

// install subscribes to doc unless the registration was emptied or
// superseded while the document was being resolved.
func (m *Manager) install(path string, token uint64, doc Document) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.registrations[path]
	if m.closed || !ok || reg.token != token || len(reg.views) == 0 || reg.subscription != nil {
		log.Debug().Str("path", path).Msg("Listener installation abandoned")
		return
	}

	reg.token = 0
	reg.subscription = doc.Subscribe(func(Event) {
		m.onChange(reg, doc)
	})
	observability.AddActiveSubscriptions(1)
	log.Debug().Str("path", path).Msg("Document listener installed")
}

// onChange schedules a reconciliation pass for reg
func (m *Manager) onChange(reg *registration, doc Document) {
	m.mu.Lock()
	if m.registrations[reg.path] != reg {
		m.mu.Unlock()
		return
	}
	reg.seq++
	seq := reg.seq
	m.mu.Unlock()

	m.scheduler.Background(func(ctx context.Context) {
		m.reconcile(ctx, reg, doc, seq)
	})
}

// reconcile re-applies each view's edit to the live text, in registration order
func (m *Manager) reconcile(ctx context.Context, reg *registration, doc Document, seq uint64) {
	m.mu.Lock()
	if m.registrations[reg.path] != reg {
		m.mu.Unlock()
		return
	}
	views := slices.Clone(reg.views)
	m.mu.Unlock()

	live := doc.Text()
	for _, view := range views {
		if ctx.Err() != nil {
			return
		}

		reconciled, outcome := reconcileView(view, live)
		if outcome == OutcomeApplied {
			m.scheduler.Foreground(func(ctx context.Context) {
				if !m.current(reg, seq) {
					return
				}
				view.SetRight(reconciled)
				view.Rediff()
			})
		}

		observability.RecordReconcile(string(outcome))
		if m.opts.OnReconcile != nil {
			m.opts.OnReconcile(reg.path, view, outcome)
		}
	}
}

// current reports whether seq is the latest event of a live registration
func (m *Manager) current(reg *registration, seq uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registrations[reg.path] == reg && reg.seq == seq
}

// Registered returns the number of views registered for path
func (m *Manager) Registered(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if reg, ok := m.registrations[filepath.Clean(path)]; ok {
		return len(reg.views)
	}
	return 0
}

// Subscribed reports whether a document listener is installed for path
func (m *Manager) Subscribed(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.registrations[filepath.Clean(path)]
	return ok && reg.subscription != nil
}

// Close drops every registration and detaches all listeners
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true

	var subs []Subscription
	views := 0
	for path, reg := range m.registrations {
		views += len(reg.views)
		if reg.subscription != nil {
			subs = append(subs, reg.subscription)
		}
		delete(m.registrations, path)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	observability.AddActiveSubscriptions(-len(subs))
	observability.AddRegisteredViews(-views)

	log.Debug().Int("subscriptions", len(subs)).Msg("Sync manager closed")
	return nil
}
