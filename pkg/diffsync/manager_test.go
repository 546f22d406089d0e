package diffsync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcomeLog struct {
	entries []Outcome
	views   []View
	mu      sync.Mutex
}

func (l *outcomeLog) record(path string, view View, outcome Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, outcome)
	l.views = append(l.views, view)
}

func (l *outcomeLog) outcomes() []Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Outcome(nil), l.entries...)
}

const testPath = "/repo/main.go"

func TestManager_ReconcilesOnDocumentChange(t *testing.T) {
	resolver := newFakeResolver()
	doc := newFakeDocument("a := 1\nb := 2\n")
	resolver.add(testPath, doc)
	log := &outcomeLog{}
	m := NewManager(resolver, inlineScheduler{}, Options{OnReconcile: log.record})
	defer m.Close()

	view := newPreview("a := 1\nb := 2\n", "a := 1\nb := 3\n", "b := 2", "b := 3")
	m.RegisterEditor(testPath, view)
	require.True(t, m.Subscribed(testPath))

	doc.set("x := 0\na := 1\nb := 2\n")

	assert.Equal(t, "x := 0\na := 1\nb := 3\n", view.Right())
	assert.Equal(t, 1, view.rediffCount())
	assert.Equal(t, []Outcome{OutcomeApplied}, log.outcomes())
}

func TestManager_RegisterThenUnregisterLeavesNoSubscription(t *testing.T) {
	resolver := newFakeResolver()
	doc := newFakeDocument("a")
	resolver.add(testPath, doc)
	sched := &manualScheduler{}
	log := &outcomeLog{}
	m := NewManager(resolver, sched, Options{OnReconcile: log.record})
	defer m.Close()

	view := newPreview("a", "b", "a", "b")
	m.RegisterEditor(testPath, view)
	m.UnregisterEditor(testPath, view)
	sched.drain()

	assert.Equal(t, 0, doc.listenerCount())
	assert.False(t, m.Subscribed(testPath))
	assert.Equal(t, 0, m.Registered(testPath))

	doc.set("z\na")
	sched.drain()
	assert.Empty(t, log.outcomes())
	assert.Equal(t, "b", view.Right())
}

func TestManager_UnregisterDetachesAfterInstall(t *testing.T) {
	resolver := newFakeResolver()
	doc := newFakeDocument("a")
	resolver.add(testPath, doc)
	sched := &manualScheduler{}
	log := &outcomeLog{}
	m := NewManager(resolver, sched, Options{OnReconcile: log.record})
	defer m.Close()

	view := newPreview("a", "b", "a", "b")
	m.RegisterEditor(testPath, view)
	sched.drain()
	require.Equal(t, 1, doc.listenerCount())

	m.UnregisterEditor(testPath, view)

	// An event before the asynchronous detach has no effect
	doc.set("q\na")
	sched.drain()

	assert.Equal(t, 0, doc.listenerCount())
	assert.Empty(t, log.outcomes())
}

func TestManager_OneSubscriptionPerPath(t *testing.T) {
	resolver := newFakeResolver()
	doc := newFakeDocument("a")
	resolver.add(testPath, doc)
	m := NewManager(resolver, inlineScheduler{}, Options{})
	defer m.Close()

	first := newPreview("a", "b", "a", "b")
	second := newPreview("a", "c", "a", "c")
	m.RegisterEditor(testPath, first)
	m.RegisterEditor(testPath, second)
	m.RegisterEditor(testPath, second)

	assert.Equal(t, 2, m.Registered(testPath))
	assert.Equal(t, 1, doc.listenerCount())
	assert.Equal(t, 1, resolver.callCount())

	m.UnregisterEditor(testPath, first)
	assert.True(t, m.Subscribed(testPath))
	assert.Equal(t, 1, doc.listenerCount())

	m.UnregisterEditor(testPath, second)
	assert.False(t, m.Subscribed(testPath))
	assert.Equal(t, 0, doc.listenerCount())
}

func TestManager_ViewsReconciledInRegistrationOrder(t *testing.T) {
	resolver := newFakeResolver()
	doc := newFakeDocument("one\ntwo\n")
	resolver.add(testPath, doc)
	log := &outcomeLog{}
	m := NewManager(resolver, inlineScheduler{}, Options{OnReconcile: log.record})
	defer m.Close()

	views := []*previewView{
		newPreview("one\ntwo\n", "ONE\ntwo\n", "one", "ONE"),
		newPreview("same", "same", "", ""),
		newPreview("one\ntwo\n", "one\nTWO\n", "gone", "TWO"),
	}
	for _, v := range views {
		m.RegisterEditor(testPath, v)
	}

	doc.set("zero\none\ntwo\n")

	assert.Equal(t, []Outcome{OutcomeApplied, OutcomeConverged, OutcomeAnchorMissing}, log.outcomes())
	require.Len(t, log.views, 3)
	for i, v := range views {
		assert.Same(t, v, log.views[i])
	}
	assert.Equal(t, "zero\nONE\ntwo\n", views[0].Right())
	assert.Equal(t, "one\nTWO\n", views[2].Right())
}

func TestManager_ResolutionFailureIsSilentAndRetried(t *testing.T) {
	resolver := newFakeResolver()
	m := NewManager(resolver, inlineScheduler{}, Options{})
	defer m.Close()

	first := newPreview("a", "b", "a", "b")
	m.RegisterEditor(testPath, first)
	assert.False(t, m.Subscribed(testPath))
	assert.Equal(t, 1, m.Registered(testPath))

	doc := newFakeDocument("a")
	resolver.add(testPath, doc)
	m.RegisterEditor(testPath, newPreview("a", "c", "a", "c"))

	assert.Equal(t, 2, resolver.callCount())
	assert.True(t, m.Subscribed(testPath))
	assert.Equal(t, 1, doc.listenerCount())
}

func TestManager_SupersededResolutionIsAbandoned(t *testing.T) {
	resolver := newFakeResolver()
	doc := newFakeDocument("a")
	resolver.add(testPath, doc)
	sched := &manualScheduler{}
	m := NewManager(resolver, sched, Options{})
	defer m.Close()

	v1 := newPreview("a", "b", "a", "b")
	v2 := newPreview("a", "c", "a", "c")
	m.RegisterEditor(testPath, v1)
	m.UnregisterEditor(testPath, v1)
	m.RegisterEditor(testPath, v2)

	// Both resolutions complete; only the live one installs
	sched.drain()

	assert.Equal(t, 2, resolver.callCount())
	assert.Equal(t, 1, doc.listenerCount())
	assert.True(t, m.Subscribed(testPath))
}

func TestManager_WritesDroppedAfterUnregister(t *testing.T) {
	resolver := newFakeResolver()
	doc := newFakeDocument("a")
	resolver.add(testPath, doc)
	sched := &manualScheduler{}
	m := NewManager(resolver, sched, Options{})
	defer m.Close()

	view := newPreview("a", "b", "a", "b")
	m.RegisterEditor(testPath, view)
	sched.drain()

	doc.set("new\na")
	sched.runBackground()
	m.UnregisterEditor(testPath, view)
	sched.drain()

	assert.Equal(t, "b", view.Right())
	assert.Equal(t, 0, view.rediffCount())
}

func TestManager_StaleWritesDropped(t *testing.T) {
	resolver := newFakeResolver()
	doc := newFakeDocument("a")
	resolver.add(testPath, doc)
	sched := &manualScheduler{}
	m := NewManager(resolver, sched, Options{})
	defer m.Close()

	view := newPreview("a", "b", "a", "b")
	m.RegisterEditor(testPath, view)
	sched.drain()

	doc.set("first\na")
	sched.runBackground()
	doc.set("second\na")
	sched.drain()

	assert.Equal(t, "second\nb", view.Right())
	assert.Equal(t, 1, view.rediffCount())
}

func TestManager_Close(t *testing.T) {
	resolver := newFakeResolver()
	docA := newFakeDocument("a")
	docB := newFakeDocument("b")
	resolver.add("/a", docA)
	resolver.add("/b", docB)
	m := NewManager(resolver, inlineScheduler{}, Options{})

	m.RegisterEditor("/a", newPreview("a", "x", "a", "x"))
	m.RegisterEditor("/b", newPreview("b", "y", "b", "y"))
	require.Equal(t, 1, docA.listenerCount())

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.Equal(t, 0, docA.listenerCount())
	assert.Equal(t, 0, docB.listenerCount())
	assert.Equal(t, 0, m.Registered("/a"))

	m.RegisterEditor("/a", newPreview("a", "x", "a", "x"))
	assert.Equal(t, 0, m.Registered("/a"))
	assert.Equal(t, 0, docA.listenerCount())
}
