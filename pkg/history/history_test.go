package history

import (
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// recorder collects pop events.
type recorder struct {
	mu     sync.Mutex
	events []PopEvent
}

func (r *recorder) listen(ev PopEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) all() []PopEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PopEvent(nil), r.events...)
}

func TestMemoryPushReplaceGo(t *testing.T) {
	m := NewMemory()
	rec := &recorder{}
	unlisten := m.Listen(rec.listen)

	m.Push("/a", map[string]any{"n": 1})
	m.Push("/b", nil)
	m.Replace("/c", nil)

	if m.Location() != "/c" || m.Len() != 3 {
		t.Fatalf("location = %q len = %d", m.Location(), m.Len())
	}
	if len(rec.all()) != 0 {
		t.Error("push and replace must not notify listeners")
	}

	m.Back()
	if m.Location() != "/a" {
		t.Errorf("after Back location = %q", m.Location())
	}
	if diff := cmp.Diff(map[string]any{"n": int64(1)}, m.State()); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}

	m.Go(5, true) // out of range: no-op
	m.Go(-5, true)
	if m.Location() != "/a" {
		t.Errorf("out-of-range Go moved to %q", m.Location())
	}

	m.Forward()
	events := rec.all()
	want := []PopEvent{
		{To: "/a", From: "/c", State: map[string]any{"n": int64(1)}, Delta: -1, Type: NavigationPop, Direction: DirectionBack},
		{To: "/c", From: "/a", Delta: 1, Type: NavigationPop, Direction: DirectionForward},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	m.Go(-1, false)
	if len(rec.all()) != 2 {
		t.Error("silent Go must not notify")
	}

	unlisten()
	m.Forward()
	if len(rec.all()) != 2 {
		t.Error("unlistened listener was notified")
	}
}

func TestMemoryPushTruncatesForward(t *testing.T) {
	m := NewMemory()
	m.Push("/a", nil)
	m.Push("/b", nil)
	m.Go(-1, false)
	m.Push("/c", nil)

	snap := m.Snapshot()
	var locs []string
	for _, e := range snap.Entries {
		locs = append(locs, e.Location)
	}
	if diff := cmp.Diff([]string{"/", "/a", "/c"}, locs); diff != "" {
		t.Errorf("stack mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryCap(t *testing.T) {
	m := NewMemory(WithMemoryCap(3))
	for _, p := range []string{"/1", "/2", "/3", "/4"} {
		m.Push(p, nil)
	}
	snap := m.Snapshot()
	if len(snap.Entries) != 3 || snap.Entries[0].Location != "/2" {
		t.Fatalf("entries = %+v", snap.Entries)
	}
	if snap.Position != 2 || m.Location() != "/4" {
		t.Errorf("position = %d location = %q", snap.Position, m.Location())
	}
}

func TestMemoryRestore(t *testing.T) {
	m := NewMemory(WithMemoryCap(2), WithMemoryBase("/app/"))
	m.Restore(Snapshot{
		Entries:  []Entry{{Location: "/x"}, {Location: "/y"}, {Location: "z", State: map[string]any{"k": "v"}}},
		Position: 5,
	})
	if m.Location() != "/z" || m.Position() != 1 || m.Len() != 2 {
		t.Errorf("location = %q position = %d len = %d", m.Location(), m.Position(), m.Len())
	}
	if got := m.CreateHref("/z"); got != "/app/z" {
		t.Errorf("CreateHref = %q", got)
	}
}

func TestMemoryDestroy(t *testing.T) {
	m := NewMemory()
	rec := &recorder{}
	m.Listen(rec.listen)
	m.Push("/a", nil)
	m.Destroy()

	if err := m.Push("/b", nil); err != ErrDestroyed {
		t.Errorf("Push after Destroy = %v, want ErrDestroyed", err)
	}
	m.Back()
	if len(rec.all()) != 0 {
		t.Error("destroyed history notified listeners")
	}
}

func TestBrowserHistory(t *testing.T) {
	p := NewSimPlatform("/app/start?x=1", true)
	b, err := NewBrowser(p, WithBase("/app"))
	if err != nil {
		t.Fatalf("NewBrowser: %v", err)
	}
	if b.Location() != "/start?x=1" {
		t.Fatalf("initial location = %q", b.Location())
	}

	rec := &recorder{}
	b.Listen(rec.listen)

	if err := b.Push("/users/1", map[string]any{"fn": func() {}, "ok": true}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if p.URL() != "/app/users/1" {
		t.Errorf("platform URL = %q", p.URL())
	}
	if diff := cmp.Diff(map[string]any{"ok": true}, b.State()); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
	b.Push("/users/2", nil)

	p.Back()
	p.Back()
	events := rec.all()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].To != "/users/1" || events[0].Delta != -1 || events[0].Direction != DirectionBack {
		t.Errorf("first pop = %+v", events[0])
	}
	if events[1].To != "/start?x=1" || events[1].From != "/users/1" {
		t.Errorf("second pop = %+v", events[1])
	}

	// A silent traversal updates the location without notifying.
	b.Go(2, false)
	if b.Location() != "/users/2" {
		t.Errorf("location after silent Go = %q", b.Location())
	}
	if len(rec.all()) != 2 {
		t.Error("silent Go notified listeners")
	}

	if got := b.CreateHref("/a"); got != "/app/a" {
		t.Errorf("CreateHref = %q", got)
	}

	b.Destroy()
	if p.Subscribers() != 0 {
		t.Errorf("Destroy left %d platform subscriptions", p.Subscribers())
	}
}

func TestBrowserRequiresHistoryAPI(t *testing.T) {
	if _, err := NewBrowser(NewSimPlatform("/", false)); err == nil {
		t.Error("expected error without a history API")
	}
}

func TestBrowserCoalescesReentrantPops(t *testing.T) {
	p := NewSimPlatform("/", true)
	b, _ := NewBrowser(p)
	for _, loc := range []string{"/1", "/2", "/3", "/4"} {
		b.Push(loc, nil)
	}

	var mu sync.Mutex
	var seen []string
	first := true
	b.Listen(func(ev PopEvent) {
		mu.Lock()
		seen = append(seen, ev.To)
		reenter := first
		first = false
		mu.Unlock()
		if reenter {
			// Two more pops land while this one is being handled.
			p.Back()
			p.Back()
		}
	})

	p.Back()

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([]string{"/3", "/1"}, seen); diff != "" {
		t.Errorf("pops mismatch (-want +got):\n%s", diff)
	}
	if b.Location() != "/1" {
		t.Errorf("location = %q", b.Location())
	}
}

func TestHashHistoryNative(t *testing.T) {
	p := NewSimPlatform("/", true)
	h := NewHash(p)
	if h.Location() != "/" {
		t.Fatalf("initial location = %q", h.Location())
	}

	h.Push("/users?tab=1", nil)
	if p.URL() != "/#/users?tab=1" {
		t.Errorf("platform URL = %q", p.URL())
	}
	if got := h.CreateHref("/x"); got != "/#/x" {
		t.Errorf("CreateHref = %q", got)
	}

	rec := &recorder{}
	h.Listen(rec.listen)
	p.Back()
	if events := rec.all(); len(events) != 1 || events[0].To != "/" {
		t.Errorf("events = %+v", events)
	}
}

func TestHashHistoryFallback(t *testing.T) {
	p := NewSimPlatform("/index.html", false)
	h := NewHash(p, WithBase("/index.html"))
	rec := &recorder{}
	h.Listen(rec.listen)

	h.Push("/a", map[string]any{"k": "v"})
	h.Push("/b", nil)
	if p.URL() != "/index.html#/b" {
		t.Errorf("platform URL = %q", p.URL())
	}
	if len(rec.all()) != 0 {
		t.Error("own fragment changes must not notify")
	}

	p.Back()
	events := rec.all()
	if len(events) != 1 || events[0].To != "/a" || events[0].From != "/b" {
		t.Fatalf("events = %+v", events)
	}
	if diff := cmp.Diff(map[string]any{"k": "v"}, h.State()); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}

	h.Go(1, false)
	if len(rec.all()) != 1 || h.Location() != "/b" {
		t.Error("silent Go should update location without notifying")
	}

	// A user-typed fragment is reported as a pop.
	p.Navigate("/index.html#/typed")
	if events := rec.all(); len(events) != 2 || events[1].To != "/typed" {
		t.Errorf("events = %+v", events)
	}
}

func TestSanitize(t *testing.T) {
	type point struct{ X int }
	cyclic := map[string]any{"name": "loop"}
	cyclic["self"] = cyclic
	shared := []any{"s"}

	in := map[string]any{
		"str":    "v",
		"int":    7,
		"float":  1.5,
		"nan":    math.NaN(),
		"bool":   true,
		"nil":    nil,
		"fn":     func() {},
		"ch":     make(chan int),
		"struct": point{X: 1},
		"list":   []any{1, func() {}, "x"},
		"intkey": map[int]string{1: "a"},
		"nested": map[string]any{"deep": map[string]string{"k": "v"}},
		"cyclic": cyclic,
		"a":      shared,
		"b":      shared,
		"ptr":    &[]string{"p"},
	}
	want := map[string]any{
		"str":    "v",
		"int":    int64(7),
		"float":  1.5,
		"bool":   true,
		"nil":    nil,
		"list":   []any{int64(1), nil, "x"},
		"nested": map[string]any{"deep": map[string]any{"k": "v"}},
		"cyclic": map[string]any{"name": "loop"},
		"a":      []any{"s"},
		"b":      []any{"s"},
		"ptr":    []any{"p"},
	}
	if diff := cmp.Diff(want, Sanitize(in, 0)); diff != "" {
		t.Errorf("Sanitize mismatch (-want +got):\n%s", diff)
	}
}

func TestSanitizeDepth(t *testing.T) {
	in := map[string]any{"l1": map[string]any{"l2": map[string]any{"l3": "x"}}}
	got := Sanitize(in, 1)
	want := map[string]any{"l1": map[string]any{}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Sanitize depth mismatch (-want +got):\n%s", diff)
	}
	if Sanitize(nil, 0) != nil {
		t.Error("Sanitize(nil) should be nil")
	}
}

func TestNormalizeBase(t *testing.T) {
	tests := map[string]string{
		"":      "",
		"/":     "",
		"app":   "/app",
		"/app/": "/app",
	}
	for in, want := range tests {
		if got := NormalizeBase(in); got != want {
			t.Errorf("NormalizeBase(%q) = %q, want %q", in, got, want)
		}
	}
}
