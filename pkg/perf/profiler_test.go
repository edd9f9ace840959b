package perf

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/psantana5/perfpro/pkg/logging"
	"github.com/psantana5/perfpro/pkg/markstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock only moves when told to
type manualClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *manualClock) read() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}

func newTestStore() (*markstore.MemoryStore, *manualClock) {
	c := &manualClock{}
	return markstore.NewMemoryStore(markstore.WithClock(c.read)), c
}

func names(ds []MarkDuration) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Name
	}
	return out
}

func TestNew_DefaultApp(t *testing.T) {
	assert.Equal(t, DefaultApp, New("").App())
	assert.Equal(t, "api", New("api").App())
}

func TestNew_UsesDefaultStore(t *testing.T) {
	app := "default-store-test"
	p1 := New(app)
	p2 := New(app)
	t.Cleanup(p1.ClearAll)

	p1.Mark("x")

	_, ok := p2.Duration("x")
	assert.True(t, ok, "profilers without WithStore share the process store")
}

func TestDuration_NeverMarked(t *testing.T) {
	s, _ := newTestStore()
	p := New("t", WithStore(s))

	d, ok := p.Duration("notexists")
	assert.False(t, ok)
	assert.Zero(t, d)
}

func TestDuration_OpenInterval(t *testing.T) {
	s, clock := newTestStore()
	p := New("t", WithStore(s))

	clock.advance(5 * time.Millisecond)
	p.Mark("a")

	clock.advance(10 * time.Millisecond)
	d1, ok := p.Duration("a")
	require.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, d1)

	clock.advance(7 * time.Millisecond)
	d2, _ := p.Duration("a")
	assert.Equal(t, 17*time.Millisecond, d2)
	assert.GreaterOrEqual(t, d2, d1)
}

func TestDuration_ClosedIntervalIsFrozen(t *testing.T) {
	s, clock := newTestStore()
	p := New("t", WithStore(s))

	p.Mark("a")
	clock.advance(50 * time.Millisecond)
	p.Mark("a")

	clock.advance(time.Hour)
	d, ok := p.Duration("a")
	require.True(t, ok)
	assert.Equal(t, 50*time.Millisecond, d)
}

func TestDuration_ThirdMarkMovesEnd(t *testing.T) {
	s, clock := newTestStore()
	p := New("t", WithStore(s))

	p.Mark("a")
	clock.advance(50 * time.Millisecond)
	p.Mark("a")
	clock.advance(30 * time.Millisecond)
	p.Mark("a")

	d, _ := p.Duration("a")
	assert.Equal(t, 80*time.Millisecond, d, "first and latest mark bound the interval")
}

func TestDuration_WallClock(t *testing.T) {
	p := New("t", WithStore(markstore.NewMemoryStore()))

	p.Mark("a")
	time.Sleep(50 * time.Millisecond)
	p.Mark("a")

	d, ok := p.Duration("a")
	require.True(t, ok)
	assert.GreaterOrEqual(t, d, 50*time.Millisecond)
	assert.Less(t, d, 2*time.Second)
}

func TestDuration_UnnamedBucket(t *testing.T) {
	s, clock := newTestStore()
	p := New("t", WithStore(s))

	p.Mark("")
	clock.advance(time.Second)

	d, ok := p.Duration("")
	require.True(t, ok)
	assert.Equal(t, time.Second, d)
}

func TestSameNamespaceEquivalence(t *testing.T) {
	s, clock := newTestStore()
	p1 := New("test", WithStore(s))
	p2 := New("test", WithStore(s))

	p1.Mark("start")
	clock.advance(time.Millisecond)
	p1.Mark("wait1")
	clock.advance(3 * time.Millisecond)
	p1.Mark("wait1")
	p2.Mark("wait4")
	clock.advance(2 * time.Millisecond)
	p2.Mark("wait4")

	d1, _ := p1.Duration("wait1")
	d2, _ := p2.Duration("wait1")
	assert.Equal(t, d1, d2)

	d1, _ = p1.Duration("wait4")
	d2, _ = p2.Duration("wait4")
	assert.Equal(t, 2*time.Millisecond, d1)
	assert.Equal(t, d1, d2)

	assert.Equal(t, p1.AllDurations(nil, nil), p2.AllDurations(nil, nil))
	assert.Equal(t, p1.AllDurations(nil, []string{"start"}), p2.AllDurations(nil, []string{"start"}))
}

func TestDifferentNamespacesAreIsolated(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"distinct", "one", "two"},
		{"prefix", "a", "ab"},
		{"bracket", "a", "a] b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore()
			pa := New(tt.a, WithStore(s))
			pb := New(tt.b, WithStore(s))

			// as "[app] name" text, a + "b] c" and "a] b" + "c" are the same string
			pa.Mark("b] c")
			pb.Mark("c")

			assert.Equal(t, []string{"b] c"}, names(pa.AllDurations(nil, nil)))
			assert.Equal(t, []string{"c"}, names(pb.AllDurations(nil, nil)))

			_, ok := pa.Duration("c")
			assert.False(t, ok)

			pb.ClearAll()
			_, ok = pa.Duration("b] c")
			assert.True(t, ok, "clearing one namespace leaves the other alone")
		})
	}
}

func TestAllDurations_OrderOfFirstAppearance(t *testing.T) {
	s, _ := newTestStore()
	p := New("t", WithStore(s))

	p.Mark("c")
	p.Mark("a")
	p.Mark("c")
	p.Mark("b")
	p.Mark("a")

	assert.Equal(t, []string{"c", "a", "b"}, p.Names())
	assert.Equal(t, []string{"c", "a", "b"}, names(p.AllDurations(nil, nil)))
}

func TestAllDurations_LimitAndOmit(t *testing.T) {
	s, clock := newTestStore()
	p := New("t", WithStore(s))

	for _, n := range []string{"start", "a", "b", "c"} {
		p.Mark(n)
		clock.advance(time.Millisecond)
		p.Mark(n)
	}

	tests := []struct {
		name  string
		limit []string
		omit  []string
		want  []string
	}{
		{"all", nil, nil, []string{"start", "a", "b", "c"}},
		{"limit", []string{"a", "b"}, nil, []string{"a", "b"}},
		{"limit with unknown", []string{"a", "missing"}, nil, []string{"a"}},
		{"omit", nil, []string{"a"}, []string{"start", "b", "c"}},
		{"limit then omit", []string{"a", "b"}, []string{"b"}, []string{"a"}},
		{"empty limit selects nothing", []string{}, nil, []string{}},
		{"empty omit drops nothing", nil, []string{}, []string{"start", "a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(p.AllDurations(tt.limit, tt.omit)))
		})
	}
}

func TestAllDurations_Values(t *testing.T) {
	s, clock := newTestStore()
	p := New("t", WithStore(s))

	p.Mark("closed")
	p.Mark("open")
	clock.advance(20 * time.Millisecond)
	p.Mark("closed")
	clock.advance(5 * time.Millisecond)

	got := p.AllDurations(nil, nil)
	require.Len(t, got, 2)
	assert.Equal(t, MarkDuration{Name: "closed", Duration: 20 * time.Millisecond}, got[0])
	assert.Equal(t, MarkDuration{Name: "open", Duration: 25 * time.Millisecond, Open: true}, got[1])
	assert.InDelta(t, 20.0, got[0].Milliseconds(), 1e-9)
}

func TestAllDurations_Empty(t *testing.T) {
	s, _ := newTestStore()
	p := New("t", WithStore(s))

	got := p.AllDurations(nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestClear_Single(t *testing.T) {
	s, clock := newTestStore()
	pc1 := New("testclear", WithStore(s))
	pc2 := New("testclear", WithStore(s))

	pc1.Mark("start")
	pc1.Mark("startdel")
	pc1.Mark("startdel")
	clock.advance(time.Millisecond)
	pc1.Mark("startdel")
	pc1.Mark("startdel")

	require.Len(t, pc2.AllDurations(nil, nil), 2)
	assert.Equal(t, pc1.AllDurations(nil, nil), pc2.AllDurations(nil, nil))

	pc1.Clear("startdel")

	_, ok := pc2.Duration("startdel")
	assert.False(t, ok)
	_, ok = pc2.Duration("start")
	assert.True(t, ok)
	assert.Len(t, pc2.AllDurations(nil, nil), 1)
	assert.Equal(t, pc1.AllDurations(nil, nil), pc2.AllDurations(nil, nil))
}

func TestClear_All(t *testing.T) {
	s, _ := newTestStore()
	pc1 := New("testclear", WithStore(s))
	pc2 := New("testclear", WithStore(s))
	other := New("other", WithStore(s))

	pc1.Mark("start")
	pc1.Mark("")
	pc2.Mark("startdel")
	other.Mark("start")

	pc1.Clear("")

	assert.Empty(t, pc2.AllDurations(nil, nil))
	assert.Empty(t, pc1.AllDurations(nil, nil))
	_, ok := other.Duration("start")
	assert.True(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestClear_UnknownIsNoop(t *testing.T) {
	s, _ := newTestStore()
	p := New("t", WithStore(s))
	p.Mark("a")

	p.Clear("missing")

	assert.Equal(t, []string{"a"}, p.Names())
}

func TestClear_RestartsInterval(t *testing.T) {
	s, clock := newTestStore()
	p := New("t", WithStore(s))

	p.Mark("a")
	clock.advance(time.Second)
	p.Mark("a")
	p.Clear("a")

	p.Mark("a")
	clock.advance(time.Millisecond)
	d, ok := p.Duration("a")
	require.True(t, ok)
	assert.Equal(t, time.Millisecond, d)
}

func TestClear_LogsAtDebug(t *testing.T) {
	var buf bytes.Buffer
	l := logging.NewLogger(logging.DEBUG, false)
	l.SetOutput(&buf)

	s, _ := newTestStore()
	p := New("t", WithStore(s), WithLogger(l))
	p.Mark("a")
	p.Clear("a")
	p.ClearAll()

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "\n"))
	assert.Contains(t, out, "cleared mark app=t mark=a")
	assert.Contains(t, out, "cleared namespace app=t marks=0")
}
