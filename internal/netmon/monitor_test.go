package netmon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	nslog "github.com/novelshare/novelsync/internal/log"
)

type fakeProber struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (p *fakeProber) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func (p *fakeProber) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakeProber) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newMonitor(p Prober, debounce time.Duration) *Monitor {
	return New(p, Options{
		ProbeTimeout: time.Second,
		Debounce:     debounce,
		Logger:       nslog.NullLogger(),
	})
}

func TestInitialStateUnknown(t *testing.T) {
	m := newMonitor(&fakeProber{}, time.Minute)
	assert.Equal(t, StateUnknown, m.State())
	assert.False(t, m.Online())
}

func TestReportUpRequiresProbe(t *testing.T) {
	p := &fakeProber{err: errors.New("unreachable")}
	m := newMonitor(p, time.Minute)

	// OS says online but the backend does not answer: state must not flip.
	assert.False(t, m.ReportUp(context.Background()))
	assert.Equal(t, StateUnknown, m.State())

	p.setErr(nil)
	assert.True(t, m.ReportUp(context.Background()))
	assert.Equal(t, StateOnline, m.State())
}

func TestReportDownTrustedImmediately(t *testing.T) {
	p := &fakeProber{}
	m := newMonitor(p, time.Minute)
	m.CheckNow(context.Background())
	assert.True(t, m.Online())

	m.ReportDown()
	assert.Equal(t, StateOffline, m.State())
	// no probe issued for the offline hint
	assert.Equal(t, 1, p.count())
}

func TestDebounceReusesOnlineResult(t *testing.T) {
	p := &fakeProber{}
	m := newMonitor(p, time.Minute)

	assert.True(t, m.CheckNow(context.Background()))
	assert.True(t, m.CheckNow(context.Background()))
	assert.True(t, m.CheckNow(context.Background()))
	assert.Equal(t, 1, p.count(), "probes inside the debounce window must reuse the cached result")
}

func TestOfflineResultNotCached(t *testing.T) {
	p := &fakeProber{err: errors.New("down")}
	m := newMonitor(p, time.Minute)

	assert.False(t, m.CheckNow(context.Background()))
	assert.False(t, m.CheckNow(context.Background()))
	assert.Equal(t, 2, p.count(), "a failed probe must never be reused")
}

func TestOnOnlineFiresOncePerTransition(t *testing.T) {
	p := &fakeProber{}
	m := newMonitor(p, 0)

	var fired int
	m.OnOnline(func() { fired++ })

	m.CheckNow(context.Background())
	assert.Equal(t, 1, fired)

	// already online: no re-fire
	m.CheckNow(context.Background())
	assert.Equal(t, 1, fired)

	// offline and back online: fires again
	m.ReportDown()
	m.CheckNow(context.Background())
	assert.Equal(t, 2, fired)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	p := &fakeProber{}
	m := newMonitor(p, time.Minute)

	var got []State
	unsub := m.Subscribe(func(s State) { got = append(got, s) })

	m.CheckNow(context.Background())
	m.ReportDown()
	assert.Equal(t, []State{StateOnline, StateOffline}, got)

	unsub()
	m.CheckNow(context.Background())
	assert.Len(t, got, 2)
}
