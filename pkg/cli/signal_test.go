package cli

import (
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/desyncsim/pkg/ui"
)

func quietUI(t *testing.T) {
	t.Helper()
	ui.SetSilent(true)
	t.Cleanup(func() { ui.SetSilent(false) })
}

func TestSignalContext_CancelOnInterrupt(t *testing.T) {
	quietUI(t)
	sigs := make(chan os.Signal, 1)
	ctx, cancel := signalContext(5*time.Second, sigs, nil)
	defer cancel()

	sigs <- os.Interrupt
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled after signal")
	}
}

func TestSignalContext_ManualCancel(t *testing.T) {
	ctx, cancel := signalContext(5*time.Second, make(chan os.Signal, 1), nil)
	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled after manual cancel")
	}
}

func TestSignalContext_SecondSignalExits(t *testing.T) {
	quietUI(t)
	sigs := make(chan os.Signal, 2)
	var code atomic.Int32
	code.Store(-1)

	ctx, cancel := signalContext(5*time.Second, sigs, func(c int) { code.Store(int32(c)) })
	defer cancel()

	sigs <- os.Interrupt
	<-ctx.Done()
	sigs <- os.Interrupt

	require.Eventually(t, func() bool { return code.Load() == 130 }, 2*time.Second, 10*time.Millisecond)
}

func TestSignalContext_GraceExpires(t *testing.T) {
	quietUI(t)
	sigs := make(chan os.Signal, 2)
	var code atomic.Int32
	code.Store(-1)

	ctx, cancel := signalContext(20*time.Millisecond, sigs, func(c int) { code.Store(int32(c)) })
	defer cancel()

	sigs <- os.Interrupt
	<-ctx.Done()
	time.Sleep(100 * time.Millisecond)
	sigs <- os.Interrupt
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(-1), code.Load())
}
