package status

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherSignalsOnChange(t *testing.T) {
	dir := t.TempDir()

	w := NewWatcher(10*time.Millisecond, t.Logf)
	require.NoError(t, w.Start([]string{dir}))
	t.Cleanup(w.Stop)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x\n"), 0o600))

	select {
	case <-w.Events():
	case <-time.After(3 * time.Second):
		t.Fatal("expected a watcher event after writing a file")
	}
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	dir := t.TempDir()

	w := NewWatcher(10*time.Millisecond, t.Logf)
	require.NoError(t, w.Start([]string{dir}))
	t.Cleanup(w.Stop)

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o750))

	// Creating the directory fires an event.
	select {
	case <-w.Events():
	case <-time.After(3 * time.Second):
		t.Fatal("expected an event for the new directory")
	}

	// Give the watcher a moment to register the new directory, then a
	// write inside it must be seen too.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "inner.txt"), []byte("x\n"), 0o600))

	select {
	case <-w.Events():
	case <-time.After(3 * time.Second):
		t.Fatal("expected an event from inside the new directory")
	}
}

func TestShouldRefreshDebounces(t *testing.T) {
	w := NewWatcher(200*time.Millisecond, nil)

	now := time.Now()
	assert.True(t, w.ShouldRefresh(now))
	assert.False(t, w.ShouldRefresh(now.Add(50*time.Millisecond)))
	assert.True(t, w.ShouldRefresh(now.Add(300*time.Millisecond)))
}

func TestUnderRoot(t *testing.T) {
	w := &Watcher{roots: []string{"/tmp/ws"}}

	assert.True(t, w.underRoot("/tmp/ws"))
	assert.True(t, w.underRoot(filepath.Join("/tmp/ws", "sub")))
	assert.False(t, w.underRoot("/tmp/wsother"))
	assert.False(t, w.underRoot(""))
}
