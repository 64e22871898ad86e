package integrador

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

// publish writes a response the way the Integrador should: complete file
// first, then visible under its final name.
func publish(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := writeResponse(dir, name, content); err != nil {
		t.Fatalf("publish %s: %v", name, err)
	}
}

func writeResponse(dir, name, content string) error {
	tmp := filepath.Join(dir, name+".part")
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, name))
}

func TestWatcherPublishesResponses(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir)
	w.GracePeriod = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond) // let the watch register

	publish(t, dir, "ignored.txt", responseXML("1", `<retorno>x</retorno>`))
	publish(t, dir, "resp-100100.xml", responseXML("100100", `<retorno>ok</retorno>`))

	select {
	case resp := <-w.Responses():
		if resp.ID != "100100" {
			t.Errorf("ID = %q, want 100100", resp.ID)
		}
		if resp.Payload.Text != "ok|100100" {
			t.Errorf("Payload = %q, want ok|100100", resp.Payload.Text)
		}
		if filepath.Base(resp.SourcePath) != "resp-100100.xml" {
			t.Errorf("SourcePath = %q", resp.SourcePath)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no response published")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
	if _, open := <-w.Responses(); open {
		t.Error("Responses not closed after Run")
	}
}

func TestWatcherReportsMalformed(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir)
	w.GracePeriod = -1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	publish(t, dir, "broken.xml", "<Integrador><Identificador>")

	select {
	case err := <-w.Errors():
		if !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("err = %v, want ErrMalformedResponse", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no error reported")
	}
}

func TestWatcherMissingDir(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "absent"))
	if err := w.Run(context.Background()); err == nil {
		t.Error("Run on missing dir: want error")
	}
}

func TestWatcherReportsLostDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("removing a watched directory is refused on windows")
	}
	dir := filepath.Join(t.TempDir(), "output")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	w := NewWatcher(dir)
	w.GracePeriod = -1

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(context.Background()) }()
	// let the watch register
	time.Sleep(100 * time.Millisecond)
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrWatchLost) {
			t.Errorf("err = %v, want ErrWatchLost", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not notice the removed directory")
	}
}

func TestWatcherReportsClosedEventStream(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(dir)
	w.onWatch = func(fw *fsnotify.Watcher) { go fw.Close() }

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(context.Background()) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrWatchLost) {
			t.Errorf("err = %v, want ErrWatchLost", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the event stream closed")
	}
}

func TestWatcherStopsCleanlyOnCancel(t *testing.T) {
	w := NewWatcher(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	w.onWatch = func(*fsnotify.Watcher) { cancel() }

	if err := w.Run(ctx); err != nil {
		t.Errorf("Run after cancel = %v, want nil", err)
	}
}
