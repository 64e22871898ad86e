package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/filelock"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/journal"
)

// captureServer starts an httptest.Server that records incoming requests.
// It returns the server and a function to collect all captured requests.
func captureServer(t *testing.T) (*httptest.Server, func() []capturedReq) {
	t.Helper()
	var mu sync.Mutex
	var reqs []capturedReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, capturedReq{
			method:      r.Method,
			body:        string(body),
			contentType: r.Header.Get("Content-Type"),
			title:       r.Header.Get("X-Title"),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedReq {
		mu.Lock()
		defer mu.Unlock()
		out := make([]capturedReq, len(reqs))
		copy(out, reqs)
		return out
	}
}

type capturedReq struct {
	method      string
	body        string
	contentType string
	title       string
}

// waitForRequests polls until count requests are captured or the deadline is reached.
func waitForRequests(t *testing.T, collect func() []capturedReq, count int) []capturedReq {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := collect(); len(got) >= count {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d request(s)", count)
	return nil
}

func TestHook_OnError(t *testing.T) {
	srv, collect := captureServer(t)

	n := New(srv.URL, "loja-centro", true)
	n.Hook(journal.ErrorEntry{Caixa: 3, Operacao: "EnviarPagamento", Mensagem: "integrador: correlation timeout"})

	reqs := waitForRequests(t, collect, 1)
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	r := reqs[0]
	if r.method != http.MethodPost {
		t.Errorf("method = %q, want POST", r.method)
	}
	want := "caixa 3: EnviarPagamento: integrador: correlation timeout"
	if r.body != want {
		t.Errorf("body = %q, want %q", r.body, want)
	}
	if r.contentType != "text/plain" {
		t.Errorf("Content-Type = %q, want text/plain", r.contentType)
	}
	if r.title != "loja-centro" {
		t.Errorf("X-Title = %q, want loja-centro", r.title)
	}
}

func TestHook_OnError_Disabled(t *testing.T) {
	srv, collect := captureServer(t)

	n := New(srv.URL, "", false)
	n.Hook(journal.ErrorEntry{Mensagem: "oops"})

	// Give the goroutine time to fire (it shouldn't, but we need to be sure).
	time.Sleep(50 * time.Millisecond)
	if got := collect(); len(got) != 0 {
		t.Errorf("expected no requests, got %d", len(got))
	}
}

func TestHook_NoURL(t *testing.T) {
	n := New("", "", true)
	n.Hook(journal.ErrorEntry{Mensagem: "oops"}) // must not panic
}

func TestHook_FallbackTitle(t *testing.T) {
	srv, collect := captureServer(t)

	n := New(srv.URL, "", true)
	n.Hook(journal.ErrorEntry{Mensagem: "done"})

	reqs := waitForRequests(t, collect, 1)
	if reqs[0].title != "SATHub" {
		t.Errorf("X-Title = %q, want SATHub", reqs[0].title)
	}
}

func TestMessage_DefaultOperation(t *testing.T) {
	got := Message(journal.ErrorEntry{Caixa: 0, Mensagem: "falha"})
	if got != "caixa 0: erro: falha" {
		t.Errorf("Message = %q", got)
	}
}

func TestHook_WiredToErrorJournal(t *testing.T) {
	srv, collect := captureServer(t)

	errs := journal.NewErrors(t.TempDir(), 10, journal.NewStore[journal.ErrorEntry](filelock.Default(), nil))
	errs.OnRecord(New(srv.URL, "", true).Hook)
	if err := errs.Record(context.Background(), journal.ErrorEntry{Caixa: 1, Operacao: "ConsultarSAT", Mensagem: "sem resposta"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	reqs := waitForRequests(t, collect, 1)
	if reqs[0].body != "caixa 1: ConsultarSAT: sem resposta" {
		t.Errorf("body = %q", reqs[0].body)
	}
}

func TestHook_PostFailureSilent(t *testing.T) {
	// Point at a server that is already closed → connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // close immediately

	n := New(srv.URL, "", true)
	// None of these should panic or block.
	n.Hook(journal.ErrorEntry{Mensagem: "err"})
	n.Hook(journal.ErrorEntry{Mensagem: "err 2"})

	// Allow goroutines to finish.
	time.Sleep(100 * time.Millisecond)
}
