package hub

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/caixa"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/config"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/integrador"
)

type stubEngine struct{}

func (stubEngine) EnviarDadosVenda(_ context.Context, sessao int, _ string) (string, error) {
	return "", nil
}
func (stubEngine) ConsultarSAT(_ context.Context, sessao int) (string, error) {
	return "", nil
}
func (stubEngine) ConsultarNumeroSessao(_ context.Context, sessao, _ int) (string, error) {
	return "", nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	base := t.TempDir()
	cfg.Hub.DataDir = base
	cfg.Integrador.Path = filepath.Join(base, "integrador")
	cfg.Integrador.GracePeriodMS = 10
	cfg.Integrador.PollIntervalMS = 50
	cfg.Integrador.TimeoutSeconds = 5
	cfg.Integrador.RestartBackoffMS = 20
	return &cfg
}

func TestTerminalIsCreatedOnce(t *testing.T) {
	r := New(testConfig(t), WithEngine(stubEngine{}))

	var wg sync.WaitGroup
	got := make([]*Terminal, 8)
	errs := make([]error, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], errs[i] = r.Terminal(5)
		}(i)
	}
	wg.Wait()
	for i, term := range got {
		if errs[i] != nil {
			t.Fatalf("Terminal(5): %v", errs[i])
		}
		if term != got[0] {
			t.Errorf("Terminal(5) call %d returned a different terminal", i)
		}
	}
	if c := r.Caixas(); len(c) != 1 || c[0] != 5 {
		t.Errorf("Caixas = %v, want [5]", c)
	}

	term := got[0]
	if term.Caixa != 5 {
		t.Errorf("Caixa = %d, want 5", term.Caixa)
	}
	if term.Vendas.Numerador != term.Sessoes {
		t.Error("Vendas must draw from the terminal allocator")
	}
	if term.Integrador.Numerador != term.Sessoes {
		t.Error("Integrador must draw from the terminal allocator")
	}
	if term.Integrador.Channel != r.Channel {
		t.Error("Integrador must use the shared channel")
	}
}

func TestTerminalsAreIndependent(t *testing.T) {
	r := New(testConfig(t), WithEngine(stubEngine{}))
	a, err := r.Terminal(0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Terminal(999)
	if err != nil {
		t.Fatal(err)
	}

	if a.Sessoes.Path() == b.Sessoes.Path() {
		t.Errorf("session files shared: %s", a.Sessoes.Path())
	}
	if a.Sales.Path() == b.Sales.Path() {
		t.Errorf("sales journals shared: %s", a.Sales.Path())
	}
	if a.Integrador.Errors != b.Integrador.Errors {
		t.Error("error journal must be shared")
	}
}

func TestTerminalRejectsInvalidIndex(t *testing.T) {
	r := New(testConfig(t), WithEngine(stubEngine{}))
	if _, err := r.Terminal(1000); !errors.Is(err, caixa.ErrInvalidTerminal) {
		t.Errorf("Terminal(1000) = %v, want ErrInvalidTerminal", err)
	}
	if c := r.Caixas(); len(c) != 0 {
		t.Errorf("Caixas = %v, want none", c)
	}
}

func TestStartServesIntegrador(t *testing.T) {
	cfg := testConfig(t)
	r := New(cfg, WithEngine(stubEngine{}))
	r.Start(context.Background())
	defer r.Close()

	term, err := r.Terminal(1)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// answer the first request that shows up
	go func() {
		for ctx.Err() == nil {
			entries, _ := os.ReadDir(cfg.Integrador.InputDir())
			for _, e := range entries {
				req, err := integrador.ParseResponseFile(filepath.Join(cfg.Integrador.InputDir(), e.Name()))
				if err != nil {
					continue
				}
				body := `<Integrador><Identificador><Valor>` + req.ID + `</Valor></Identificador><Resposta><retorno>ok</retorno></Resposta></Integrador>`
				tmp := filepath.Join(cfg.Integrador.OutputDir(), "r.part")
				os.WriteFile(tmp, []byte(body), 0644)
				os.Rename(tmp, filepath.Join(cfg.Integrador.OutputDir(), req.ID+".xml"))
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	resp, err := term.Integrador.VerificarStatusValidador(ctx, "1", "2")
	if err != nil {
		t.Fatalf("VerificarStatusValidador: %v", err)
	}
	n, err := strconv.Atoi(resp.ID)
	if err != nil {
		t.Fatalf("response id %q: %v", resp.ID, err)
	}
	if !term.Sessoes.Contains(n) {
		t.Errorf("id %d not drawn from the terminal history", n)
	}
	if want := "ok|" + resp.ID; resp.Payload.Text != want {
		t.Errorf("Payload = %q, want %q", resp.Payload.Text, want)
	}

	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

// waitFor polls cond every 20ms until it holds or timeout elapses.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestStartRecreatesLostOutputDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("removing a watched directory is refused on windows")
	}
	cfg := testConfig(t)
	r := New(cfg, WithEngine(stubEngine{}))
	r.Start(context.Background())
	defer r.Close()

	out := cfg.Integrador.OutputDir()
	exists := func() bool {
		_, err := os.Stat(out)
		return err == nil
	}
	if !waitFor(2*time.Second, exists) {
		t.Fatalf("%s never created", out)
	}
	time.Sleep(100 * time.Millisecond)
	if err := os.RemoveAll(out); err != nil {
		t.Fatal(err)
	}

	if !waitFor(5*time.Second, exists) {
		t.Errorf("supervisor should recreate %s", out)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
