package journal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/filelock"
)

func testGuard() filelock.Guard {
	return filelock.Guard{Attempts: 3, Wait: 20 * time.Millisecond}
}

func TestLoadLenient(t *testing.T) {
	dir := t.TempDir()
	s := NewStore[int](testGuard(), nil)

	tests := []struct {
		name    string
		content *string
	}{
		{"missing", nil},
		{"empty", ptr("")},
		{"blank", ptr("  \n")},
		{"not an array", ptr(`"not an array"`)},
		{"object", ptr(`{"a": 1}`)},
		{"malformed", ptr(`[1, 2,`)},
		{"null", ptr(`null`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "-")+".json")
			if tt.content != nil {
				if err := os.WriteFile(path, []byte(*tt.content), 0644); err != nil {
					t.Fatal(err)
				}
			}
			got := s.Load(path)
			if got == nil || len(got) != 0 {
				t.Errorf("Load = %#v, want empty non-nil slice", got)
			}
		})
	}
}

func TestLoadSkipsForeignElements(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessoes-cx-1.json")
	if err := os.WriteFile(path, []byte(`[100901, "x", {"n": 1}, 100902]`), 0644); err != nil {
		t.Fatal(err)
	}
	got := NewStore[int](testGuard(), nil).Load(path)
	if want := []int{100901, 100902}; !slices.Equal(got, want) {
		t.Errorf("Load = %v, want %v", got, want)
	}
}

func TestAppendBoundsCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessoes-cx-1.json")
	s := NewStore[int](testGuard(), nil)
	ctx := context.Background()

	for i := 1; i <= 7; i++ {
		if err := s.Append(ctx, path, i, 3); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
		got := s.Load(path)
		if len(got) > 3 {
			t.Fatalf("len = %d after %d appends, want <= 3", len(got), i)
		}
		if last := got[len(got)-1]; last != i {
			t.Errorf("newest entry = %d, want %d", last, i)
		}
	}
	if got, want := s.Load(path), []int{5, 6, 7}; !slices.Equal(got, want) {
		t.Errorf("Load = %v, want %v", got, want)
	}
}

func TestAppendOverCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ultima-venda-cx-1.json")
	if err := os.WriteFile(path, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewStore[SaleEntry](testGuard(), nil)
	if err := s.Append(context.Background(), path, SaleEntry{XML: "<CFe/>", Pedido: "1", Cupom: "CFe1"}, 20); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got := s.Load(path)
	if len(got) != 1 || got[0].Cupom != "CFe1" {
		t.Errorf("Load = %+v, want the single new sale", got)
	}
}

func TestAppendKeepsForeignElements(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ultima-venda-cx-1.json")
	foreign := `[{"xml": 1, "pedido": ["a"]}, {"xml": "x", "pedido": "p", "cupom": "c"}]`
	if err := os.WriteFile(path, []byte(foreign), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewStore[SaleEntry](testGuard(), nil)
	if err := s.Append(context.Background(), path, SaleEntry{Pedido: "novo"}, 20); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got := s.Load(path)
	if len(got) != 2 || got[0].Cupom != "c" || got[1].Pedido != "novo" {
		t.Errorf("Load = %+v, want the conforming sale followed by the new one", got)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"pedido": [`) {
		t.Errorf("foreign element lost:\n%s", data)
	}
}

func TestWriteFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ultima-venda-cx-2.json")
	s := NewStore[SaleEntry](testGuard(), nil)
	if err := s.Write(context.Background(), path, []SaleEntry{{XML: "x", Pedido: "p", Cupom: "c"}}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "[\n    {\n        \"xml\": \"x\",\n        \"pedido\": \"p\",\n        \"cupom\": \"c\"\n    }\n]\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestWriteEmptyIsArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.json")
	s := NewStore[int](testGuard(), nil)
	if err := s.Write(context.Background(), path, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]\n" {
		t.Errorf("file = %q, want %q", data, "[]\n")
	}
}

func TestAppendWriteConflictDropsEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ultimos-erros.json")
	s := NewStore[int](testGuard(), nil)
	ctx := context.Background()
	if err := s.Append(ctx, path, 1, 10); err != nil {
		t.Fatalf("Append: %v", err)
	}

	holder := flock.New(filelock.LockPath(path))
	ok, err := holder.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	defer holder.Unlock()

	err = s.Append(ctx, path, 2, 10)
	if !errors.Is(err, filelock.ErrWriteConflict) {
		t.Errorf("Append err = %v, want ErrWriteConflict", err)
	}
	if got := s.Load(path); !slices.Equal(got, []int{1}) {
		t.Errorf("Load = %v, want [1]", got)
	}
}

func TestFilter(t *testing.T) {
	entries := []ErrorEntry{
		{ID: "a", Caixa: 1, Operacao: "EnviarPagamento"},
		{ID: "b", Caixa: 2, Operacao: "EnviarPagamento"},
		{ID: "c", Caixa: 1, Operacao: "ConsultarSAT"},
	}

	tests := []struct {
		filter string
		want   []string
	}{
		{`{"caixa": 1}`, []string{"a", "c"}},
		{`{"operacao": {"$eq": "EnviarPagamento"}, "caixa": {"$gt": 1}}`, []string{"b"}},
		{``, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		f, err := ParseFilter(tt.filter)
		if err != nil {
			t.Fatalf("ParseFilter(%q): %v", tt.filter, err)
		}
		got, err := Filter(entries, f)
		if err != nil {
			t.Fatalf("Filter(%q): %v", tt.filter, err)
		}
		if !slices.Equal(ids(got), tt.want) {
			t.Errorf("Filter(%q) = %v, want %v", tt.filter, ids(got), tt.want)
		}
	}

	if _, err := ParseFilter(`{`); err == nil {
		t.Error("ParseFilter(`{`) should fail")
	}
}

func ptr(s string) *string { return &s }

func ids(entries []ErrorEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
