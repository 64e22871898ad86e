package journal

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"
)

// DefaultErrorsCapacity bounds the global error journal.
const DefaultErrorsCapacity = 1000

// ErrorsFileName is the global error journal inside the data directory.
const ErrorsFileName = "ultimos-erros.json"

// ErrorEntry describes one failed operation. Keys written by other tools are
// kept in Extra and written back unchanged.
//
// The journal is shared with other writers, so an element whose known keys
// carry other types (a string caixa, a local timestamp) is still read: the
// fields are filled on a best-effort basis and the element is written back
// exactly as it was read.
type ErrorEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Caixa     int            `json:"caixa"`
	Operacao  string         `json:"operacao"`
	Mensagem  string         `json:"mensagem"`
	Detalhes  map[string]any `json:"detalhes,omitempty"`
	Extra     map[string]any `json:",unknown"`

	raw jsontext.Value
}

// errorEntry has the fields of ErrorEntry without its methods.
type errorEntry ErrorEntry

// timestampLayouts are tried in order for timestamps written by other tools.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999",
	"02/01/2006 15:04:05",
}

// MarshalJSON writes entries read from foreign elements verbatim.
func (e ErrorEntry) MarshalJSON() ([]byte, error) {
	if len(e.raw) > 0 {
		return e.raw, nil
	}
	return json.Marshal(errorEntry(e))
}

// UnmarshalJSON decodes e, falling back to a lenient reading of any JSON
// object. Only non-object elements are rejected.
func (e *ErrorEntry) UnmarshalJSON(b []byte) error {
	var strict errorEntry
	if err := json.Unmarshal(b, &strict); err == nil {
		*e = ErrorEntry(strict)
		return nil
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("journal: error entry: %w", err)
	}
	*e = ErrorEntry{raw: jsontext.Value(bytes.Clone(b))}
	e.ID = looseString(m["id"])
	e.Operacao = looseString(m["operacao"])
	if e.Operacao == "" {
		e.Operacao = looseString(m["funcao"])
	}
	e.Mensagem = looseString(m["mensagem"])
	e.Caixa = looseInt(m["caixa"])
	e.Timestamp = looseTime(m["timestamp"])
	if d, ok := m["detalhes"].(map[string]any); ok {
		e.Detalhes = d
	}
	for k, v := range m {
		switch k {
		case "id", "operacao", "mensagem", "caixa", "timestamp", "detalhes":
		default:
			if e.Extra == nil {
				e.Extra = map[string]any{}
			}
			e.Extra[k] = v
		}
	}
	return nil
}

func looseString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func looseInt(v any) int {
	switch v := v.(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	default:
		return 0
	}
}

func looseTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// NewErrorEntry builds an entry for a failed operation on terminal caixa.
func NewErrorEntry(caixa int, operacao string, err error, detalhes map[string]any) ErrorEntry {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return ErrorEntry{
		Caixa:    caixa,
		Operacao: operacao,
		Mensagem: msg,
		Detalhes: detalhes,
	}
}

// ErrorsPath is the global error journal file inside dir.
func ErrorsPath(dir string) string {
	return filepath.Join(dir, ErrorsFileName)
}

// Errors is the process-wide journal of failed operations.
type Errors struct {
	path     string
	capacity int
	store    Store[ErrorEntry]
	now      func() time.Time

	mu       sync.Mutex
	onRecord []func(ErrorEntry)
}

// NewErrors returns the error journal stored in dir.
func NewErrors(dir string, capacity int, store Store[ErrorEntry]) *Errors {
	if capacity <= 0 {
		capacity = DefaultErrorsCapacity
	}
	return &Errors{
		path:     ErrorsPath(dir),
		capacity: capacity,
		store:    store,
		now:      time.Now,
	}
}

// Path returns the journal file.
func (e *Errors) Path() string { return e.path }

// OnRecord registers fn to be called with every entry after it is recorded.
func (e *Errors) OnRecord(fn func(ErrorEntry)) {
	e.mu.Lock()
	e.onRecord = append(e.onRecord, fn)
	e.mu.Unlock()
}

// Record appends entry, filling ID and Timestamp when empty. Hooks run even
// when the write fails so the failure is not lost entirely.
func (e *Errors) Record(ctx context.Context, entry ErrorEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = e.now().UTC()
	}

	e.mu.Lock()
	err := e.store.Append(ctx, e.path, entry, e.capacity)
	hooks := append([]func(ErrorEntry){}, e.onRecord...)
	e.mu.Unlock()

	for _, fn := range hooks {
		fn(entry)
	}
	if err != nil {
		return fmt.Errorf("journal: record error %s: %w", entry.ID, err)
	}
	return nil
}

// Entries returns the journal, oldest first.
func (e *Errors) Entries() []ErrorEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Load(e.path)
}
