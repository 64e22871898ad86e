package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
)

// DefaultSalesCapacity is how many confirmed sales a terminal remembers for
// duplicate detection.
const DefaultSalesCapacity = 20

// SaleEntry is one fiscally confirmed sale.
type SaleEntry struct {
	XML    string `json:"xml"`
	Pedido string `json:"pedido"`
	Cupom  string `json:"cupom"`
}

// SalesPath is the sales journal file of terminal caixa inside dir.
func SalesPath(dir string, caixa int) string {
	return filepath.Join(dir, fmt.Sprintf("ultima-venda-cx-%d.json", caixa))
}

// Sales is the per-terminal journal of the most recent confirmed sales.
type Sales struct {
	path     string
	capacity int
	store    Store[SaleEntry]

	mu sync.Mutex
}

// NewSales returns the sales journal of terminal caixa stored in dir.
func NewSales(dir string, caixa, capacity int, store Store[SaleEntry]) *Sales {
	if capacity <= 0 {
		capacity = DefaultSalesCapacity
	}
	return &Sales{
		path:     SalesPath(dir, caixa),
		capacity: capacity,
		store:    store,
	}
}

// Path returns the journal file.
func (s *Sales) Path() string { return s.path }

// Record appends a confirmed sale.
func (s *Sales) Record(ctx context.Context, e SaleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Append(ctx, s.path, e, s.capacity); err != nil {
		return fmt.Errorf("journal: record sale %q: %w", e.Pedido, err)
	}
	return nil
}

// Entries returns the journal, oldest first.
func (s *Sales) Entries() []SaleEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Load(s.path)
}

// FindDuplicate returns the most recent sale with the same document and
// order identifier.
func (s *Sales) FindDuplicate(xml, pedido string) (SaleEntry, bool) {
	entries := s.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].XML == xml && entries[i].Pedido == pedido {
			return entries[i], true
		}
	}
	return SaleEntry{}, false
}
