// Package notify sends fire-and-forget HTTP notifications for recorded
// errors. The primary use case is ntfy.sh, but any HTTP webhook works.
package notify

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/journal"
)

// Notifier posts plain-text HTTP notifications for error journal entries.
type Notifier struct {
	url     string
	title   string
	onError bool
	client  *http.Client
}

// New creates a Notifier. title is sent as the X-Title header; if empty,
// "SATHub" is used instead.
func New(notifURL, title string, onError bool) *Notifier {
	if title == "" {
		title = "SATHub"
	}
	return &Notifier{
		url:     notifURL,
		title:   title,
		onError: onError,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Hook is a journal.Errors.OnRecord-compatible function. It fires an
// asynchronous POST for each entry when error notifications are enabled.
func (n *Notifier) Hook(entry journal.ErrorEntry) {
	if !n.onError || n.url == "" {
		return
	}
	go n.post(Message(entry))
}

// Message renders entry as a one-line notification body.
func Message(e journal.ErrorEntry) string {
	op := e.Operacao
	if op == "" {
		op = "erro"
	}
	return fmt.Sprintf("caixa %d: %s: %s", e.Caixa, op, e.Mensagem)
}

// post sends a plain-text POST to the configured URL. Errors are silently
// discarded so notification failures never interrupt a sale.
func (n *Notifier) post(message string) {
	req, err := http.NewRequest(http.MethodPost, n.url, strings.NewReader(message))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("X-Title", n.title)
	resp, err := n.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
