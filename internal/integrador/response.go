package integrador

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"
)

// Response is a parsed Integrador output document.
type Response struct {
	ID         string    `json:"id"`
	SourcePath string    `json:"arquivo"`
	Payload    Payload   `json:"payload"`
	ReceivedAt time.Time `json:"recebido_em"`
}

// Payload is the answer carried in <Resposta>. Simple answers (a retorno or
// IdPagamento value) are exposed as Text, formatted as "<value>|<id>".
// Anything else is structured: Fields holds every leaf element keyed by its
// dotted path and Raw keeps the inner XML verbatim.
type Payload struct {
	Text   string            `json:"texto,omitempty"`
	Fields map[string]string `json:"campos,omitempty"`
	Raw    string            `json:"xml,omitempty"`
}

// Structured reports whether the payload is a nested structure rather than
// a simple value.
func (p Payload) Structured() bool { return p.Text == "" }

// Value returns Text for simple payloads and Fields otherwise.
func (p Payload) Value() any {
	if p.Structured() {
		if p.Fields == nil {
			return map[string]string{}
		}
		return p.Fields
	}
	return p.Text
}

func (p Payload) String() string {
	if !p.Structured() {
		return p.Text
	}
	return strings.TrimSpace(p.Raw)
}

// node is a generic XML element.
type node struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
	Inner   string `xml:",innerxml"`
	Nodes   []node `xml:",any"`
}

func (n *node) child(name string) *node {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			return &n.Nodes[i]
		}
	}
	return nil
}

func (n *node) leaf() bool { return len(n.Nodes) == 0 }

func (n *node) value() string { return strings.TrimSpace(n.Text) }

func (n *node) empty() bool { return n.leaf() && n.value() == "" }

// ParseResponse decodes an Integrador response document. Declared charsets
// other than UTF-8 (typically ISO-8859-1) are transcoded.
func ParseResponse(r io.Reader) (Response, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	var root node
	if err := dec.Decode(&root); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if root.XMLName.Local != "Integrador" {
		return Response{}, fmt.Errorf("%w: root element <%s>", ErrMalformedResponse, root.XMLName.Local)
	}

	var id string
	if ident := root.child("Identificador"); ident != nil {
		if v := ident.child("Valor"); v != nil {
			id = v.value()
		}
	}
	if id == "" {
		return Response{}, fmt.Errorf("%w: missing Identificador/Valor", ErrMalformedResponse)
	}

	resp := Response{ID: id}
	resposta := root.child("Resposta")
	if resposta == nil {
		resp.Payload = Payload{Fields: map[string]string{}}
		return resp, nil
	}

	chosen := resposta
	for _, name := range []string{"retorno", "IdPagamento"} {
		if c := resposta.child(name); c != nil && !c.empty() {
			chosen = c
			break
		}
	}

	if chosen != resposta && chosen.leaf() {
		resp.Payload = Payload{Text: chosen.value() + "|" + id}
		return resp, nil
	}
	fields := map[string]string{}
	flatten(chosen, "", fields)
	resp.Payload = Payload{Fields: fields, Raw: chosen.Inner}
	return resp, nil
}

// ParseResponseFile reads and parses the response at path.
func ParseResponseFile(path string) (Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Response{}, fmt.Errorf("integrador: read %s: %w", path, err)
	}
	resp, err := ParseResponse(bytes.NewReader(data))
	if err != nil {
		return Response{}, fmt.Errorf("integrador: parse %s: %w", path, err)
	}
	resp.SourcePath = path
	resp.ReceivedAt = time.Now()
	return resp, nil
}

// flatten records every leaf below n keyed by its dotted path. Repeated
// siblings get an index suffix from the second occurrence on.
func flatten(n *node, prefix string, out map[string]string) {
	seen := map[string]int{}
	for i := range n.Nodes {
		c := &n.Nodes[i]
		name := c.XMLName.Local
		seen[name]++
		if k := seen[name]; k > 1 {
			name += "[" + strconv.Itoa(k-1) + "]"
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if c.leaf() {
			out[key] = c.value()
			continue
		}
		flatten(c, key, out)
	}
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, errors.ErrUnsupported)
	}
	return enc.NewDecoder().Reader(input), nil
}
