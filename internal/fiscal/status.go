package fiscal

import (
	"errors"
	"strconv"
	"strings"
)

// Device answer codes.
const (
	CodigoVendaAceita      = "06000"
	CodigoSATEmOperacao    = "08000"
	CodigoSessaoEncontrada = "11000"
)

// Field offsets in a device answer. Only Sessao and Codigo are common to
// every function; the others depend on the function and version, so they
// are always read through bounds-checked accessors.
const (
	offSessao        = 0
	offCodigo        = 1
	offMensagem      = 3
	offChaveConsulta = 8
)

// ErrEmptyStatus is returned by ParseStatus for blank answers.
var ErrEmptyStatus = errors.New("fiscal: empty status")

// Status is a parsed device answer.
type Status struct {
	raw    string
	fields []string
}

// ParseStatus splits a pipe-delimited device answer. The first field must be
// the numeric session.
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Status{}, ErrEmptyStatus
	}
	fields := strings.Split(s, "|")
	if _, err := strconv.Atoi(fields[offSessao]); err != nil {
		return Status{}, errors.New("fiscal: status does not start with a session number: " + truncate(s, 40))
	}
	return Status{raw: s, fields: fields}, nil
}

// Field returns the field at i, reporting false when the answer is too short.
func (s Status) Field(i int) (string, bool) {
	if i < 0 || i >= len(s.fields) {
		return "", false
	}
	return s.fields[i], true
}

// Len is the number of fields.
func (s Status) Len() int { return len(s.fields) }

func (s Status) String() string { return s.raw }

func (s Status) get(i int) string {
	v, _ := s.Field(i)
	return v
}

func (s Status) Sessao() int {
	n, _ := strconv.Atoi(s.get(offSessao))
	return n
}

func (s Status) Codigo() string        { return s.get(offCodigo) }
func (s Status) Mensagem() string      { return s.get(offMensagem) }
func (s Status) ChaveConsulta() string { return s.get(offChaveConsulta) }

// VendaAceita reports whether a sale answer confirms the sale.
func (s Status) VendaAceita() bool { return s.Codigo() == CodigoVendaAceita }

// EmOperacao reports whether a ConsultarSAT answer says the device responds.
func (s Status) EmOperacao() bool { return s.Codigo() == CodigoSATEmOperacao }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
