package integrador

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"
)

func TestRendererCommands(t *testing.T) {
	r, err := NewTemplateRenderer()
	if err != nil {
		t.Fatalf("NewTemplateRenderer: %v", err)
	}
	want := []string{
		"EnviarPagamento",
		"EnviarPagamentosEmArmazenamentoLocal",
		"EnviarStatusPagamento",
		"RecuperarDadosLocaisEnviadosParaValidadorFiscal",
		"RespostaFiscal",
		"VerificarStatusValidador",
	}
	if got := r.Commands(); !slices.Equal(got, want) {
		t.Errorf("Commands = %v, want %v", got, want)
	}
}

func TestRendererLookup(t *testing.T) {
	r := MustTemplateRenderer()
	for _, name := range []string{"EnviarPagamento", "enviarpagamento", "EnviarPagamento.xml", "ENVIARPAGAMENTO.XML"} {
		got, ok := r.Lookup(name)
		if !ok || got != CmdEnviarPagamento {
			t.Errorf("Lookup(%q) = %q, %v, want %q", name, got, ok, CmdEnviarPagamento)
		}
	}
	if _, ok := r.Lookup("CancelarUltimaVenda"); ok {
		t.Error("Lookup(CancelarUltimaVenda) should not resolve")
	}
}

func TestRenderVerificarStatusValidador(t *testing.T) {
	r := MustTemplateRenderer()
	var buf bytes.Buffer
	err := r.Render(&buf, CmdVerificarStatusValidador, Fields{
		"numero_identificador":   "100123",
		"chave_acesso_validador": "25CFE38D-3B92-46C0-91CA-CFF751A82D3D",
		"cnpj":                   "12.345.678/0001-90",
		"id_fila":                "A&B<1>",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Errorf("missing xml declaration:\n%s", out)
	}
	for _, want := range []string{"<Valor>100123</Valor>", `<Metodo Nome="VerificarStatusValidador">`, "A&amp;B&lt;1&gt;"} {
		if !strings.Contains(out, want) {
			t.Errorf("request missing %q:\n%s", want, out)
		}
	}

	// the request carries the identifier where responses do
	resp, err := ParseResponse(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if resp.ID != "100123" {
		t.Errorf("ID = %q, want 100123", resp.ID)
	}
}

func TestRenderAllTemplatesWellFormed(t *testing.T) {
	r := MustTemplateRenderer()
	for _, cmd := range r.Commands() {
		t.Run(cmd, func(t *testing.T) {
			var buf bytes.Buffer
			if err := r.Render(&buf, cmd, Fields{"numero_identificador": "1"}); err != nil {
				t.Fatalf("Render: %v", err)
			}
			out := buf.String()
			if strings.Contains(out, "<no value>") {
				t.Errorf("unfilled field:\n%s", out)
			}

			dec := xml.NewDecoder(strings.NewReader(out))
			for {
				_, err := dec.Token()
				if err != nil {
					if !errors.Is(err, io.EOF) {
						t.Errorf("malformed xml: %v", err)
					}
					break
				}
			}
		})
	}
}

func TestRenderUnknownCommand(t *testing.T) {
	err := MustTemplateRenderer().Render(&bytes.Buffer{}, "Nope", nil)
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Render(Nope) = %v, want ErrUnknownCommand", err)
	}
}
