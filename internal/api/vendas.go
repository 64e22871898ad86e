package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/fiscal"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/journal"
)

type vendaRequest struct {
	DadosVenda string `json:"dados_venda"`
	Pedido     string `json:"pedido"`
}

func enviarVenda(ctx context.Context, input *vendaRequest) (*fiscal.Resultado, error) {
	if strings.TrimSpace(input.DadosVenda) == "" {
		return nil, fmt.Errorf("%w: dados_venda is required", ErrBadRequest)
	}
	term, err := getTerminal(ctx)
	if err != nil {
		return nil, err
	}
	res, err := term.Vendas.Enviar(ctx, input.DadosVenda, input.Pedido)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func listVendas(ctx context.Context) ([]journal.SaleEntry, error) {
	term, err := getTerminal(ctx)
	if err != nil {
		return nil, err
	}
	return term.Sales.Entries(), nil
}

func consultarSAT(ctx context.Context) (*fiscal.Resultado, error) {
	term, err := getTerminal(ctx)
	if err != nil {
		return nil, err
	}
	res, err := term.Vendas.Consultar(ctx)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type consultaSessaoRequest struct {
	NumeroSessao int `json:"numero_sessao"`
}

func consultarNumeroSessao(ctx context.Context, input *consultaSessaoRequest) (*fiscal.Resultado, error) {
	if input.NumeroSessao <= 0 {
		return nil, fmt.Errorf("%w: numero_sessao is required", ErrBadRequest)
	}
	term, err := getTerminal(ctx)
	if err != nil {
		return nil, err
	}
	res, err := term.Vendas.ConsultarNumeroSessao(ctx, input.NumeroSessao)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
