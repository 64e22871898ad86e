package api

import (
	"context"

	"github.com/fulldump/box"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/integrador"
)

type comandoRequest struct {
	Campos integrador.Fields `json:"campos"`
}

type ComandoResponse struct {
	Funcao  string `json:"funcao"`
	ID      string `json:"numero_identificador"`
	Retorno any    `json:"retorno"`
}

func integradorComando(ctx context.Context, input *comandoRequest) (*ComandoResponse, error) {
	term, err := getTerminal(ctx)
	if err != nil {
		return nil, err
	}
	comando := box.GetUrlParameter(ctx, "comando")
	resp, err := term.Integrador.Command(ctx, comando, input.Campos)
	if err != nil {
		return nil, err
	}
	return &ComandoResponse{
		Funcao:  comando,
		ID:      resp.ID,
		Retorno: resp.Payload.Value(),
	}, nil
}
