package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/fulldump/box"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/caixa"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/hub"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/journal"
)

func caixaParam(ctx context.Context) (int, error) {
	param := box.GetUrlParameter(ctx, "caixa")
	t, err := strconv.Atoi(param)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", caixa.ErrInvalidTerminal, param)
	}
	return t, caixa.Validate(t)
}

func getTerminal(ctx context.Context) (*hub.Terminal, error) {
	t, err := caixaParam(ctx)
	if err != nil {
		return nil, err
	}
	return getRegistry(ctx).Terminal(t)
}

type FaixaResponse struct {
	Caixa int `json:"caixa"`
	Min   int `json:"min"`
	Max   int `json:"max"`
}

func getFaixa(ctx context.Context) (*FaixaResponse, error) {
	t, err := caixaParam(ctx)
	if err != nil {
		return nil, err
	}
	r, err := caixa.RangeFor(t)
	if err != nil {
		return nil, err
	}
	return &FaixaResponse{Caixa: t, Min: r.Min, Max: r.Max}, nil
}

type SessaoResponse struct {
	Caixa        int  `json:"caixa"`
	NumeroSessao int  `json:"numero_sessao"`
	Persistido   bool `json:"persistido"`
}

func nextSessao(ctx context.Context, w http.ResponseWriter) (*SessaoResponse, error) {
	term, err := getTerminal(ctx)
	if err != nil {
		return nil, err
	}
	n, err := term.Sessoes.NextContext(ctx)
	if n == 0 && err != nil {
		return nil, err
	}
	if err != nil {
		getRegistry(ctx).Logger().Warn("session number issued without persisted history",
			"caixa", term.Caixa, "numero_sessao", n, "error", err)
	}
	w.WriteHeader(http.StatusCreated)
	return &SessaoResponse{Caixa: term.Caixa, NumeroSessao: n, Persistido: err == nil}, nil
}

type HistoricoResponse struct {
	Caixa     int         `json:"caixa"`
	Faixa     caixa.Range `json:"faixa"`
	Historico []int       `json:"historico"`
}

func listSessoes(ctx context.Context) (*HistoricoResponse, error) {
	term, err := getTerminal(ctx)
	if err != nil {
		return nil, err
	}
	return &HistoricoResponse{
		Caixa:     term.Caixa,
		Faixa:     term.Sessoes.Range(),
		Historico: term.Sessoes.History(),
	}, nil
}

func listErros(ctx context.Context, r *http.Request) ([]journal.ErrorEntry, error) {
	filter, err := journal.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return journal.Filter(getRegistry(ctx).Errors.Entries(), filter)
}
