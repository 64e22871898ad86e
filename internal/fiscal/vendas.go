package fiscal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/journal"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/logging"
)

// MensagemDuplicada is returned to operators resubmitting a confirmed sale.
const MensagemDuplicada = "venda já emitida"

// Numerador issues session numbers. *sessao.Allocator satisfies it.
type Numerador interface {
	NextContext(ctx context.Context) (int, error)
}

// SalesJournal remembers confirmed sales. *journal.Sales satisfies it.
type SalesJournal interface {
	FindDuplicate(xml, pedido string) (journal.SaleEntry, bool)
	Record(ctx context.Context, e journal.SaleEntry) error
}

// ErrorRecorder receives failed operations. *journal.Errors satisfies it.
type ErrorRecorder interface {
	Record(ctx context.Context, e journal.ErrorEntry) error
}

// Resultado is the outcome of a fiscal call.
type Resultado struct {
	Funcao    string `json:"funcao"`
	Retorno   string `json:"retorno,omitempty"` // device answer, verbatim
	Sessao    int    `json:"numero_sessao,omitempty"`
	Codigo    string `json:"codigo,omitempty"`
	Mensagem  string `json:"mensagem,omitempty"`
	Cupom     string `json:"cupom,omitempty"`
	Duplicada bool   `json:"duplicada,omitempty"`
}

// Vendas submits sales for one terminal.
type Vendas struct {
	Caixa     int
	Engine    Engine
	Numerador Numerador
	Sales     SalesJournal
	Errors    ErrorRecorder // optional
	Logger    *slog.Logger
}

// Enviar submits a sale. A sale already confirmed with the same document and
// order is not sent again; the original receipt comes back with Duplicada
// set. Engine failures return ErrDeviceUnavailable. Rejections by the device
// are not errors: Resultado carries the device's code and message.
func (v *Vendas) Enviar(ctx context.Context, xml, pedido string) (Resultado, error) {
	const funcao = "EnviarDadosVenda"
	logger := v.logger()

	if dup, found := v.Sales.FindDuplicate(xml, pedido); found {
		logger.Warn("duplicate sale", "pedido", pedido, "cupom", dup.Cupom)
		return Resultado{
			Funcao:    funcao,
			Cupom:     dup.Cupom,
			Mensagem:  MensagemDuplicada,
			Duplicada: true,
		}, nil
	}

	sessao, err := v.nextSessao(ctx)
	if err != nil {
		return Resultado{}, fmt.Errorf("fiscal: %s: %w", funcao, err)
	}

	retorno, err := v.Engine.EnviarDadosVenda(ctx, sessao, xml)
	if err != nil {
		err = deviceError(err)
		v.record(ctx, funcao, err, map[string]any{"numero_sessao": sessao, "pedido": pedido})
		return Resultado{}, fmt.Errorf("fiscal: %s: %w", funcao, err)
	}

	res := Resultado{Funcao: funcao, Retorno: retorno, Sessao: sessao}
	status, err := ParseStatus(retorno)
	if err != nil {
		v.record(ctx, funcao, err, map[string]any{"numero_sessao": sessao, "pedido": pedido, "retorno": retorno})
		return res, nil
	}
	res.Codigo = status.Codigo()
	res.Mensagem = status.Mensagem()

	if !status.VendaAceita() {
		v.record(ctx, funcao, fmt.Errorf("venda rejeitada: %s %s", res.Codigo, res.Mensagem),
			map[string]any{"numero_sessao": sessao, "pedido": pedido, "retorno": retorno})
		return res, nil
	}

	res.Cupom = status.ChaveConsulta()
	if err := v.Sales.Record(ctx, journal.SaleEntry{XML: xml, Pedido: pedido, Cupom: res.Cupom}); err != nil {
		// the sale is confirmed; a lost journal entry only weakens duplicate detection
		logging.Critical(logger, "confirmed sale not journaled", "pedido", pedido, "cupom", res.Cupom, "error", err)
	}
	logger.Info("sale confirmed", "pedido", pedido, "cupom", res.Cupom, "numero_sessao", sessao)
	return res, nil
}

// Consultar asks whether the device is responding.
func (v *Vendas) Consultar(ctx context.Context) (Resultado, error) {
	const funcao = "ConsultarSAT"
	sessao, err := v.nextSessao(ctx)
	if err != nil {
		return Resultado{}, fmt.Errorf("fiscal: %s: %w", funcao, err)
	}
	retorno, err := v.Engine.ConsultarSAT(ctx, sessao)
	if err != nil {
		err = deviceError(err)
		v.record(ctx, funcao, err, map[string]any{"numero_sessao": sessao})
		return Resultado{}, fmt.Errorf("fiscal: %s: %w", funcao, err)
	}
	return v.resultado(funcao, sessao, retorno), nil
}

// ConsultarNumeroSessao asks the device for the answer it gave to session
// numero.
func (v *Vendas) ConsultarNumeroSessao(ctx context.Context, numero int) (Resultado, error) {
	const funcao = "ConsultarNumeroSessao"
	sessao, err := v.nextSessao(ctx)
	if err != nil {
		return Resultado{}, fmt.Errorf("fiscal: %s: %w", funcao, err)
	}
	retorno, err := v.Engine.ConsultarNumeroSessao(ctx, sessao, numero)
	if err != nil {
		err = deviceError(err)
		v.record(ctx, funcao, err, map[string]any{"numero_sessao": sessao, "consultado": numero})
		return Resultado{}, fmt.Errorf("fiscal: %s: %w", funcao, err)
	}
	return v.resultado(funcao, sessao, retorno), nil
}

func (v *Vendas) resultado(funcao string, sessao int, retorno string) Resultado {
	res := Resultado{Funcao: funcao, Retorno: retorno, Sessao: sessao}
	if status, err := ParseStatus(retorno); err == nil {
		res.Codigo = status.Codigo()
		res.Mensagem = status.Mensagem()
	}
	return res
}

// nextSessao draws a session number. A history persist failure is logged by
// the allocator and does not stop the call.
func (v *Vendas) nextSessao(ctx context.Context) (int, error) {
	if v.Numerador == nil {
		return 0, errors.New("no session numerador")
	}
	n, err := v.Numerador.NextContext(ctx)
	if n == 0 && err != nil {
		return 0, err
	}
	if err != nil {
		v.logger().Warn("session number issued without persisted history", "numero_sessao", n, "error", err)
	}
	return n, nil
}

func (v *Vendas) record(ctx context.Context, funcao string, err error, detalhes map[string]any) {
	v.logger().Error("fiscal call failed", "funcao", funcao, "error", err)
	if v.Errors == nil {
		return
	}
	if recErr := v.Errors.Record(context.WithoutCancel(ctx), journal.NewErrorEntry(v.Caixa, funcao, err, detalhes)); recErr != nil {
		logging.Critical(v.logger(), "error journal not written", "error", recErr)
	}
}

func (v *Vendas) logger() *slog.Logger {
	if v.Logger == nil {
		return logging.Discard()
	}
	return v.Logger.With("caixa", v.Caixa)
}

func deviceError(err error) error {
	if errors.Is(err, ErrDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s", ErrDeviceUnavailable, err.Error())
}
