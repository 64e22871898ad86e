package integrador

import "context"

// Request templates.
const (
	CmdVerificarStatusValidador             = "VerificarStatusValidador.xml"
	CmdEnviarPagamentosEmArmazenamentoLocal = "EnviarPagamentosEmArmazenamentoLocal.xml"
	CmdEnviarPagamento                      = "EnviarPagamento.xml"
	CmdEnviarStatusPagamento                = "EnviarStatusPagamento.xml"
	CmdRecuperarDadosLocaisEnviados         = "RecuperarDadosLocaisEnviadosParaValidadorFiscal.xml"
	CmdRespostaFiscal                       = "RespostaFiscal.xml"
)

// VerificarStatusValidador asks the validator for the status of queued
// payment idFila.
func (c *Client) VerificarStatusValidador(ctx context.Context, cnpj, idFila string) (Response, error) {
	return c.Command(ctx, CmdVerificarStatusValidador, Fields{
		"cnpj":    cnpj,
		"id_fila": idFila,
	})
}

// EnviarPagamentosEmArmazenamentoLocal flushes payments stored locally while
// the validator was offline.
func (c *Client) EnviarPagamentosEmArmazenamentoLocal(ctx context.Context) (Response, error) {
	return c.Command(ctx, CmdEnviarPagamentosEmArmazenamentoLocal, nil)
}

// EnviarPagamentoParams are the fields of a payment request.
type EnviarPagamentoParams struct {
	ChaveRequisicao       string `json:"chave_requisicao"`
	Estabelecimento       string `json:"estabelecimento"`
	SerialPOS             string `json:"serial_pos"`
	CNPJ                  string `json:"cnpj"`
	IcmsBase              string `json:"icms_base"`
	ValorTotalVenda       string `json:"vr_total_venda"`
	HabilitarMultiplosPag string `json:"h_multiplos_pagamentos"`
	HabilitarAntiFraude   string `json:"h_anti_fraude"`
	CodigoMoeda           string `json:"cod_moeda"`
	EmitirCupomNFCE       string `json:"emitir_cupom_nfce"`
	OrigemPagamento       string `json:"origem_pagamento"`
}

func (p EnviarPagamentoParams) fields() Fields {
	return Fields{
		"chave_requisicao":       p.ChaveRequisicao,
		"estabelecimento":        p.Estabelecimento,
		"serial_pos":             p.SerialPOS,
		"cnpj":                   p.CNPJ,
		"icms_base":              p.IcmsBase,
		"vr_total_venda":         p.ValorTotalVenda,
		"h_multiplos_pagamentos": p.HabilitarMultiplosPag,
		"h_anti_fraude":          p.HabilitarAntiFraude,
		"cod_moeda":              p.CodigoMoeda,
		"emitir_cupom_nfce":      p.EmitirCupomNFCE,
		"origem_pagamento":       p.OrigemPagamento,
	}
}

// EnviarPagamento submits a payment to the validator. The response payload
// is the payment id ("IdPagamento|<id>").
func (c *Client) EnviarPagamento(ctx context.Context, p EnviarPagamentoParams) (Response, error) {
	return c.Command(ctx, CmdEnviarPagamento, p.fields())
}

// StatusPagamentoParams report the acquirer's answer for a payment.
type StatusPagamentoParams struct {
	CodigoAutorizacao     string `json:"codigo_autorizacao"`
	Bin                   string `json:"bin"`
	DonoCartao            string `json:"dono_cartao"`
	DataExpiracao         string `json:"data_expiracao"`
	InstituicaoFinanceira string `json:"instituicao_financeira"`
	Parcelas              string `json:"parcelas"`
	CodigoPagamento       string `json:"codigo_pagamento"`
	ValorPagamento        string `json:"valor_pagamento"`
	IDFila                string `json:"id_fila"`
	Tipo                  string `json:"tipo"`
	UltimosQuatroDigitos  string `json:"ultimos_quatro_digitos"`
}

func (p StatusPagamentoParams) fields() Fields {
	return Fields{
		"codigo_autorizacao":     p.CodigoAutorizacao,
		"bin":                    p.Bin,
		"dono_cartao":            p.DonoCartao,
		"data_expiracao":         p.DataExpiracao,
		"instituicao_financeira": p.InstituicaoFinanceira,
		"parcelas":               p.Parcelas,
		"codigo_pagamento":       p.CodigoPagamento,
		"valor_pagamento":        p.ValorPagamento,
		"id_fila":                p.IDFila,
		"tipo":                   p.Tipo,
		"ultimos_quatro_digitos": p.UltimosQuatroDigitos,
	}
}

// EnviarStatusPagamento reports the outcome of a card payment.
func (c *Client) EnviarStatusPagamento(ctx context.Context, p StatusPagamentoParams) (Response, error) {
	return c.Command(ctx, CmdEnviarStatusPagamento, p.fields())
}

// RecuperarDadosLocaisEnviados lists data already sent to the fiscal
// validator.
func (c *Client) RecuperarDadosLocaisEnviados(ctx context.Context) (Response, error) {
	return c.Command(ctx, CmdRecuperarDadosLocaisEnviados, nil)
}

// RespostaFiscalParams tie an issued fiscal document to a payment.
type RespostaFiscalParams struct {
	IDFila          string `json:"id_fila"`
	ChaveAcesso     string `json:"chave_acesso"`
	NSU             string `json:"nsu"`
	NumeroAprovacao string `json:"numero_aprovacao"`
	Bandeira        string `json:"bandeira"`
	Adquirente      string `json:"adquirente"`
	CNPJ            string `json:"cnpj"`
	ImpressaoFiscal string `json:"impressao_fiscal"`
	NumeroDocumento string `json:"numero_documento"`
}

func (p RespostaFiscalParams) fields() Fields {
	return Fields{
		"id_fila":          p.IDFila,
		"chave_acesso":     p.ChaveAcesso,
		"nsu":              p.NSU,
		"numero_aprovacao": p.NumeroAprovacao,
		"bandeira":         p.Bandeira,
		"adquirente":       p.Adquirente,
		"cnpj":             p.CNPJ,
		"impressao_fiscal": p.ImpressaoFiscal,
		"numero_documento": p.NumeroDocumento,
	}
}

// RespostaFiscal sends the fiscal answer for queued payment p.IDFila.
func (c *Client) RespostaFiscal(ctx context.Context, p RespostaFiscalParams) (Response, error) {
	return c.Command(ctx, CmdRespostaFiscal, p.fields())
}
