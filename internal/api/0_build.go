// Package api exposes the hub over HTTP.
package api

import (
	"context"
	"log/slog"

	"github.com/fulldump/box"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/hub"
)

// Build mounts the v1 resources over reg. Requests are logged to l.
func Build(reg *hub.Registry, l *slog.Logger) *box.B {

	b := box.NewBox()
	b.WithInterceptors(
		AccessLog(l),
		PrettyErrorInterceptor,
		RecoverFromPanic(l),
	)

	v1 := b.Resource("/v1")
	v1.WithInterceptors(
		injectRegistry(reg),
	)

	v1.Resource("/caixas/{caixa}/faixa").
		WithActions(
			box.Get(getFaixa),
		)

	v1.Resource("/caixas/{caixa}/sessoes").
		WithActions(
			box.Get(listSessoes),
			box.Post(nextSessao),
		)

	v1.Resource("/caixas/{caixa}/vendas").
		WithActions(
			box.Get(listVendas),
			box.Post(enviarVenda),
		)

	v1.Resource("/caixas/{caixa}/consultarsat").
		WithActions(
			box.Post(consultarSAT),
		)

	v1.Resource("/caixas/{caixa}/consultarnumerosessao").
		WithActions(
			box.Post(consultarNumeroSessao),
		)

	v1.Resource("/caixas/{caixa}/integrador/{comando}").
		WithActions(
			box.Post(integradorComando),
		)

	v1.Resource("/erros").
		WithActions(
			box.Get(listErros),
		)

	return b
}

const contextRegistryKey = "b3c1f4de-sathub-registry"

func injectRegistry(reg *hub.Registry) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {
			next(context.WithValue(ctx, contextRegistryKey, reg))
		}
	}
}

func getRegistry(ctx context.Context) *hub.Registry {
	return ctx.Value(contextRegistryKey).(*hub.Registry)
}
