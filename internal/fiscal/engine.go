// Package fiscal talks to the fiscal device (SAT) through an external driver
// and records confirmed sales.
package fiscal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ErrDeviceUnavailable is returned when the fiscal engine could not be
// reached or failed. The engine's own message is kept verbatim.
var ErrDeviceUnavailable = errors.New("fiscal: device unavailable")

// Engine is the fiscal device library. Every call returns the device's
// pipe-delimited answer verbatim.
type Engine interface {
	EnviarDadosVenda(ctx context.Context, sessao int, xml string) (string, error)
	ConsultarSAT(ctx context.Context, sessao int) (string, error)
	ConsultarNumeroSessao(ctx context.Context, sessao, numero int) (string, error)
}

// ExecEngine implements Engine by running a driver executable bridging to
// the native device library:
//
//	<driver> <funcao> <sessao> [args...]
//
// The payload, when any, is written to stdin and the answer read from
// stdout. The activation code is passed in SATHUB_CODIGO_ATIVACAO.
type ExecEngine struct {
	// Driver is the path to the driver executable.
	Driver         string
	CodigoAtivacao string
}

// NewExecEngine creates an ExecEngine for driver.
func NewExecEngine(driver, codigoAtivacao string) *ExecEngine {
	return &ExecEngine{Driver: driver, CodigoAtivacao: codigoAtivacao}
}

func (e *ExecEngine) EnviarDadosVenda(ctx context.Context, sessao int, xml string) (string, error) {
	return e.call(ctx, "EnviarDadosVenda", sessao, xml)
}

func (e *ExecEngine) ConsultarSAT(ctx context.Context, sessao int) (string, error) {
	return e.call(ctx, "ConsultarSAT", sessao, "")
}

func (e *ExecEngine) ConsultarNumeroSessao(ctx context.Context, sessao, numero int) (string, error) {
	return e.call(ctx, "ConsultarNumeroSessao", sessao, "", strconv.Itoa(numero))
}

func (e *ExecEngine) call(ctx context.Context, funcao string, sessao int, stdin string, extra ...string) (string, error) {
	if e.Driver == "" {
		return "", fmt.Errorf("%w: no fiscal driver configured", ErrDeviceUnavailable)
	}
	args := append([]string{funcao, strconv.Itoa(sessao)}, extra...)
	cmd := exec.CommandContext(ctx, e.Driver, args...)
	cmd.Env = append(os.Environ(), "SATHUB_CODIGO_ATIVACAO="+e.CodigoAtivacao)
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := err.Error()
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			msg = detail
		}
		return "", fmt.Errorf("%w: %s", ErrDeviceUnavailable, msg)
	}
	return strings.TrimRight(stdout.String(), "\r\n"), nil
}
