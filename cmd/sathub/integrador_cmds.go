package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/integrador"
)

func integradorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrador",
		Short: "Exchange commands with the Integrador",
	}
	cmd.AddCommand(integradorListCmd(), integradorRunCmd())
	return cmd
}

func integradorListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available command templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			out, err := newPrinter(format, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			commands := integrador.MustTemplateRenderer().Commands()
			return out.print(commands, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, strings.Join(commands, "\n"))
				return err
			})
		},
	}
}

type comandoResult struct {
	Funcao  string `json:"funcao"`
	ID      string `json:"numero_identificador"`
	Arquivo string `json:"arquivo"`
	Retorno any    `json:"retorno"`
}

func integradorRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <comando>",
		Short: "Send a command and wait for the correlated response",
		Example: `  sathub integrador run VerificarStatusValidador --field cnpj=00000000000191 --field id_fila=42
  sathub integrador run EnviarPagamentosEmArmazenamentoLocal --caixa 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetStringArray("field")
			fields, err := parseFields(raw)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			term, err := a.terminal()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			var resp integrador.Response
			err = a.withIntegrador(ctx, func(ctx context.Context) error {
				var err error
				resp, err = term.Integrador.Command(ctx, args[0], fields)
				return err
			})
			if err != nil {
				return err
			}
			res := comandoResult{
				Funcao:  args[0],
				ID:      resp.ID,
				Arquivo: resp.SourcePath,
				Retorno: resp.Payload.Value(),
			}
			return a.out.print(res, func(w io.Writer) error {
				_, err := io.WriteString(w, formatResponse(resp))
				return err
			})
		},
	}
	cmd.Flags().StringArray("field", nil, "template field as key=value (repeatable)")
	return cmd
}

// parseFields turns key=value pairs into template fields.
func parseFields(raw []string) (integrador.Fields, error) {
	fields := integrador.Fields{}
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, usageError(fmt.Sprintf("--field %q: want key=value", kv), nil)
		}
		fields[strings.TrimSpace(k)] = v
	}
	return fields, nil
}

func formatResponse(r integrador.Response) string {
	if !r.Payload.Structured() {
		return r.Payload.Text + "\n"
	}
	keys := make([]string, 0, len(r.Payload.Fields))
	for k := range r.Payload.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "numero_identificador: %s\n", r.ID)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s: %s\n", k, r.Payload.Fields[k])
	}
	return b.String()
}
