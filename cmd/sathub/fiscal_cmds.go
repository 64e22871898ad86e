package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/fiscal"
)

func vendaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "venda",
		Short: "Submit a sale document to the fiscal device",
		Long: `Submit a sale document to the fiscal device. The document is read from
--file, or from stdin when --file is "-". A sale already confirmed with the
same document and order is not sent again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			file, _ := cmd.Flags().GetString("file")
			pedido, _ := cmd.Flags().GetString("pedido")
			xml, err := readDocument(cmd, file)
			if err != nil {
				return err
			}
			term, err := a.terminal()
			if err != nil {
				return err
			}
			res, err := term.Vendas.Enviar(cmd.Context(), xml, pedido)
			if err != nil {
				return err
			}
			return a.out.print(res, func(w io.Writer) error {
				_, err := io.WriteString(w, formatResultado(res))
				return err
			})
		},
	}
	cmd.Flags().String("file", "-", `sale document, "-" for stdin`)
	cmd.Flags().String("pedido", "", "order identifier used for duplicate detection")
	return cmd
}

func readDocument(cmd *cobra.Command, file string) (string, error) {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", usageError("read sale document", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", usageError("sale document is empty", nil)
	}
	return string(data), nil
}

func consultarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consultar",
		Short: "Query the fiscal device",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "sat",
			Short: "Check that the device is responding",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := newApp(cmd, appOptions{})
				if err != nil {
					return err
				}
				term, err := a.terminal()
				if err != nil {
					return err
				}
				res, err := term.Vendas.Consultar(cmd.Context())
				if err != nil {
					return err
				}
				return a.out.print(res, func(w io.Writer) error {
					_, err := io.WriteString(w, formatResultado(res))
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "sessao <numero>",
			Short: "Ask the device for its answer to an earlier session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				numero, err := strconv.Atoi(args[0])
				if err != nil || numero <= 0 {
					return usageError(fmt.Sprintf("invalid session number %q", args[0]), err)
				}
				a, err := newApp(cmd, appOptions{})
				if err != nil {
					return err
				}
				term, err := a.terminal()
				if err != nil {
					return err
				}
				res, err := term.Vendas.ConsultarNumeroSessao(cmd.Context(), numero)
				if err != nil {
					return err
				}
				return a.out.print(res, func(w io.Writer) error {
					_, err := io.WriteString(w, formatResultado(res))
					return err
				})
			},
		},
	)
	return cmd
}

func formatResultado(r fiscal.Resultado) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %s\n", "funcao:", r.Funcao)
	if r.Sessao != 0 {
		fmt.Fprintf(&b, "%-10s %d\n", "sessao:", r.Sessao)
	}
	if r.Codigo != "" {
		fmt.Fprintf(&b, "%-10s %s\n", "codigo:", r.Codigo)
	}
	if r.Mensagem != "" {
		fmt.Fprintf(&b, "%-10s %s\n", "mensagem:", r.Mensagem)
	}
	if r.Cupom != "" {
		fmt.Fprintf(&b, "%-10s %s\n", "cupom:", r.Cupom)
	}
	if r.Duplicada {
		fmt.Fprintf(&b, "%-10s %s\n", "duplicada:", "sim")
	}
	if r.Codigo == "" && r.Retorno != "" {
		fmt.Fprintf(&b, "%-10s %s\n", "retorno:", r.Retorno)
	}
	return b.String()
}
