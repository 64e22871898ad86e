package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/caixa"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/config"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/journal"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Scaffold sathub.toml, the local Integrador tree and .gitignore entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			created, err := config.ScaffoldProject(dir)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatScaffoldResult(created))
			return nil
		},
	}
}

func formatScaffoldResult(created []string) string {
	if len(created) == 0 {
		return "All files already exist — nothing to create.\n"
	}
	var b strings.Builder
	for _, path := range created {
		fmt.Fprintf(&b, "Created %s\n", path)
	}
	return b.String()
}

func faixaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "faixa [caixa]",
		Short: "Show the session-number range of a terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			from, to := a.caixa, a.caixa
			if len(args) == 1 {
				t, err := strconv.Atoi(args[0])
				if err != nil {
					return usageError("caixa must be a number", err)
				}
				from, to = t, t
			}
			if cmd.Flags().Changed("from") || cmd.Flags().Changed("to") {
				from, _ = cmd.Flags().GetInt("from")
				to, _ = cmd.Flags().GetInt("to")
			}
			entries, err := caixa.Table(from, to)
			if err != nil {
				return usageError("faixa", err)
			}
			return a.out.print(entries, func(w io.Writer) error {
				_, err := io.WriteString(w, formatFaixas(entries))
				return err
			})
		},
	}
	cmd.Flags().Int("from", caixa.CaixaMin, "first terminal of a table")
	cmd.Flags().Int("to", caixa.CaixaMax, "last terminal of a table")
	return cmd
}

func formatFaixas(entries []caixa.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-7s %s\n", "caixa", "min", "max")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-6d %-7d %d\n", e.Caixa, e.Faixa.Min, e.Faixa.Max)
	}
	return b.String()
}

func sessaoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessao",
		Short: "Issue and inspect session numbers",
	}
	cmd.AddCommand(sessaoNextCmd(), sessaoHistoryCmd())
	return cmd
}

type sessaoResult struct {
	Caixa        int  `json:"caixa"`
	NumeroSessao int  `json:"numero_sessao"`
	Persistido   bool `json:"persistido"`
}

func sessaoNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Issue the next session number for the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			term, err := a.terminal()
			if err != nil {
				return err
			}
			n, err := term.Sessoes.NextContext(cmd.Context())
			if n == 0 && err != nil {
				return err
			}
			res := sessaoResult{Caixa: term.Caixa, NumeroSessao: n, Persistido: err == nil}
			return a.out.print(res, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, n)
				return err
			})
		},
	}
}

type historyResult struct {
	Caixa     int         `json:"caixa"`
	Faixa     caixa.Range `json:"faixa"`
	Capacity  int         `json:"capacidade"`
	Historico []int       `json:"historico"`
}

func sessaoHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List the session numbers that will not be reissued, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			term, err := a.terminal()
			if err != nil {
				return err
			}
			res := historyResult{
				Caixa:     term.Caixa,
				Faixa:     term.Sessoes.Range(),
				Capacity:  term.Sessoes.Capacity(),
				Historico: term.Sessoes.History(),
			}
			return a.out.print(res, func(w io.Writer) error {
				_, err := io.WriteString(w, formatHistory(res))
				return err
			})
		},
	}
}

func formatHistory(h historyResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "caixa %d  faixa %s  %d/%d\n", h.Caixa, h.Faixa, len(h.Historico), h.Capacity)
	for _, n := range h.Historico {
		fmt.Fprintf(&b, "  %d\n", n)
	}
	return b.String()
}

func journalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Read the sales and error journals",
	}
	cmd.AddCommand(journalVendasCmd(), journalErrosCmd())
	return cmd
}

func journalVendasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vendas",
		Short: "List the last confirmed sales of the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			term, err := a.terminal()
			if err != nil {
				return err
			}
			entries, err := filterEntries(cmd, term.Sales.Entries())
			if err != nil {
				return err
			}
			return a.out.print(entries, func(w io.Writer) error {
				_, err := io.WriteString(w, formatSales(entries))
				return err
			})
		},
	}
	cmd.Flags().String("filter", "", `JSON filter, e.g. {"pedido": "P-1"}`)
	return cmd
}

func journalErrosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "erros",
		Short: "List recorded errors of every terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			entries, err := filterEntries(cmd, a.reg.Errors.Entries())
			if err != nil {
				return err
			}
			return a.out.print(entries, func(w io.Writer) error {
				_, err := io.WriteString(w, formatErrors(entries))
				return err
			})
		},
	}
	cmd.Flags().String("filter", "", `JSON filter, e.g. {"caixa": 3} or {"operacao": {"$eq": "EnviarPagamento"}}`)
	return cmd
}

func filterEntries[T any](cmd *cobra.Command, entries []T) ([]T, error) {
	raw, _ := cmd.Flags().GetString("filter")
	filter, err := journal.ParseFilter(raw)
	if err != nil {
		return nil, usageError("--filter", err)
	}
	return journal.Filter(entries, filter)
}

func formatSales(entries []journal.SaleEntry) string {
	if len(entries) == 0 {
		return "No sales recorded.\n"
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%-20s %s\n", e.Pedido, e.Cupom)
	}
	return b.String()
}

func formatErrors(entries []journal.ErrorEntry) string {
	if len(entries) == 0 {
		return "No errors recorded.\n"
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s  caixa %-3d %-28s %s\n",
			e.Timestamp.Local().Format(time.DateTime), e.Caixa, e.Operacao, e.Mensagem)
	}
	return b.String()
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove orphaned Integrador request files",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, appOptions{})
			if err != nil {
				return err
			}
			term, err := a.terminal()
			if err != nil {
				return err
			}
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			n, err := term.Integrador.SweepOrphans(olderThan)
			if err != nil {
				return err
			}
			return a.out.print(map[string]int{"removidos": n}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Removed %d orphaned request(s).\n", n)
				return err
			})
		},
	}
	cmd.Flags().Duration("older-than", 10*time.Minute, "only remove requests older than this")
	return cmd
}
