package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/dataset"
	"github.com/riskibarqy/fpl-data-pipeline/internal/usecase"
	"github.com/spf13/cobra"
)

// Cells wider than this are cut in check output; fixtures carry nested stats.
const maxCellWidth = 48

func newCheckCommand(bootstrap Bootstrap, envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:           "check",
		Short:         "Hit every data source once and print small samples.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := bootstrap(ctx, *envFile)
			if err != nil {
				return err
			}
			defer closeServices(svc)

			report, err := svc.Checker.Check(ctx)
			if err != nil {
				return err
			}
			renderReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func renderReport(w io.Writer, report usecase.CheckReport) {
	fmt.Fprintf(w, "FPL bootstrap keys: %s\n", strings.Join(report.BootstrapKeys, ", "))
	fmt.Fprintf(w, "FPL teams: %d\n\n", report.TeamsCount)

	renderTable(w, "FPL fixtures", report.Fixtures)
	renderTable(w, "FPL player histories", report.HistorySample)
	renderTable(w, "Understat players", report.UnderstatSample)
}

func renderTable(w io.Writer, title string, data *dataset.Table) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(title)

	if data == nil || len(data.Columns()) == 0 {
		t.AppendRow(table.Row{"no rows"})
		t.Render()
		fmt.Fprintln(w)
		return
	}

	cols := data.Columns()
	header := make(table.Row, 0, len(cols))
	for _, col := range cols {
		header = append(header, col)
	}
	t.AppendHeader(header)

	for i := range data.Len() {
		row := make(table.Row, 0, len(cols))
		for _, col := range cols {
			row = append(row, truncateCell(dataset.FormatCell(data.Value(i, col))))
		}
		t.AppendRow(row)
	}
	t.Render()
	fmt.Fprintln(w)
}

func truncateCell(s string) string {
	runes := []rune(s)
	if len(runes) <= maxCellWidth {
		return s
	}
	return string(runes[:maxCellWidth-3]) + "..."
}
