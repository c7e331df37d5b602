package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kidregistry/internal/model"
)

var (
	exportOut      string
	exportStatuses []string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export community reports to an Excel workbook",
	Long: `Export writes the reports sheet (通報紀錄) with one row per report and a
summary sheet (統計) with counts per status.

Example:
  kidregistry export --out reports.xlsx
  kidregistry export --out approved.xlsx --status approved`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()
		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		svc, err := a.reports()
		if err != nil {
			return err
		}
		statuses := make([]model.ReportStatus, len(exportStatuses))
		for i, s := range exportStatuses {
			statuses[i] = model.ReportStatus(s)
		}

		if dir := filepath.Dir(exportOut); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
		}
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOut, err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close %s: %w", exportOut, closeErr)
			}
		}()

		n, err := svc.Export(ctx, f, statuses...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d reports to %s\n", n, exportOut)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportOut, "out", "reports.xlsx", "output workbook path")
	exportCmd.Flags().StringSliceVar(&exportStatuses, "status", nil, "only these statuses (default: all)")
}
