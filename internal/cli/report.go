package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/report"
)

var (
	reportName        string
	reportLocation    string
	reportDescription string
	reportAttachments []string
	reportStatus      string
	reportNote        string
	reportListStatus  string
)

// reportCmd groups community report commands
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Submit and review community reports",
	Long: `Community reports are stored as pending and sent to reviewers. Approved
reports enter the registry on the next sync of the community source.`,
}

var reportSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a community report",
	Example: `  kidregistry report submit --name 李大同 --location 高雄市 \
    --description "安親班老師多次體罰學生，家長已向教育局反映"`,
	RunE: func(cmd *cobra.Command, args []string) error {
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
		res, err := svc.Submit(ctx, model.ReportSubmission{
			SuspectName: reportName,
			Location:    reportLocation,
			Description: reportDescription,
			Attachments: reportAttachments,
		})
		if res.Stored {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Report #%d stored (%s)\n", res.Report.ID, report.StatusLabel(res.Report.Status))
			if res.NotifyErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ reviewers were not notified: %v\n", res.NotifyErr)
			}
		}
		return err
	},
}

var reportReviewCmd = &cobra.Command{
	Use:   "review <id>",
	Short: "Move a report through pending → reviewing → approved|rejected",
	Args:  cobra.ExactArgs(1),
	Example: `  kidregistry report review 42 --status reviewing
  kidregistry report review 42 --status approved --note "已查證判決書"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errs.Invalid("id", "must be a number")
		}
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
		r, err := svc.Review(ctx, id, model.ReportStatus(reportStatus), reportNote)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Report #%d is now %s\n", r.ID, report.StatusLabel(r.Status))
		return nil
	},
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
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
		reports, err := svc.List(ctx, model.ReportStatus(reportListStatus))
		if err != nil {
			return err
		}
		printReports(cmd.OutOrStdout(), reports)
		return nil
	},
}

func printReports(w io.Writer, reports []model.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSUSPECT\tLOCATION\tSTATUS\tCREATED\tNOTE")
	for _, r := range reports {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.SuspectName, r.Location, report.StatusLabel(r.Status),
			r.CreatedAt.Format("2006-01-02 15:04"), r.ReviewNote)
	}
	_ = tw.Flush()
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportSubmitCmd, reportReviewCmd, reportListCmd)

	reportSubmitCmd.Flags().StringVar(&reportName, "name", "", "name of the person reported (required)")
	reportSubmitCmd.Flags().StringVar(&reportLocation, "location", "", "where it happened")
	reportSubmitCmd.Flags().StringVar(&reportDescription, "description", "", "what happened, at least 10 characters (required)")
	reportSubmitCmd.Flags().StringSliceVar(&reportAttachments, "attachment", nil, "attachment URL (repeatable)")

	reportReviewCmd.Flags().StringVar(&reportStatus, "status", "", "new status: reviewing, approved, rejected")
	reportReviewCmd.Flags().StringVar(&reportNote, "note", "", "review note")
	_ = reportReviewCmd.MarkFlagRequired("status")

	reportListCmd.Flags().StringVar(&reportListStatus, "status", "", "only this status")
}
