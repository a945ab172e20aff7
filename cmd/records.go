package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/apexdesk/enrich-cli/internal/model"
	"github.com/apexdesk/enrich-cli/internal/store"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect enhancement records",
	Long:  "Commands for listing and viewing the enhancement audit trail.",
}

// -- records list --

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enhancement records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		tenantID, _ := cmd.Flags().GetString("tenant")
		ticketID, _ := cmd.Flags().GetString("ticket")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.RecordFilter{
			Status:   model.RecordStatus(status),
			TenantID: tenantID,
			TicketID: ticketID,
			Limit:    limit,
		}

		records, err := st.ListRecords(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "records list")
		}

		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No records found.")
			return nil
		}

		formatRecordsList(os.Stdout, records)
		return nil
	},
}

// -- records show --

var recordsShowCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show full details of a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		record, err := st.GetRecord(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "records show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	},
}

func init() {
	recordsListCmd.Flags().String("status", "", "filter by record status (pending, completed, failed)")
	recordsListCmd.Flags().String("tenant", "", "filter by tenant ID")
	recordsListCmd.Flags().String("ticket", "", "filter by ticket ID")
	recordsListCmd.Flags().Int("limit", 50, "max number of records to display")

	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsShowCmd)
	rootCmd.AddCommand(recordsCmd)
}

// recordFilterForTicket returns a filter matching the most recent record for
// the given job's ticket.
func recordFilterForTicket(job model.JobDescriptor) store.RecordFilter {
	return store.RecordFilter{
		TenantID: job.TenantID,
		TicketID: job.TicketID,
		Limit:    1,
	}
}

// formatRecordsList writes a tabular list of records to w.
func formatRecordsList(out io.Writer, records []model.EnhancementRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTENANT\tTICKET\tSTATUS\tFALLBACK\tDURATION_MS\tCREATED")
	for _, r := range records {
		fallback := ""
		if r.UsedFallback {
			fallback = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID,
			r.TenantID,
			r.TicketID,
			r.Status,
			fallback,
			r.ProcessingTimeMs,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	_ = w.Flush()
}
