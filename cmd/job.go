package main

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apexdesk/enrich-cli/internal/model"
)

var (
	jobTenant      string
	jobTicket      string
	jobDescription string
	jobPriority    string
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Run enhancement for a single ticket",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		job := model.JobDescriptor{
			TenantID:      jobTenant,
			TicketID:      jobTicket,
			Description:   jobDescription,
			Priority:      model.Priority(jobPriority),
			CorrelationID: uuid.NewString(),
		}.Normalize()

		decision, err := env.Orchestrator.Process(ctx, job, 1)
		if err != nil {
			if decision.Requeue {
				zap.L().Warn("job failed with a retryable error",
					zap.String("ticket_id", job.TicketID),
					zap.Duration("suggested_backoff", decision.Backoff),
				)
			}
			return eris.Wrap(err, "job run")
		}

		zap.L().Info("enhancement complete",
			zap.String("tenant_id", job.TenantID),
			zap.String("ticket_id", job.TicketID),
		)

		// Print the final record JSON to stdout
		records, err := env.Store.ListRecords(ctx, recordFilterForTicket(job))
		if err != nil || len(records) == 0 {
			return nil
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records[0])
	},
}

func init() {
	jobCmd.Flags().StringVar(&jobTenant, "tenant", "", "tenant ID (required)")
	jobCmd.Flags().StringVar(&jobTicket, "ticket", "", "ticket ID (required)")
	jobCmd.Flags().StringVar(&jobDescription, "description", "", "ticket description text")
	jobCmd.Flags().StringVar(&jobPriority, "priority", "", "ticket priority (low, medium, high, critical)")
	_ = jobCmd.MarkFlagRequired("tenant")
	_ = jobCmd.MarkFlagRequired("ticket")
	rootCmd.AddCommand(jobCmd)
}
