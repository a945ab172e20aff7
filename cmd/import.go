package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apexdesk/enrich-cli/internal/model"
)

var importJSONPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk import resolved tickets into the history store",
	Long:  "Reads a JSON array of resolved tickets and upserts them as historical items for the ticket-history source.",
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

		data, err := os.ReadFile(importJSONPath)
		if err != nil {
			return eris.Wrap(err, "read import file")
		}

		var items []model.HistoricalItem
		if err := json.Unmarshal(data, &items); err != nil {
			return eris.Wrap(err, "parse import file")
		}

		now := time.Now().UTC()
		var imported, skipped int
		for _, item := range items {
			if item.TenantID == "" || item.Subject == "" {
				skipped++
				continue
			}
			if item.ID == "" {
				item.ID = uuid.NewString()
			}
			if item.Source == "" {
				item.Source = model.IngestBulkImport
			}
			if item.IngestedAt.IsZero() {
				item.IngestedAt = now
			}
			if err := st.UpsertHistoricalItem(ctx, item); err != nil {
				return eris.Wrapf(err, "upsert item %s", item.ID)
			}
			imported++
		}

		zap.L().Info("import complete",
			zap.Int("imported", imported),
			zap.Int("skipped", skipped),
			zap.String("file", importJSONPath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importJSONPath, "file", "", "path to JSON file of resolved tickets (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
