package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apexdesk/enrich-cli/internal/model"
)

var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "Manage tenant configuration",
}

// -- tenants set --

var (
	tenantSetID           string
	tenantSetTicketingURL string
	tenantSetTicketingKey string
	tenantSetDocSearchURL string
	tenantSetDocSearchKey string
)

var tenantsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or update a tenant's endpoints and credentials",
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

		tc := model.TenantConfig{
			TenantID:         tenantSetID,
			TicketingBaseURL: tenantSetTicketingURL,
			TicketingAPIKey:  tenantSetTicketingKey,
			DocSearchBaseURL: tenantSetDocSearchURL,
			DocSearchAPIKey:  tenantSetDocSearchKey,
		}

		if err := st.UpsertTenantConfig(ctx, tc); err != nil {
			return eris.Wrap(err, "tenants set")
		}

		zap.L().Info("tenant config saved", zap.String("tenant_id", tc.TenantID))
		return nil
	},
}

// -- tenants show --

var tenantsShowCmd = &cobra.Command{
	Use:   "show <tenant-id>",
	Short: "Show a tenant's configuration",
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

		tc, err := st.GetTenantConfig(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "tenants show")
		}

		// Credentials stay out of terminal output.
		tc.TicketingAPIKey = ""
		tc.DocSearchAPIKey = ""

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tc)
	},
}

func init() {
	tenantsSetCmd.Flags().StringVar(&tenantSetID, "tenant", "", "tenant ID (required)")
	tenantsSetCmd.Flags().StringVar(&tenantSetTicketingURL, "ticketing-url", "", "ticketing system base URL (required)")
	tenantsSetCmd.Flags().StringVar(&tenantSetTicketingKey, "ticketing-key", "", "ticketing system API key")
	tenantsSetCmd.Flags().StringVar(&tenantSetDocSearchURL, "docsearch-url", "", "documentation search base URL")
	tenantsSetCmd.Flags().StringVar(&tenantSetDocSearchKey, "docsearch-key", "", "documentation search API key")
	_ = tenantsSetCmd.MarkFlagRequired("tenant")
	_ = tenantsSetCmd.MarkFlagRequired("ticketing-url")

	tenantsCmd.AddCommand(tenantsSetCmd)
	tenantsCmd.AddCommand(tenantsShowCmd)
	rootCmd.AddCommand(tenantsCmd)
}
