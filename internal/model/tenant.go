package model

// TenantConfig holds the per-tenant endpoints and credentials the pipeline
// reads. Configuration CRUD is owned by the configuration-management service;
// the pipeline treats this as read-only.
type TenantConfig struct {
	TenantID         string `json:"tenant_id"`
	TicketingBaseURL string `json:"ticketing_base_url"`
	TicketingAPIKey  string `json:"ticketing_api_key"`
	DocSearchBaseURL string `json:"doc_search_base_url"`
	DocSearchAPIKey  string `json:"doc_search_api_key"`
}
