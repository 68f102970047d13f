package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/medsched/confirmlink/internal/service"
	"github.com/medsched/confirmlink/internal/tenant"
)

type Handlers struct {
	confirmations service.ConfirmationService
	registry      *tenant.Registry
}

func New(confirmations service.ConfirmationService, registry *tenant.Registry) *Handlers {
	return &Handlers{
		confirmations: confirmations,
		registry:      registry,
	}
}

// tenantBranding is the display data every response carries, so failure
// pages stay tenant-branded.
type tenantBranding struct {
	DisplayName string `json:"display_name"`
	Logo        string `json:"logo"`
}

// branding resolves display data for a tenant id, falling back to the
// default tenant so responses for unknown tenants stay indistinguishable.
func (h *Handlers) branding(tenantID string) *tenantBranding {
	tc, ok := h.registry.Resolve(tenantID)
	if !ok {
		tc = h.registry.Default()
	}
	return &tenantBranding{DisplayName: tc.DisplayName, Logo: tc.LogoRef}
}

// Helper functions for common response patterns
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}
