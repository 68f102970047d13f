package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medsched/confirmlink/internal/domain"
	"github.com/medsched/confirmlink/internal/http/response"
	"github.com/medsched/confirmlink/pkg/logger"
)

type linkResponse struct {
	Outcome string           `json:"outcome"`
	Status  string           `json:"status,omitempty"`
	View    *domain.LinkView `json:"view,omitempty"`
	Tenant  *tenantBranding  `json:"tenant,omitempty"`
}

type statusUpdateRequest struct {
	NewStatus string `json:"new_status"`
}

type statusUpdateResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
}

// ResolveLink handles the confirmation link a patient opens. Absent and
// expired links share one response body so token validity cannot be probed.
func (h *Handlers) ResolveLink(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	token := chi.URLParam(r, "token")
	ctx := context.WithValue(r.Context(), logger.TenantIDKey, tenantID)

	res, err := h.confirmations.ResolveLink(ctx, tenantID, token)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownTenant) {
			h.writeUnavailable(w, tenantID)
			return
		}
		h.writeFailure(ctx, w, err)
		return
	}

	switch res.Outcome {
	case domain.LinkActive:
		writeJSON(w, http.StatusOK, linkResponse{
			Outcome: string(domain.LinkActive),
			View:    res.View,
		})
	case domain.LinkAlreadyActed:
		writeJSON(w, http.StatusOK, linkResponse{
			Outcome: string(domain.LinkAlreadyActed),
			Status:  string(res.Status),
			Tenant:  h.branding(tenantID),
		})
	default:
		// Invalid and Expired are indistinguishable on the wire.
		h.writeUnavailable(w, tenantID)
	}
}

// UpdateStatus handles the confirm/cancel action from the form.
func (h *Handlers) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	token := chi.URLParam(r, "token")
	ctx := context.WithValue(r.Context(), logger.TenantIDKey, tenantID)

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, statusUpdateResponse{Success: false, Code: response.CodeInvalidInput})
		return
	}

	result, err := h.confirmations.ApplyTransition(ctx, tenantID, token, req.NewStatus)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidStatus):
			writeJSON(w, http.StatusBadRequest, statusUpdateResponse{Success: false, Code: response.CodeInvalidInput})
		case errors.Is(err, domain.ErrUnknownTenant):
			writeJSON(w, http.StatusOK, statusUpdateResponse{Success: false})
		default:
			h.writeFailure(ctx, w, err)
		}
		return
	}

	switch result {
	case domain.TransitionCommitted:
		writeJSON(w, http.StatusOK, statusUpdateResponse{Success: true})
	case domain.TransitionAlreadyActed:
		writeJSON(w, http.StatusOK, statusUpdateResponse{Success: false, Code: response.CodeAlreadyActed})
	default:
		writeJSON(w, http.StatusOK, statusUpdateResponse{Success: false})
	}
}

func (h *Handlers) writeUnavailable(w http.ResponseWriter, tenantID string) {
	writeJSON(w, http.StatusNotFound, linkResponse{
		Outcome: "unavailable",
		Tenant:  h.branding(tenantID),
	})
}

// writeFailure reports infrastructure and configuration failures without
// internal detail.
func (h *Handlers) writeFailure(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrStorageUnavailable) {
		logger.WarnContext(ctx, "Storage unavailable", "error", err)
		response.WriteError(w, http.StatusServiceUnavailable, "Service temporarily unavailable", response.CodeStorageUnavailable)
		return
	}

	logger.ErrorContext(ctx, "Confirmation request failed", "error", err)
	response.WriteError(w, http.StatusInternalServerError, "Internal error", response.CodeInternalError)
}
