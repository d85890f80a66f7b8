// Package api is the admin HTTP surface: provisioning and registry
// management. Tenant-scoped request handlers live in their own services and
// reach the router through TenantService.HandleForCode; nothing here exposes
// database enumeration or drops.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/salonsuite/tenant-management-service/internal/errs"
	"github.com/salonsuite/tenant-management-service/internal/model"
	"github.com/salonsuite/tenant-management-service/internal/service"
	"github.com/salonsuite/tenant-management-service/internal/store"
)

// Handler wires the admin routes.
type Handler struct {
	tenants      *service.TenantService
	provisioning *service.ProvisioningService
}

// NewHandler creates the admin API handler.
func NewHandler(tenants *service.TenantService, provisioning *service.ProvisioningService) *Handler {
	return &Handler{tenants: tenants, provisioning: provisioning}
}

// Register mounts the admin routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.Use(requestLogger)
	r.HandleFunc("/api/v1/tenants", h.provision).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/tenants", h.list).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/tenants/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/tenants/{id}/status", h.setStatus).Methods(http.MethodPut)
	r.HandleFunc("/api/v1/tenants/{id}", h.delete).Methods(http.MethodDelete)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}

type provisionRequest struct {
	Code          string `json:"code"`
	DisplayName   string `json:"display_name"`
	ContactEmail  string `json:"contact_email"`
	ContactPhone  string `json:"contact_phone"`
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
}

func (h *Handler) provision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errs.New(errs.CodeInvalidCode, "invalid request payload"))
		return
	}

	tenant, err := h.provisioning.Provision(r.Context(), req.Code,
		service.AdminCredentials{Email: req.AdminEmail, Password: req.AdminPassword},
		service.BusinessMetadata{DisplayName: req.DisplayName, ContactEmail: req.ContactEmail, ContactPhone: req.ContactPhone})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tenant)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := store.ListFilter{}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := model.ParseStatus(raw)
		if !ok {
			respondError(w, errs.Newf(errs.CodeInvalidCode, "unknown status %q", raw))
			return
		}
		filter.Status = status
		filter.IncludeDeleted = status == model.StatusDeleted
	}

	tenants, err := h.tenants.List(r.Context(), filter)
	if err != nil {
		respondError(w, err)
		return
	}
	if tenants == nil {
		tenants = []*model.Tenant{}
	}
	respondJSON(w, http.StatusOK, tenants)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, errs.New(errs.CodeInvalidCode, "invalid tenant id"))
		return
	}
	tenant, err := h.tenants.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tenant)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, errs.New(errs.CodeInvalidCode, "invalid tenant id"))
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errs.New(errs.CodeInvalidCode, "invalid request payload"))
		return
	}
	status, ok := model.ParseStatus(req.Status)
	if !ok {
		respondError(w, errs.Newf(errs.CodeInvalidCode, "unknown status %q", req.Status))
		return
	}

	if err := h.tenants.SetStatus(r.Context(), id, status); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, errs.New(errs.CodeInvalidCode, "invalid tenant id"))
		return
	}
	if err := h.tenants.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
