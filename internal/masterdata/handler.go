package masterdata

import (
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/depot-aim/depot-aim/internal/platform/httpx"
	"github.com/depot-aim/depot-aim/internal/rbac"
)

// Handler exposes the master data API.
type Handler struct {
	logger  *slog.Logger
	service Service
	guard   rbac.Middleware
}

// NewHandler builds the Handler.
func NewHandler(logger *slog.Logger, service Service, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll("masterdata.view"))
		r.Get("/organizations", h.listOrganizations)
		r.Get("/organizations/{id}", h.getOrganization)
		r.Get("/departments", h.listDepartments)
		r.Get("/departments/{id}", h.getDepartment)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll("masterdata.edit"))
		r.Post("/organizations", h.createOrganization)
		r.Put("/organizations/{id}", h.updateOrganization)
		r.Delete("/organizations/{id}", h.deleteOrganization)
		r.Post("/departments", h.createDepartment)
		r.Put("/departments/{id}", h.updateDepartment)
		r.Delete("/departments/{id}", h.deleteDepartment)
	})
}

type organizationPayload struct {
	ID       int64  `json:"id,omitempty"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Address  string `json:"address,omitempty"`
	IsActive bool   `json:"is_active"`
}

type departmentPayload struct {
	ID             int64  `json:"id,omitempty"`
	OrganizationID int64  `json:"organization_id"`
	Name           string `json:"name"`
	Code           string `json:"code"`
	IsActive       bool   `json:"is_active"`
}

func (h *Handler) listOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, total, err := h.service.ListOrganizations(r.Context(), filtersFromQuery(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]organizationPayload, 0, len(orgs))
	for _, org := range orgs {
		out = append(out, organizationPayload{ID: org.ID, Name: org.Name, Code: org.Code, Address: org.Address, IsActive: org.IsActive})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"organizations": out, "total": total})
}

func (h *Handler) getOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	org, err := h.service.GetOrganization(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, organizationPayload{ID: org.ID, Name: org.Name, Code: org.Code, Address: org.Address, IsActive: org.IsActive})
}

func (h *Handler) createOrganization(w http.ResponseWriter, r *http.Request) {
	var req organizationPayload
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	org, err := h.service.CreateOrganization(r.Context(), Organization{Name: req.Name, Code: req.Code, Address: req.Address, IsActive: req.IsActive})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, organizationPayload{ID: org.ID, Name: org.Name, Code: org.Code, Address: org.Address, IsActive: org.IsActive})
}

func (h *Handler) updateOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req organizationPayload
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.service.UpdateOrganization(r.Context(), id, Organization{Name: req.Name, Code: req.Code, Address: req.Address, IsActive: req.IsActive}); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteOrganization(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listDepartments(w http.ResponseWriter, r *http.Request) {
	depts, total, err := h.service.ListDepartments(r.Context(), filtersFromQuery(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]departmentPayload, 0, len(depts))
	for _, dept := range depts {
		out = append(out, departmentPayload{ID: dept.ID, OrganizationID: dept.OrganizationID, Name: dept.Name, Code: dept.Code, IsActive: dept.IsActive})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"departments": out, "total": total})
}

func (h *Handler) getDepartment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	dept, err := h.service.GetDepartment(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, departmentPayload{ID: dept.ID, OrganizationID: dept.OrganizationID, Name: dept.Name, Code: dept.Code, IsActive: dept.IsActive})
}

func (h *Handler) createDepartment(w http.ResponseWriter, r *http.Request) {
	var req departmentPayload
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	dept, err := h.service.CreateDepartment(r.Context(), Department{OrganizationID: req.OrganizationID, Name: req.Name, Code: req.Code, IsActive: req.IsActive})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, departmentPayload{ID: dept.ID, OrganizationID: dept.OrganizationID, Name: dept.Name, Code: dept.Code, IsActive: dept.IsActive})
}

func (h *Handler) updateDepartment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req departmentPayload
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.service.UpdateDepartment(r.Context(), id, Department{OrganizationID: req.OrganizationID, Name: req.Name, Code: req.Code, IsActive: req.IsActive}); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) deleteDepartment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteDepartment(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func filtersFromQuery(r *http.Request) ListFilters {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	orgID, _ := strconv.ParseInt(q.Get("organization_id"), 10, 64)
	return ListFilters{Query: q.Get("q"), OrganizationID: orgID, Limit: limit, Offset: offset}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "path id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateCode):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
	default:
		h.logger.Error("masterdata handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
