package assets

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/depot-aim/depot-aim/internal/platform/httpx"
	"github.com/depot-aim/depot-aim/internal/rbac"
)

// Handler exposes the asset registry API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	guard    rbac.Middleware
}

// NewHandler builds the Handler.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), guard: guard}
}

// MountRoutes registers asset routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll("assets.view"))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/categories", h.listCategories)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll("assets.edit"))
		r.Post("/", h.register)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/issue", h.issue)
		r.Post("/{id}/return", h.returnToStock)
		r.Post("/{id}/repair", h.sendToRepair)
		r.Post("/{id}/write-off", h.writeOff)
		r.Post("/categories", h.createCategory)
		r.Delete("/categories/{id}", h.deleteCategory)
	})
}

type assetResponse struct {
	ID           int64  `json:"id"`
	Tag          string `json:"tag"`
	Name         string `json:"name"`
	CategoryID   int64  `json:"category_id"`
	DepartmentID *int64 `json:"department_id"`
	SerialNumber string `json:"serial_number,omitempty"`
	Status       string `json:"status"`
	Note         string `json:"note,omitempty"`
}

func toAssetResponse(asset Asset) assetResponse {
	return assetResponse{
		ID:           asset.ID,
		Tag:          asset.Tag,
		Name:         asset.Name,
		CategoryID:   asset.CategoryID,
		DepartmentID: asset.DepartmentID,
		SerialNumber: asset.SerialNumber,
		Status:       string(asset.Status),
		Note:         asset.Note,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	categoryID, _ := strconv.ParseInt(q.Get("category_id"), 10, 64)
	departmentID, _ := strconv.ParseInt(q.Get("department_id"), 10, 64)
	filters := ListFilters{
		Query:        q.Get("q"),
		CategoryID:   categoryID,
		DepartmentID: departmentID,
		Status:       Status(q.Get("status")),
		Limit:        limit,
		Offset:       offset,
	}
	assets, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]assetResponse, 0, len(assets))
	for _, asset := range assets {
		out = append(out, toAssetResponse(asset))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assets": out, "total": total})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	asset, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAssetResponse(asset))
}

type registerRequest struct {
	Tag          string `json:"tag" validate:"max=40"`
	Name         string `json:"name" validate:"required,max=200"`
	CategoryID   int64  `json:"category_id" validate:"required,gt=0"`
	SerialNumber string `json:"serial_number" validate:"max=120"`
	Note         string `json:"note" validate:"max=1000"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	asset, err := h.service.Register(r.Context(), h.actorID(r), Asset{
		Tag:          req.Tag,
		Name:         req.Name,
		CategoryID:   req.CategoryID,
		SerialNumber: req.SerialNumber,
		Note:         req.Note,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAssetResponse(asset))
}

type updateRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	CategoryID   int64  `json:"category_id" validate:"required,gt=0"`
	SerialNumber string `json:"serial_number" validate:"max=120"`
	Note         string `json:"note" validate:"max=1000"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	asset, err := h.service.Update(r.Context(), h.actorID(r), id, req.Name, req.CategoryID, req.SerialNumber, req.Note)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAssetResponse(asset))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), h.actorID(r), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

type issueRequest struct {
	DepartmentID int64 `json:"department_id" validate:"required,gt=0"`
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req issueRequest
	if !h.decode(w, r, &req) {
		return
	}
	asset, err := h.service.Issue(r.Context(), h.actorID(r), id, req.DepartmentID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAssetResponse(asset))
}

func (h *Handler) returnToStock(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.service.Return)
}

func (h *Handler) sendToRepair(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.service.SendToRepair)
}

func (h *Handler) writeOff(w http.ResponseWriter, r *http.Request) {
	h.simpleTransition(w, r, h.service.WriteOff)
}

func (h *Handler) simpleTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actorID, id int64) (Asset, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	asset, err := fn(r.Context(), h.actorID(r), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAssetResponse(asset))
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.Categories(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	type categoryResponse struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, cat := range cats {
		out = append(out, categoryResponse{ID: cat.ID, Name: cat.Name, Description: cat.Description})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"categories": out})
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	cat, err := h.service.CreateCategory(r.Context(), h.actorID(r), req.Name, req.Description)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": cat.ID, "name": cat.Name, "description": cat.Description})
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteCategory(r.Context(), h.actorID(r), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) actorID(r *http.Request) int64 {
	if user, ok := rbac.UserFromContext(r.Context()); ok {
		return user.ID
	}
	return 0
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
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
	case errors.Is(err, ErrDuplicateTag):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
	default:
		h.logger.Error("assets handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
