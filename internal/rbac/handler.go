package rbac

import (
	"errors"
	"net/http"
	"strconv"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/depot-aim/depot-aim/internal/platform/httpx"
)

// Handler exposes the authorization admin API consumed by the SPA.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	guard    Middleware
}

// NewHandler builds the Handler.
func NewHandler(logger *slog.Logger, service *Service, guard Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		guard:    guard,
	}
}

// MountRoutes registers the authorization routes. All routes require an
// authenticated user; mutations additionally require the admin rights.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.guard.RequireAuthenticated)

	r.Get("/roles/hierarchy", h.hierarchy)
	r.Get("/me/rights", h.myRights)
	r.Post("/check", h.checkAccess)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll("rbac.view"))
		r.Get("/roles", h.listRoles)
		r.Get("/rights", h.listRights)
		r.Get("/assignments", h.listAssignments)
		r.Get("/pages", h.listPages)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll("rbac.edit"))
		r.Post("/roles", h.createRole)
		r.Put("/roles/{id}", h.updateRole)
		r.Delete("/roles/{id}", h.deleteRole)
		r.Post("/rights", h.createRight)
		r.Put("/rights/{id}", h.updateRight)
		r.Delete("/rights/{id}", h.deleteRight)
		r.Post("/assignments", h.applyAssignment)
		r.Post("/assignments/cascade", h.cascadeAssignment)
		r.Post("/pages", h.createPage)
		r.Put("/pages/{id}", h.updatePage)
		r.Delete("/pages/{id}", h.deletePage)
	})
}

type roleResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ParentID    *int64 `json:"parent_id"`
}

type nodeResponse struct {
	roleResponse
	Children []nodeResponse `json:"children"`
}

type warningResponse struct {
	Kind     string `json:"kind"`
	RoleID   int64  `json:"role_id"`
	ParentID int64  `json:"parent_id,omitempty"`
}

type hierarchyResponse struct {
	Roles    []nodeResponse    `json:"roles"`
	Warnings []warningResponse `json:"warnings"`
}

func (h *Handler) hierarchy(w http.ResponseWriter, r *http.Request) {
	roots, warnings, err := h.service.Hierarchy(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp := hierarchyResponse{
		Roles:    make([]nodeResponse, 0, len(roots)),
		Warnings: make([]warningResponse, 0, len(warnings)),
	}
	for _, root := range roots {
		resp.Roles = append(resp.Roles, toNodeResponse(root))
	}
	for _, warning := range warnings {
		resp.Warnings = append(resp.Warnings, warningResponse{
			Kind:     string(warning.Kind),
			RoleID:   warning.RoleID,
			ParentID: warning.ParentID,
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func toNodeResponse(node *Node) nodeResponse {
	resp := nodeResponse{
		roleResponse: toRoleResponse(node.Role),
		Children:     make([]nodeResponse, 0, len(node.Children)),
	}
	for _, child := range node.Children {
		resp.Children = append(resp.Children, toNodeResponse(child))
	}
	return resp
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		ParentID:    role.ParentID,
	}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roots, _, err := h.service.Hierarchy(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	flat := make([]roleResponse, 0)
	var walk func(node *Node)
	walk = func(node *Node) {
		flat = append(flat, toRoleResponse(node.Role))
		for _, child := range node.Children {
			walk(child)
		}
	}
	for _, root := range roots {
		walk(root)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": flat})
}

type roleRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
	ParentID    *int64 `json:"parent_id" validate:"omitempty,gt=0"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.CreateRole(r.Context(), h.actor(r), req.Name, req.Description, req.ParentID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.UpdateRole(r.Context(), h.actor(r), id, req.Name, req.Description, req.ParentID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), h.actor(r), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

type rightResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (h *Handler) listRights(w http.ResponseWriter, r *http.Request) {
	rights, err := h.service.Rights(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]rightResponse, 0, len(rights))
	for _, right := range rights {
		out = append(out, rightResponse{ID: right.ID, Name: right.Name, Description: right.Description})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rights": out})
}

type rightRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
}

func (h *Handler) createRight(w http.ResponseWriter, r *http.Request) {
	var req rightRequest
	if !h.decode(w, r, &req) {
		return
	}
	right, err := h.service.CreateRight(r.Context(), h.actor(r), req.Name, req.Description)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rightResponse{ID: right.ID, Name: right.Name, Description: right.Description})
}

func (h *Handler) updateRight(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req rightRequest
	if !h.decode(w, r, &req) {
		return
	}
	right, err := h.service.UpdateRight(r.Context(), h.actor(r), id, req.Name, req.Description)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rightResponse{ID: right.ID, Name: right.Name, Description: right.Description})
}

func (h *Handler) deleteRight(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRight(r.Context(), h.actor(r), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

type assignmentResponse struct {
	RoleID  int64 `json:"role_id"`
	RightID int64 `json:"right_id"`
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.service.Assignments(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]assignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, assignmentResponse{RoleID: a.RoleID, RightID: a.RightID})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": out})
}

type assignmentRequest struct {
	RoleID  int64  `json:"role_id" validate:"required,gt=0"`
	RightID int64  `json:"right_id" validate:"required,gt=0"`
	Action  string `json:"action" validate:"required,oneof=grant revoke"`
}

func (h *Handler) applyAssignment(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor := h.actor(r)
	var (
		changed bool
		err     error
	)
	switch Action(req.Action) {
	case ActionGrant:
		changed, err = h.service.Grant(r.Context(), actor, req.RoleID, req.RightID)
	case ActionRevoke:
		changed, err = h.service.Revoke(r.Context(), actor, req.RoleID, req.RightID)
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"changed": changed})
}

type cascadeResponse struct {
	Updated []int64 `json:"updated"`
	Failed  []int64 `json:"failed,omitempty"`
}

func (h *Handler) cascadeAssignment(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.Cascade(r.Context(), h.actor(r), req.RoleID, req.RightID, Action(req.Action))
	if err != nil {
		var cascadeErr *CascadeError
		if errors.As(err, &cascadeErr) {
			h.logger.Error("cascade incomplete",
				slog.Int64("role_id", req.RoleID),
				slog.Int64("right_id", req.RightID),
				slog.Any("error", err))
			httpx.JSON(w, http.StatusConflict, cascadeResponse{
				Updated: orEmpty(result.Updated),
				Failed:  cascadeErr.Failed,
			})
			return
		}
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cascadeResponse{Updated: orEmpty(result.Updated)})
}

type pageResponse struct {
	ID             int64   `json:"id"`
	Path           string  `json:"path"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	RequiredRights []int64 `json:"required_rights"`
}

func toPageResponse(page Page) pageResponse {
	return pageResponse{
		ID:             page.ID,
		Path:           page.Path,
		Name:           page.Name,
		Description:    page.Description,
		RequiredRights: orEmpty(page.RequiredRights),
	}
}

func (h *Handler) listPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.service.Pages(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]pageResponse, 0, len(pages))
	for _, page := range pages {
		out = append(out, toPageResponse(page))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pages": out})
}

type pageRequest struct {
	Path           string  `json:"path" validate:"required,startswith=/,max=255"`
	Name           string  `json:"name" validate:"required,max=120"`
	Description    string  `json:"description" validate:"max=500"`
	RequiredRights []int64 `json:"required_rights" validate:"dive,gt=0"`
}

func (h *Handler) createPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if !h.decode(w, r, &req) {
		return
	}
	page, err := h.service.CreatePage(r.Context(), h.actor(r), req.Path, req.Name, req.Description, req.RequiredRights)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPageResponse(page))
}

func (h *Handler) updatePage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req pageRequest
	if !h.decode(w, r, &req) {
		return
	}
	page, err := h.service.UpdatePage(r.Context(), h.actor(r), id, req.Name, req.Description, req.RequiredRights)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPageResponse(page))
}

func (h *Handler) deletePage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeletePage(r.Context(), h.actor(r), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) myRights(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	if actor.IsSystem {
		httpx.JSON(w, http.StatusOK, map[string]any{"rights": []int64{}, "system": true})
		return
	}
	rights, err := h.service.EffectiveRights(r.Context(), actor.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rights": orEmpty(rights), "system": false})
}

type checkRequest struct {
	Path string `json:"path" validate:"required,startswith=/"`
}

func (h *Handler) checkAccess(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !h.decode(w, r, &req) {
		return
	}
	allowed, err := h.service.CheckPath(r.Context(), h.actor(r), req.Path)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"allowed": allowed})
}

func (h *Handler) actor(r *http.Request) User {
	user, _ := UserFromContext(r.Context())
	return user
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
	case errors.Is(err, ErrDuplicateName):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Input", err.Error())
	default:
		h.logger.Error("rbac handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func orEmpty(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
