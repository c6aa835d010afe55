package console

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"userconsole/pkg/response"
	"userconsole/pkg/users"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
)

// Service is the part of Controller the HTTP layer drives.
type Service interface {
	Snapshot() State
	LoadPage(ctx context.Context, n int) error
	SelectPage(ctx context.Context, selected int) error
	CreateRecord(ctx context.Context, name, email string) error
	UpdateRecord(ctx context.Context, id int64, name, email string) error
	DeleteRecord(ctx context.Context, id int64) error
	OpenCreateForm()
	OpenEditForm(id int64) error
	CloseForm()
	SaveForm(ctx context.Context, name, email string) error
}

type ConsoleHandler struct {
	service Service
}

func NewConsoleHandler(service Service) *ConsoleHandler {
	return &ConsoleHandler{service: service}
}

func (h *ConsoleHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.renderConsole)
	router.POST("/page/:n", h.pageForm)
	router.POST("/form/new", h.openCreateForm)
	router.POST("/form/edit/:id", h.openEditForm)
	router.POST("/form/close", h.closeForm)
	router.POST("/form/save", h.saveForm)
	router.POST("/users/:id/delete", h.deleteForm)

	api := router.Group("/api/console")
	api.GET("/state", h.getState)
	api.POST("/page", h.selectPage)
	api.POST("/form", h.apiOpenCreateForm)
	api.POST("/form/edit/:id", h.apiOpenEditForm)
	api.DELETE("/form", h.apiCloseForm)
	api.POST("/form/save", h.apiSaveForm)
	api.POST("/users", h.createUser)
	api.PUT("/users/:id", h.updateUser)
	api.DELETE("/users/:id", h.deleteUser)
}

type selectPageRequest struct {
	Selected *int `json:"selected" binding:"required"`
}

type userRequest struct {
	Name  string `json:"name" form:"name" binding:"required"`
	Email string `json:"email" form:"email" binding:"required"`
}

// statusFor maps controller and backend errors to HTTP codes.
func statusFor(err error) int {
	var statusErr *users.StatusError
	switch {
	case errors.Is(err, ErrInvalidPage):
		return http.StatusBadRequest
	case errors.Is(err, ErrRecordNotFound), errors.Is(err, users.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrFormClosed):
		return http.StatusConflict
	case errors.As(err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode < 500:
		return statusErr.StatusCode
	default:
		return http.StatusBadGateway
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// @Summary      Get console state
// @Tags         console
// @Produce      json
// @Success      200 {object} response.APIResponse{data=State}
// @Router       /api/console/state [get]
func (h *ConsoleHandler) getState(c *gin.Context) {
	response.SendAPIResponse(c, http.StatusOK, true, "state", h.service.Snapshot())
}

// @Summary      Select page (zero-indexed)
// @Tags         console
// @Accept       json
// @Produce      json
// @Param        request body selectPageRequest true "Page selector"
// @Success      200 {object} response.APIResponse{data=State}
// @Failure      400 {object} response.APIResponse
// @Failure      502 {object} response.APIResponse
// @Router       /api/console/page [post]
func (h *ConsoleHandler) selectPage(c *gin.Context) {
	var req selectPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}
	if err := h.service.SelectPage(c.Request.Context(), *req.Selected); err != nil {
		response.SendError(c, statusFor(err), err, h.service.Snapshot())
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "page loaded", h.service.Snapshot())
}

// @Summary      Open the create form
// @Tags         console
// @Produce      json
// @Success      200 {object} response.APIResponse{data=State}
// @Router       /api/console/form [post]
func (h *ConsoleHandler) apiOpenCreateForm(c *gin.Context) {
	h.service.OpenCreateForm()
	response.SendAPIResponse(c, http.StatusOK, true, "form opened", h.service.Snapshot())
}

// @Summary      Open the edit form for a shown user
// @Tags         console
// @Produce      json
// @Param        id path int true "User ID"
// @Success      200 {object} response.APIResponse{data=State}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /api/console/form/edit/{id} [post]
func (h *ConsoleHandler) apiOpenEditForm(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid user id", nil)
		return
	}
	if err := h.service.OpenEditForm(id); err != nil {
		response.SendError(c, statusFor(err), err, nil)
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "form opened", h.service.Snapshot())
}

// @Summary      Close the form
// @Tags         console
// @Produce      json
// @Success      200 {object} response.APIResponse{data=State}
// @Router       /api/console/form [delete]
func (h *ConsoleHandler) apiCloseForm(c *gin.Context) {
	h.service.CloseForm()
	response.SendAPIResponse(c, http.StatusOK, true, "form closed", h.service.Snapshot())
}

// @Summary      Save the open form
// @Tags         console
// @Accept       json
// @Produce      json
// @Param        request body userRequest true "Form values"
// @Success      200 {object} response.APIResponse{data=State}
// @Failure      400 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Failure      502 {object} response.APIResponse
// @Router       /api/console/form/save [post]
func (h *ConsoleHandler) apiSaveForm(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}
	if err := h.service.SaveForm(c.Request.Context(), req.Name, req.Email); err != nil {
		response.SendError(c, statusFor(err), err, h.service.Snapshot())
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "form saved", h.service.Snapshot())
}

// @Summary      Create user
// @Tags         console
// @Accept       json
// @Produce      json
// @Param        request body userRequest true "Create user request"
// @Success      201 {object} response.APIResponse{data=State}
// @Failure      400 {object} response.APIResponse
// @Failure      502 {object} response.APIResponse
// @Router       /api/console/users [post]
func (h *ConsoleHandler) createUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}
	if err := h.service.CreateRecord(c.Request.Context(), req.Name, req.Email); err != nil {
		response.SendError(c, statusFor(err), err, h.service.Snapshot())
		return
	}
	response.SendAPIResponse(c, http.StatusCreated, true, "user created", h.service.Snapshot())
}

// @Summary      Update user
// @Tags         console
// @Accept       json
// @Produce      json
// @Param        id path int true "User ID"
// @Param        request body userRequest true "Update user request"
// @Success      200 {object} response.APIResponse{data=State}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      502 {object} response.APIResponse
// @Router       /api/console/users/{id} [put]
func (h *ConsoleHandler) updateUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid user id", nil)
		return
	}
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid request payload", nil)
		return
	}
	if err := h.service.UpdateRecord(c.Request.Context(), id, req.Name, req.Email); err != nil {
		response.SendError(c, statusFor(err), err, h.service.Snapshot())
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "user updated", h.service.Snapshot())
}

// @Summary      Delete user
// @Tags         console
// @Produce      json
// @Param        id path int true "User ID"
// @Success      200 {object} response.APIResponse{data=State}
// @Failure      400 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      502 {object} response.APIResponse
// @Router       /api/console/users/{id} [delete]
func (h *ConsoleHandler) deleteUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		response.SendAPIResponse(c, http.StatusBadRequest, false, "invalid user id", nil)
		return
	}
	if err := h.service.DeleteRecord(c.Request.Context(), id); err != nil {
		response.SendError(c, statusFor(err), err, h.service.Snapshot())
		return
	}
	response.SendAPIResponse(c, http.StatusOK, true, "user deleted", h.service.Snapshot())
}

// HTML form endpoints. Failures are already logged by the controller and
// the page is redrawn from whatever state remains.

func (h *ConsoleHandler) renderConsole(c *gin.Context) {
	c.Render(http.StatusOK, render.HTML{
		Template: consoleTemplate,
		Name:     "console",
		Data:     newConsoleView(h.service.Snapshot()),
	})
}

func backToConsole(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *ConsoleHandler) pageForm(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("n"))
	if err == nil {
		_ = h.service.LoadPage(c.Request.Context(), n)
	}
	backToConsole(c)
}

func (h *ConsoleHandler) openCreateForm(c *gin.Context) {
	h.service.OpenCreateForm()
	backToConsole(c)
}

func (h *ConsoleHandler) openEditForm(c *gin.Context) {
	if id, ok := parseID(c); ok {
		_ = h.service.OpenEditForm(id)
	}
	backToConsole(c)
}

func (h *ConsoleHandler) closeForm(c *gin.Context) {
	h.service.CloseForm()
	backToConsole(c)
}

func (h *ConsoleHandler) saveForm(c *gin.Context) {
	_ = h.service.SaveForm(c.Request.Context(), c.PostForm("name"), c.PostForm("email"))
	backToConsole(c)
}

func (h *ConsoleHandler) deleteForm(c *gin.Context) {
	if id, ok := parseID(c); ok {
		_ = h.service.DeleteRecord(c.Request.Context(), id)
	}
	backToConsole(c)
}
