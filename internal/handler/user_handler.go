package handler

import (
	"net/http"

	"textilemart/internal/domain/model"
	"textilemart/internal/middleware"
	"textilemart/internal/usecase"

	"github.com/labstack/echo/v4"
)

type UserHandler struct {
	uc *usecase.UserUsecase
}

func NewUserHandler(uc *usecase.UserUsecase) *UserHandler {
	return &UserHandler{uc: uc}
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// 未指定のフィールドは変更しない
type updateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

func (h *UserHandler) RegisterRoutes(api *echo.Group, authn echo.MiddlewareFunc) {
	g := api.Group("/users", authn)

	// 自分のプロフィール（全ロール）
	g.GET("/me", h.me)
	g.PUT("/me", h.updateMe)

	admin := middleware.RequireRole(model.RoleAdmin)
	g.POST("", h.create, admin)
	g.GET("", h.list, admin)
	g.GET("/:id", h.get, admin)
	g.PUT("/:id", h.update, admin)
	g.DELETE("/:id", h.delete, admin)
}

func (h *UserHandler) create(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	u, err := h.uc.Create(c.Request().Context(), actor, usecase.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusCreated, "user created successfully", u)
}

func (h *UserHandler) list(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	users, err := h.uc.List(c.Request().Context(), actor, c.QueryParam("role"))
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "users fetched successfully", users)
}

func (h *UserHandler) get(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	u, err := h.uc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "user fetched successfully", u)
}

func (h *UserHandler) update(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	u, err := h.uc.Update(c.Request().Context(), actor, id, usecase.UpdateUserInput{
		ProfileInput: usecase.ProfileInput{Name: req.Name, Email: req.Email, Password: req.Password},
		Role:         req.Role,
	})
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "user updated successfully", u)
}

func (h *UserHandler) delete(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	if err := h.uc.Delete(c.Request().Context(), actor, id); err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "user deleted successfully", nil)
}

func (h *UserHandler) me(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	u, err := h.uc.Me(c.Request().Context(), actor)
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "profile fetched successfully", u)
}

func (h *UserHandler) updateMe(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return writeError(c, err)
	}
	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Role != nil {
		return c.JSON(http.StatusForbidden, ErrorResponse{Error: "cannot change own role"})
	}

	u, err := h.uc.UpdateMe(c.Request().Context(), actor, usecase.ProfileInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return writeError(c, err)
	}
	return respond(c, http.StatusOK, "profile updated successfully", u)
}
