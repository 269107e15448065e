package handler

import (
	"github.com/labstack/echo/v4"

	"parley/internal/usecase"
	"parley/pkg/response"
	"parley/pkg/utils"
)

type UserHandler struct {
	userUseCase *usecase.UserUseCase
}

func NewUserHandler(userUseCase *usecase.UserUseCase) *UserHandler {
	return &UserHandler{
		userUseCase: userUseCase,
	}
}

type updateProfileRequest struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
}

type registerDeviceRequest struct {
	Token string `json:"token" validate:"required"`
}

func (h *UserHandler) Me(c echo.Context) error {
	uid := c.Get("uid").(string)
	user, err := h.userUseCase.Me(c.Request().Context(), uid)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, user)
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	uid := c.Get("uid").(string)

	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	user, err := h.userUseCase.UpdateProfile(c.Request().Context(), uid, usecase.UpdateProfileInput{
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, user)
}

func (h *UserHandler) List(c echo.Context) error {
	pagination := utils.GetPaginationParams(c)

	users, total, err := h.userUseCase.List(c.Request().Context(), pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, users, int64(total), pagination.Page, pagination.PageSize)
}

func (h *UserHandler) RegisterDevice(c echo.Context) error {
	uid := c.Get("uid").(string)

	var req registerDeviceRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if err := h.userUseCase.RegisterDevice(c.Request().Context(), uid, req.Token); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"status": "registered"})
}
