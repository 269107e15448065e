package handler

import (
	"github.com/labstack/echo/v4"

	"parley/internal/usecase"
	"parley/pkg/response"
)

type ChannelHandler struct {
	channelUseCase *usecase.ChannelUseCase
}

func NewChannelHandler(channelUseCase *usecase.ChannelUseCase) *ChannelHandler {
	return &ChannelHandler{
		channelUseCase: channelUseCase,
	}
}

type createChannelRequest struct {
	Type      string   `json:"type" validate:"required,oneof=direct group"`
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids" validate:"required,min=1"`
}

type updateChannelRequest struct {
	Name            *string  `json:"name"`
	AddMemberIDs    []string `json:"add_member_ids"`
	RemoveMemberIDs []string `json:"remove_member_ids"`
}

func (h *ChannelHandler) Create(c echo.Context) error {
	uid := c.Get("uid").(string)

	var req createChannelRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	channel, err := h.channelUseCase.CreateChannel(c.Request().Context(), uid, usecase.CreateChannelInput{
		Type:      req.Type,
		Name:      req.Name,
		MemberIDs: req.MemberIDs,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, channel)
}

func (h *ChannelHandler) List(c echo.Context) error {
	uid := c.Get("uid").(string)

	channels, err := h.channelUseCase.List(c.Request().Context(), uid)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, channels)
}

func (h *ChannelHandler) Get(c echo.Context) error {
	uid := c.Get("uid").(string)

	channel, err := h.channelUseCase.Get(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, channel)
}

func (h *ChannelHandler) Update(c echo.Context) error {
	uid := c.Get("uid").(string)

	var req updateChannelRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	channel, err := h.channelUseCase.Update(c.Request().Context(), uid, c.Param("id"), usecase.UpdateChannelInput{
		Name:            req.Name,
		AddMemberIDs:    req.AddMemberIDs,
		RemoveMemberIDs: req.RemoveMemberIDs,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, channel)
}

func (h *ChannelHandler) Delete(c echo.Context) error {
	uid := c.Get("uid").(string)

	if err := h.channelUseCase.DeleteForUser(c.Request().Context(), uid, c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"status": "deleted"})
}

func (h *ChannelHandler) InviteLink(c echo.Context) error {
	uid := c.Get("uid").(string)

	link, err := h.channelUseCase.InviteLink(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"invite_link": link})
}

func (h *ChannelHandler) RegenerateInvite(c echo.Context) error {
	uid := c.Get("uid").(string)

	link, err := h.channelUseCase.RegenerateInvite(c.Request().Context(), uid, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"invite_link": link})
}

func (h *ChannelHandler) AcceptInvite(c echo.Context) error {
	uid := c.Get("uid").(string)

	channel, err := h.channelUseCase.AcceptInvite(c.Request().Context(), uid, c.Param("token"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, channel)
}
