package handler

import (
	"github.com/labstack/echo/v4"

	"shopdesk/internal/domain/entity"
	"shopdesk/internal/usecase"
	"shopdesk/pkg/response"
)

type UserHandler struct {
	userUseCase *usecase.UserUseCase
}

func NewUserHandler(userUseCase *usecase.UserUseCase) *UserHandler {
	return &UserHandler{
		userUseCase: userUseCase,
	}
}

type meResponse struct {
	User         *entity.User `json:"user"`
	Capabilities []string     `json:"capabilities"`
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"omitempty,min=2"`
	AvatarURL   string `json:"avatar_url" validate:"omitempty,url"`
}

type createUserRequest struct {
	Email             string  `json:"email" validate:"required,email"`
	Password          string  `json:"password" validate:"required,min=8"`
	DisplayName       string  `json:"display_name" validate:"required,min=2"`
	Role              string  `json:"role" validate:"required,oneof=admin manager seller technician"`
	CommissionPercent float64 `json:"commission_percent" validate:"gte=0,lte=100"`
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin manager seller technician"`
}

type setCommissionRequest struct {
	Percent float64 `json:"percent" validate:"gte=0,lte=100"`
}

type registerDeviceRequest struct {
	Token string `json:"token" validate:"required"`
}

type pushSubscriptionRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys"`
}

// GetProfile returns the caller with the capabilities of their role, which the dashboard renders its
// menus from.
func (h *UserHandler) GetProfile(c echo.Context) error {
	user := currentUser(c)
	return response.Success(c, meResponse{User: user, Capabilities: h.userUseCase.Capabilities(user)})
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	user, err := h.userUseCase.UpdateProfile(c.Request().Context(), currentUser(c).ID, usecase.UpdateProfileInput{
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, user)
}

func (h *UserHandler) ListUsers(c echo.Context) error {
	users, err := h.userUseCase.ListTenantUsers(c.Request().Context(), currentUser(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, users)
}

func (h *UserHandler) CreateUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	user, err := h.userUseCase.CreateUser(c.Request().Context(), currentUser(c), usecase.CreateUserInput{
		Email:             req.Email,
		Password:          req.Password,
		DisplayName:       req.DisplayName,
		Role:              entity.Role(req.Role),
		CommissionPercent: req.CommissionPercent,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, user)
}

func (h *UserHandler) SetRole(c echo.Context) error {
	var req setRoleRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	user, err := h.userUseCase.SetRole(c.Request().Context(), currentUser(c), c.Param("id"), entity.Role(req.Role))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, user)
}

func (h *UserHandler) SetCommission(c echo.Context) error {
	var req setCommissionRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	user, err := h.userUseCase.SetCommission(c.Request().Context(), currentUser(c), c.Param("id"), req.Percent)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, user)
}

// RegisterDevice stores an FCM registration token. It also grants push permission for the toast gate.
func (h *UserHandler) RegisterDevice(c echo.Context) error {
	var req registerDeviceRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if err := h.userUseCase.RegisterDevice(c.Request().Context(), currentUser(c).ID, req.Token); err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, map[string]string{"message": "Device registered"})
}

// RegisterPushSubscription takes the browser's PushSubscription.toJSON() as is.
func (h *UserHandler) RegisterPushSubscription(c echo.Context) error {
	var req pushSubscriptionRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	err := h.userUseCase.RegisterPushSubscription(c.Request().Context(), currentUser(c).ID, entity.PushSubscription{
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, map[string]string{"message": "Push subscription registered"})
}
