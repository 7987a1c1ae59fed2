package handler

import (
	"net/http"
	"time"

	"github.com/webscanio/api/internal/app"
	"github.com/webscanio/api/pkg/domain/user"
	"github.com/webscanio/api/pkg/logger"
	"github.com/webscanio/api/pkg/validator"
)

// AuthHandler handles registration, login, and token refresh.
type AuthHandler struct {
	authService *app.AuthService
	validator   *validator.Validator
	logger      *logger.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *app.AuthService, v *validator.Validator, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validator:   v,
		logger:      log.With("handler", "auth"),
	}
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	LastLoginAt *string `json:"lastLoginAt,omitempty"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

// AuthResponse is the response body for register, login, and refresh.
type AuthResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresAt    string       `json:"expiresAt"`
}

// RefreshRequest is the request body for refreshing a token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// WSTokenResponse carries a short-lived WebSocket handshake token.
type WSTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

// Register handles POST /api/v1/auth/register
// @Summary      Register
// @Description  Create an account and issue an initial token pair
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      app.RegisterInput  true  "Registration details"
// @Success      201  {object}  AuthResponse
// @Failure      400  {object}  apierror.Response
// @Failure      403  {object}  apierror.Response
// @Router       /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) error {
	var input app.RegisterInput
	if err := decodeJSON(r, &input); err != nil {
		return err
	}
	if err := h.validator.Validate(input); err != nil {
		return validationError(err)
	}

	result, err := h.authService.Register(r.Context(), input)
	if err != nil {
		return err
	}

	return respondJSON(w, http.StatusCreated, toAuthResponse(result))
}

// Login handles POST /api/v1/auth/login
// @Summary      Login
// @Description  Verify credentials and issue a token pair
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      app.LoginInput  true  "Credentials"
// @Success      200  {object}  AuthResponse
// @Failure      401  {object}  apierror.Response
// @Failure      403  {object}  apierror.Response
// @Router       /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) error {
	var input app.LoginInput
	if err := decodeJSON(r, &input); err != nil {
		return err
	}
	if err := h.validator.Validate(input); err != nil {
		return validationError(err)
	}

	result, err := h.authService.Login(r.Context(), input)
	if err != nil {
		return err
	}

	return respondJSON(w, http.StatusOK, toAuthResponse(result))
}

// Refresh handles POST /api/v1/auth/refresh
// @Summary      Refresh tokens
// @Description  Rotate a refresh token into a new token pair
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      RefreshRequest  true  "Refresh token"
// @Success      200  {object}  AuthResponse
// @Failure      401  {object}  apierror.Response
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) error {
	var req RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if err := h.validator.Validate(req); err != nil {
		return validationError(err)
	}

	result, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	return respondJSON(w, http.StatusOK, toAuthResponse(result))
}

// Me handles GET /api/v1/auth/me
// @Summary      Current user
// @Description  Return the authenticated account's profile
// @Tags         Authentication
// @Produce      json
// @Success      200  {object}  UserResponse
// @Failure      401  {object}  apierror.Response
// @Security     BearerAuth
// @Router       /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerID(r)
	if err != nil {
		return err
	}

	u, err := h.authService.GetCurrentUser(r.Context(), caller)
	if err != nil {
		return err
	}

	return respondJSON(w, http.StatusOK, toUserResponse(u))
}

// WSToken handles GET /api/v1/auth/ws-token
//
// Browser WebSocket clients cannot set an Authorization header during
// the handshake, so they exchange their access token here for one that
// may ride in the query string without outliving the connection setup.
// @Summary      WebSocket token
// @Description  Issue a short-lived token for the WebSocket handshake
// @Tags         Authentication
// @Produce      json
// @Success      200  {object}  WSTokenResponse
// @Failure      401  {object}  apierror.Response
// @Security     BearerAuth
// @Router       /auth/ws-token [get]
func (h *AuthHandler) WSToken(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerID(r)
	if err != nil {
		return err
	}

	token, ttl, err := h.authService.IssueWSToken(r.Context(), caller)
	if err != nil {
		return err
	}

	return respondJSON(w, http.StatusOK, WSTokenResponse{
		Token:     token,
		ExpiresIn: int64(ttl.Seconds()),
	})
}

func toAuthResponse(result *app.AuthResult) AuthResponse {
	return AuthResponse{
		User:         toUserResponse(result.User),
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    result.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func toUserResponse(u *user.User) UserResponse {
	resp := UserResponse{
		ID:        u.ID().String(),
		Email:     u.Email(),
		Name:      u.Name(),
		Status:    string(u.Status()),
		CreatedAt: u.CreatedAt().UTC().Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt().UTC().Format(time.RFC3339),
	}
	if u.LastLoginAt() != nil {
		last := u.LastLoginAt().UTC().Format(time.RFC3339)
		resp.LastLoginAt = &last
	}
	return resp
}
