package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/expensetrack/expensetrack/application/port/inbound"
	domainerr "github.com/expensetrack/expensetrack/domain/error"
	"github.com/expensetrack/expensetrack/infrastructure/http/middleware"
	"github.com/expensetrack/expensetrack/infrastructure/http/response"
	"github.com/expensetrack/expensetrack/infrastructure/http/validator"
)

type AuthHandler struct {
	authUseCase  inbound.AuthUseCase
	resetUseCase inbound.PasswordResetUseCase
	auth         *middleware.AuthMiddleware
}

func NewAuthHandler(
	authUseCase inbound.AuthUseCase,
	resetUseCase inbound.PasswordResetUseCase,
	auth *middleware.AuthMiddleware,
) *AuthHandler {
	return &AuthHandler{
		authUseCase:  authUseCase,
		resetUseCase: resetUseCase,
		auth:         auth,
	}
}

// RegisterRoutes mounts the auth endpoints under /api/auth.
func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/auth").Subrouter()
	api.HandleFunc("/register", h.Register).Methods(http.MethodPost)
	api.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/refresh", h.Refresh).Methods(http.MethodPost)
	api.HandleFunc("/logout", h.auth.RequireAuth(h.Logout)).Methods(http.MethodPost)
	api.HandleFunc("/me", h.auth.RequireAuth(h.Me)).Methods(http.MethodGet)
	api.HandleFunc("/forgot-password", h.ForgotPassword).Methods(http.MethodPost)
	api.HandleFunc("/reset-password", h.ResetPassword).Methods(http.MethodPost)
	api.HandleFunc("/check-email/{email}", h.CheckEmail).Methods(http.MethodGet)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req inbound.RegisterRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		response.AppError(w, err)
		return
	}

	res, err := h.authUseCase.Register(r.Context(), req)
	if err != nil {
		response.AppError(w, err)
		return
	}

	response.Success(w, http.StatusCreated, "Registration successful", res)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req inbound.LoginRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		response.AppError(w, err)
		return
	}

	res, err := h.authUseCase.Login(r.Context(), req)
	if err != nil {
		response.AppError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Login successful", res)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req inbound.RefreshRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		response.AppError(w, err)
		return
	}

	if err := validator.Required("refresh_token", req.RefreshToken); err != nil {
		response.AppError(w, err)
		return
	}

	res, err := h.authUseCase.Refresh(r.Context(), req)
	if err != nil {
		response.AppError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Token refreshed", res)
}

// Logout runs behind RequireAuth, so the bearer token has already passed
// the revocation check and verification.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		response.AppError(w, domainerr.ErrAuthenticationRequired())
		return
	}

	if err := h.authUseCase.Logout(r.Context(), inbound.LogoutRequest{AccessToken: token}); err != nil {
		response.AppError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := inbound.IdentityFrom(r.Context())
	if !ok {
		response.AppError(w, domainerr.ErrAuthenticationRequired())
		return
	}

	res, err := h.authUseCase.Me(r.Context(), identity.UserID)
	if err != nil {
		response.AppError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "success", res)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req inbound.ForgotPasswordRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		response.AppError(w, err)
		return
	}
	if err := validator.Required("email", req.Email); err != nil {
		response.AppError(w, err)
		return
	}

	if err := h.resetUseCase.ForgotPassword(r.Context(), req); err != nil {
		response.AppError(w, err)
		return
	}

	response.Success(w, http.StatusAccepted, "If the account exists, a reset link has been sent", nil)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req inbound.ResetPasswordRequest
	if err := validator.DecodeJSON(w, r, &req); err != nil {
		response.AppError(w, err)
		return
	}

	if err := h.resetUseCase.ResetPassword(r.Context(), req); err != nil {
		response.AppError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "Password has been reset", nil)
}

func (h *AuthHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	res, err := h.authUseCase.CheckEmail(r.Context(), mux.Vars(r)["email"])
	if err != nil {
		response.AppError(w, err)
		return
	}

	response.Success(w, http.StatusOK, "success", res)
}
