package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prudhvinik1/notesync/internal/models"
	"github.com/prudhvinik1/notesync/internal/services"
	"github.com/prudhvinik1/notesync/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	auth   *services.AuthService
	logger *zap.Logger
}

func NewAuthHandler(auth *services.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountResponse struct {
	User *models.Account `json:"user"`
}

type signInResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      *models.Account `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, tagInvalidRequest, "A valid email is required.")
		return
	}

	account, err := h.auth.Register(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, services.ErrEmailExists):
		writeError(w, http.StatusConflict, tagEmailTaken, "This email is already registered.")
	case errors.Is(err, utils.ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, tagInvalidRequest, err.Error())
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		writeError(w, http.StatusBadRequest, tagInvalidRequest, "Password must be at most 72 bytes long.")
	case err != nil:
		writeServerError(w, r, h.logger, err)
	default:
		writeJSON(w, http.StatusCreated, accountResponse{User: account})
	}
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.auth.Login(r.Context(), services.LoginRequest{
		Email:     strings.TrimSpace(req.Email),
		Password:  req.Password,
		UserAgent: r.UserAgent(),
	})
	if errors.Is(err, services.ErrInvalidCredentials) {
		writeUnauthorized(w)
		return
	}
	if err != nil {
		writeServerError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, signInResponse{
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt.UTC(),
		User:      resp.Account,
	})
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), tokenFromContext(r.Context())); err != nil {
		h.signOutFailed(w, r, err)
		return
	}
	noContent(w)
}

// SignOutAll revokes every session of the calling account, including the
// one making the request.
func (h *AuthHandler) SignOutAll(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.LogoutAll(r.Context(), tokenFromContext(r.Context())); err != nil {
		h.signOutFailed(w, r, err)
		return
	}
	noContent(w)
}

func (h *AuthHandler) signOutFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, services.ErrInvalidToken) {
		writeUnauthorized(w)
		return
	}
	writeServerError(w, r, h.logger, err)
}
