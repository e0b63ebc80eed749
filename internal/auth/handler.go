package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"displayName" validate:"required,max=64"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Password string `json:"password" validate:"required"`
}

// Authenticated is the payload of a successful login.
type Authenticated struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Handler serves the account endpoints that hand out canvas tokens.
type Handler struct {
	store    *MemoryStore
	tokens   *Tokens
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandler(store *MemoryStore, tokens *Tokens, logger *zap.Logger) *Handler {
	return &Handler{
		store:    store,
		tokens:   tokens,
		validate: validator.New(),
		logger:   logger.Named("auth"),
	}
}

// Routes mounts POST /users and POST /tokens/{email}.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/users", h.Register)
	r.Post("/tokens/{email}", h.Login)
	return r
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, clientError(http.StatusBadRequest, "InvalidRequest", "request body must be JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, validationError(err))
		return
	}

	user, err := h.store.Register(req.Email, req.DisplayName, req.Password)
	if err != nil {
		h.logger.Info("Registration refused", zap.String("email", req.Email), zap.Error(err))
		writeError(w, err)
		return
	}
	h.logger.Info("User registered", zap.String("userId", user.ID))
	writeSuccess(w, http.StatusCreated, "UserRegistered", "user "+user.Email+" registered", user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, clientError(http.StatusBadRequest, "InvalidRequest", "request body must be JSON"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, ErrMissingPassword)
		return
	}

	user, err := h.store.Authenticate(email, req.Password)
	if err != nil {
		h.logger.Info("Authentication refused", zap.String("email", email), zap.Error(err))
		writeError(w, err)
		return
	}
	token, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("Failed to issue token", zap.Error(err))
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, "UserAuthenticated", "user "+user.Email+" authenticated",
		Authenticated{Token: token, User: user})
}

// validationError maps the first failing field onto the client error names
// browsers already understand.
func validationError(err error) *AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return clientError(http.StatusBadRequest, "InvalidRequest", err.Error())
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch {
	case fe.Field() == "Password" && fe.Tag() == "required":
		return ErrMissingPassword
	case fe.Field() == "Password":
		return clientError(http.StatusBadRequest, "WeakPassword", "password must be 8 to 72 characters")
	case fe.Field() == "DisplayName" && fe.Tag() == "required":
		return clientError(http.StatusBadRequest, "MissingDisplayName", "displayName is required")
	case fe.Field() == "Email" && fe.Tag() == "required":
		return clientError(http.StatusBadRequest, "MissingUsername", "email is required")
	}
	return clientError(http.StatusBadRequest, "InvalidRequest", fmt.Sprintf("%s is invalid", field))
}
