package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/upb/commerce-gateway/middleware"
	"github.com/upb/commerce-gateway/models"
	"github.com/upb/commerce-gateway/services"
	"github.com/upb/commerce-gateway/utils"
	"go.uber.org/zap"
)

// AccountService defines the account administration operations
type AccountService interface {
	ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, error)
	Register(ctx context.Context, input services.RegisterInput) (*models.Account, error)
	GrantRole(ctx context.Context, input services.GrantRoleInput) (*models.Account, error)
}

// AccountResponse represents an account in API responses. The hash never leaves the service.
type AccountResponse struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Roles     []string `json:"roles"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// PrincipalResponse describes the caller of an authenticated request
type PrincipalResponse struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	Admin    bool     `json:"admin"`
}

// AccountHandler handles account administration requests
type AccountHandler struct {
	accounts AccountService
	logger   *zap.Logger
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accounts AccountService, logger *zap.Logger) *AccountHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// HandleListAccounts handles GET /api/auth/users
func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	limit, err := queryInt(r, "limit")
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid limit", nil)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid offset", nil)
		return
	}

	accounts, err := h.accounts.ListAccounts(ctx, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger.With(zap.String("request_id", requestID)))
		return
	}

	responses := make([]AccountResponse, len(accounts))
	for i, a := range accounts {
		responses[i] = accountToResponse(a)
	}

	h.logger.Debug("listed accounts",
		zap.String("request_id", requestID),
		zap.Int("count", len(responses)))

	_ = utils.WriteOK(w, responses)
}

// HandleRegister handles POST /api/auth/users
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req services.RegisterInput
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("invalid register request",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	account, err := h.accounts.Register(ctx, req)
	if err != nil {
		HandleServiceError(w, err, h.logger.With(zap.String("request_id", requestID)))
		return
	}

	_ = utils.WriteCreated(w, accountToResponse(account))
}

// HandleGrantRole handles POST /api/auth/addRoleToUser
func (h *AccountHandler) HandleGrantRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req services.GrantRoleInput
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	account, err := h.accounts.GrantRole(ctx, req)
	if err != nil {
		HandleServiceError(w, err, h.logger.With(zap.String("request_id", requestID)))
		return
	}

	if principal := middleware.GetPrincipalFromContext(ctx); principal != nil {
		h.logger.Info("role grant requested",
			zap.String("request_id", requestID),
			zap.String("by", principal.Subject),
			zap.String("username", req.Username),
			zap.String("role", req.RoleName))
	}

	_ = utils.WriteOK(w, accountToResponse(account))
}

// HandleCurrentPrincipal handles GET /api/auth/me
func (h *AccountHandler) HandleCurrentPrincipal(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	_ = utils.WriteOK(w, PrincipalResponse{
		Username: principal.Subject,
		Roles:    principal.Roles,
		Admin:    principal.IsAdmin(),
	})
}

func accountToResponse(a *models.Account) AccountResponse {
	roles := a.Roles
	if roles == nil {
		roles = []string{}
	}
	return AccountResponse{
		ID:        a.ID.String(),
		Username:  a.Username,
		Roles:     roles,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
		UpdatedAt: a.UpdatedAt.Format(time.RFC3339),
	}
}

// queryInt parses an optional non-negative integer query parameter
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
