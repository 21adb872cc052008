package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/upb/commerce-gateway/handlers"
	"github.com/upb/commerce-gateway/internal/observability"
	"github.com/upb/commerce-gateway/tokens"
	"github.com/upb/commerce-gateway/utils"
	"go.uber.org/zap"
)

// Token issuance outcomes recorded in metrics
const (
	OutcomeIssued      = "issued"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
	OutcomeBadRequest  = "bad_request"
)

// TokenIssuer exchanges credentials for a signed access token
type TokenIssuer interface {
	Issue(ctx context.Context, username, password string) (string, error)
}

// LoginResponse carries the issued token under the key clients already read
type LoginResponse struct {
	AccessToken string `json:"access-token"`
}

// Handler serves the login endpoint
type Handler struct {
	issuer  TokenIssuer
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewHandler creates a new login handler
func NewHandler(issuer TokenIssuer, metrics *observability.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		issuer:  issuer,
		metrics: metrics,
		logger:  logger,
	}
}

// HandleLogin handles POST /api/auth/login.
// Every credential failure gets the same 401 body.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var creds tokens.Credentials
	if err := utils.DecodeJSON(r, &creds); err != nil {
		h.metrics.RecordTokenIssuance(OutcomeBadRequest)
		handlers.HandleValidationError(w, err, h.logger)
		return
	}

	token, err := h.issuer.Issue(r.Context(), creds.Username, creds.Password)
	switch {
	case err == nil:
	case errors.Is(err, tokens.ErrInvalidCredentials):
		h.metrics.RecordTokenIssuance(OutcomeRejected)
		_ = utils.WriteUnauthorized(w, "Invalid credentials")
		return
	case errors.Is(err, tokens.ErrCredentialStoreUnavailable):
		h.metrics.RecordTokenIssuance(OutcomeUnavailable)
		_ = utils.WriteServiceUnavailable(w, "Authentication temporarily unavailable")
		return
	default:
		h.metrics.RecordTokenIssuance(OutcomeError)
		h.logger.Error("token issuance failed", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	h.metrics.RecordTokenIssuance(OutcomeIssued)
	h.logger.Info("token issued", zap.String("username", creds.Username))
	_ = utils.WriteJSON(w, http.StatusOK, LoginResponse{AccessToken: token})
}
