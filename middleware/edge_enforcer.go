package middleware

import (
	"net/http"

	"github.com/upb/commerce-gateway/gateway"
	"github.com/upb/commerce-gateway/internal/observability"
	"github.com/upb/commerce-gateway/tokens"
	"github.com/upb/commerce-gateway/utils"
	"go.uber.org/zap"
)

// Edge decisions as reported to metrics
const (
	decisionPublic          = "public"
	decisionForward         = "forward"
	decisionUnauthenticated = "unauthenticated"
	decisionForbidden       = "forbidden"
)

// EdgeEnforcer is the gateway filter that decides, per request path, whether
// a request is forwarded, rejected with 401, or rejected with 403.
type EdgeEnforcer struct {
	rules    *gateway.RuleSet
	verifier TokenVerifier
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewEdgeEnforcer creates the gateway filter
func NewEdgeEnforcer(rules *gateway.RuleSet, verifier TokenVerifier, metrics *observability.Metrics, logger *zap.Logger) *EdgeEnforcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EdgeEnforcer{
		rules:    rules,
		verifier: verifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// Handler wraps next. Rejections are terminal and next is never called.
// Forwarded requests are clones: the path is the normalized form that was
// authorized and identity headers are replaced, never merged.
func (e *EdgeEnforcer) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)
		requirement := e.rules.Classify(r.URL.Path)

		if requirement == gateway.Public {
			e.metrics.RecordEdgeDecision(decisionPublic)
			next.ServeHTTP(w, e.forwardable(r, nil))
			return
		}

		token, ok := tokens.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			e.reject(w, requestID, r, decisionUnauthenticated, nil)
			return
		}

		principal, err := e.verifier.Verify(token)
		if err != nil {
			e.reject(w, requestID, r, decisionUnauthenticated, err)
			return
		}

		if requirement == gateway.AdminOnly && !principal.IsAdmin() {
			e.logger.Info("admin path denied",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path),
				zap.String("sub", principal.Subject))
			e.metrics.RecordEdgeDecision(decisionForbidden)
			_ = utils.WriteForbidden(w, "Access denied")
			return
		}

		e.metrics.RecordEdgeDecision(decisionForward)
		next.ServeHTTP(w, e.forwardable(r, principal))
	})
}

func (e *EdgeEnforcer) reject(w http.ResponseWriter, requestID string, r *http.Request, decision string, err error) {
	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("path", r.URL.Path),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	e.logger.Info("request not authenticated", fields...)
	e.metrics.RecordEdgeDecision(decision)
	_ = utils.WriteUnauthorized(w, "Authentication required")
}

// forwardable clones r with client identity headers removed and, when a
// principal is given, the verified identity injected
func (e *EdgeEnforcer) forwardable(r *http.Request, principal *tokens.Principal) *http.Request {
	ctx := r.Context()
	if principal != nil {
		ctx = WithPrincipal(ctx, principal)
	}
	out := r.Clone(ctx)

	out.Header.Del(HeaderUsername)
	out.Header.Del(HeaderRoles)
	if principal != nil {
		out.Header.Set(HeaderUsername, principal.Subject)
		out.Header.Set(HeaderRoles, principal.RolesHeader())
	}

	out.URL.Path = gateway.CleanPath(r.URL.Path)
	out.URL.RawPath = ""
	return out
}
