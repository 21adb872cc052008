package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/commerce-gateway/gateway"
	"github.com/upb/commerce-gateway/tokens"
	"go.uber.org/zap"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type noStore struct{}

func (noStore) Authenticate(context.Context, string, string) ([]string, error) {
	return nil, tokens.ErrInvalidCredentials
}

func defaultRules(t *testing.T) *gateway.RuleSet {
	t.Helper()
	rules, err := gateway.NewRuleSet(
		[]string{"/auth-service/api/auth/login", "/auth-service/login", "/healthz"},
		[]string{"/produit-service/produits", "/client-service/clients", "/commande-service/commandes", "/auth-service/api/auth/users"},
	)
	require.NoError(t, err)
	return rules
}

// recorder captures what the next handler received
type recorder struct {
	mu      sync.Mutex
	called  int
	path    string
	headers http.Header
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.called++
	rec.path = r.URL.Path
	rec.headers = r.Header.Clone()
	w.WriteHeader(http.StatusOK)
}

func TestEdgeEnforcerWithMockVerifier(t *testing.T) {
	rules := defaultRules(t)

	t.Run("public path forwards without verifying", func(t *testing.T) {
		mockVerifier := new(MockTokenVerifier)
		next := &recorder{}
		h := NewEdgeEnforcer(rules, mockVerifier, nil, zap.NewNop()).Handler(next)

		req := httptest.NewRequest(http.MethodPost, "/auth-service/api/auth/login", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, next.called)
		mockVerifier.AssertNotCalled(t, "Verify", mock.Anything)
	})

	t.Run("verifier failure is 401 and terminal", func(t *testing.T) {
		mockVerifier := new(MockTokenVerifier)
		mockVerifier.On("Verify", "bad").Return(nil, tokens.ErrInvalidSignature)
		next := &recorder{}
		h := NewEdgeEnforcer(rules, mockVerifier, nil, zap.NewNop()).Handler(next)

		req := httptest.NewRequest(http.MethodGet, "/agent-ia-service/chat", nil)
		req.Header.Set("Authorization", "Bearer bad")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, 0, next.called)
		mockVerifier.AssertExpectations(t)
	})

	t.Run("any verifier error is 401", func(t *testing.T) {
		mockVerifier := new(MockTokenVerifier)
		mockVerifier.On("Verify", "x").Return(nil, errors.New("boom"))
		next := &recorder{}
		h := NewEdgeEnforcer(rules, mockVerifier, nil, zap.NewNop()).Handler(next)

		req := httptest.NewRequest(http.MethodGet, "/produit-service/produits", nil)
		req.Header.Set("Authorization", "Bearer x")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, 0, next.called)
	})
}

func TestEdgeEnforcerScenarios(t *testing.T) {
	issuer, err := tokens.NewIssuer(tokens.Config{Secret: testSecret}, noStore{}, nil)
	require.NoError(t, err)
	verifier, err := tokens.NewVerifier(tokens.Config{Secret: testSecret})
	require.NoError(t, err)

	adminToken, err := issuer.Sign("admin", []string{tokens.RoleAdmin})
	require.NoError(t, err)
	userToken, err := issuer.Sign("alice", []string{tokens.RoleUser})
	require.NoError(t, err)

	expiredIssuer, err := tokens.NewIssuer(tokens.Config{
		Secret: testSecret,
		Now:    func() time.Time { return time.Now().Add(-2 * time.Hour) },
	}, noStore{}, nil)
	require.NoError(t, err)
	expiredToken, err := expiredIssuer.Sign("admin", []string{tokens.RoleAdmin})
	require.NoError(t, err)

	rules := defaultRules(t)

	tests := []struct {
		name       string
		path       string
		auth       string
		wantStatus int
		wantPath   string
		wantUser   string
		wantRoles  string
	}{
		{"login is public", "/auth-service/api/auth/login", "", http.StatusOK, "/auth-service/api/auth/login", "", ""},
		{"admin reaches admin path", "/produit-service/produits", "Bearer " + adminToken, http.StatusOK, "/produit-service/produits", "admin", "ADMIN"},
		{"admin sub path", "/produit-service/produits/7", "Bearer " + adminToken, http.StatusOK, "/produit-service/produits/7", "admin", "ADMIN"},
		{"user forbidden on admin path", "/produit-service/produits", "Bearer " + userToken, http.StatusForbidden, "", "", ""},
		{"user forbidden on case variant", "/Produit-Service/Produits/", "Bearer " + userToken, http.StatusForbidden, "", "", ""},
		{"user forbidden on dot segment bypass", "/auth-service/api/auth/login/../users", "Bearer " + userToken, http.StatusForbidden, "", "", ""},
		{"user forbidden on double slash", "/client-service//clients", "Bearer " + userToken, http.StatusForbidden, "", "", ""},
		{"user forbidden on path parameter", "/produit-service/produits;x", "Bearer " + userToken, http.StatusForbidden, "", "", ""},
		{"user forbidden on parameter before sub path", "/produit-service/produits;/3", "Bearer " + userToken, http.StatusForbidden, "", "", ""},
		{"admin path parameter is stripped", "/produit-service/produits;x/3", "Bearer " + adminToken, http.StatusOK, "/produit-service/produits/3", "admin", "ADMIN"},
		{"user reaches authenticated path", "/agent-ia-service/chat", "Bearer " + userToken, http.StatusOK, "/agent-ia-service/chat", "alice", "USER"},
		{"missing header on authenticated path", "/agent-ia-service/chat", "", http.StatusUnauthorized, "", "", ""},
		{"wrong scheme", "/agent-ia-service/chat", "Token " + userToken, http.StatusUnauthorized, "", "", ""},
		{"expired token", "/produit-service/produits", "Bearer " + expiredToken, http.StatusUnauthorized, "", "", ""},
		{"garbage token", "/produit-service/produits", "Bearer abc.def", http.StatusUnauthorized, "", "", ""},
		{"similar prefix is not admin", "/produit-service/produitsx", "Bearer " + userToken, http.StatusOK, "/produit-service/produitsx", "alice", "USER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &recorder{}
			h := NewEdgeEnforcer(rules, verifier, nil, zap.NewNop()).Handler(next)

			req := httptest.NewRequest(http.MethodGet, "http://gateway"+tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, 0, next.called)
				return
			}
			require.Equal(t, 1, next.called)
			assert.Equal(t, tt.wantPath, next.path)
			assert.Equal(t, tt.wantUser, next.headers.Get(HeaderUsername))
			assert.Equal(t, tt.wantRoles, next.headers.Get(HeaderRoles))
		})
	}
}

func TestEdgeEnforcerReplacesSpoofedIdentity(t *testing.T) {
	issuer, err := tokens.NewIssuer(tokens.Config{Secret: testSecret}, noStore{}, nil)
	require.NoError(t, err)
	verifier, err := tokens.NewVerifier(tokens.Config{Secret: testSecret})
	require.NoError(t, err)
	userToken, err := issuer.Sign("alice", []string{tokens.RoleUser})
	require.NoError(t, err)

	h := func(next http.Handler) http.Handler {
		return NewEdgeEnforcer(defaultRules(t), verifier, nil, zap.NewNop()).Handler(next)
	}

	t.Run("authenticated request", func(t *testing.T) {
		next := &recorder{}
		req := httptest.NewRequest(http.MethodGet, "/agent-ia-service/chat", nil)
		req.Header.Set("Authorization", "Bearer "+userToken)
		req.Header.Set(HeaderUsername, "admin")
		req.Header.Add(HeaderRoles, "ADMIN")
		w := httptest.NewRecorder()
		h(next).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"alice"}, next.headers.Values(HeaderUsername))
		assert.Equal(t, []string{"USER"}, next.headers.Values(HeaderRoles))
		// the caller's request is not mutated
		assert.Equal(t, "admin", req.Header.Get(HeaderUsername))
	})

	t.Run("public request", func(t *testing.T) {
		next := &recorder{}
		req := httptest.NewRequest(http.MethodPost, "/auth-service/login", nil)
		req.Header.Set(HeaderUsername, "admin")
		req.Header.Set(HeaderRoles, "ADMIN")
		w := httptest.NewRecorder()
		h(next).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, next.headers.Values(HeaderUsername))
		assert.Empty(t, next.headers.Values(HeaderRoles))
	})
}

func TestEdgeEnforcerConcurrent(t *testing.T) {
	issuer, err := tokens.NewIssuer(tokens.Config{Secret: testSecret}, noStore{}, nil)
	require.NoError(t, err)
	verifier, err := tokens.NewVerifier(tokens.Config{Secret: testSecret})
	require.NoError(t, err)
	adminToken, _ := issuer.Sign("admin", []string{tokens.RoleAdmin})
	userToken, _ := issuer.Sign("alice", []string{tokens.RoleUser})

	h := NewEdgeEnforcer(defaultRules(t), verifier, nil, zap.NewNop()).Handler(&recorder{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, want := adminToken, http.StatusOK
			if i%2 == 0 {
				token, want = userToken, http.StatusForbidden
			}
			req := httptest.NewRequest(http.MethodGet, "/commande-service/commandes", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, want, w.Code)
		}(i)
	}
	wg.Wait()
}
