package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/commerce-gateway/app"
	"github.com/upb/commerce-gateway/auth"
	"github.com/upb/commerce-gateway/chat"
	"github.com/upb/commerce-gateway/config"
	"github.com/upb/commerce-gateway/handlers"
	"github.com/upb/commerce-gateway/middleware"
	"github.com/upb/commerce-gateway/models"
	"github.com/upb/commerce-gateway/services"
	"github.com/upb/commerce-gateway/tokens"
	"go.uber.org/zap/zaptest"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type storeFunc func(ctx context.Context, username, password string) ([]string, error)

func (f storeFunc) Authenticate(ctx context.Context, username, password string) ([]string, error) {
	return f(ctx, username, password)
}

// testStore knows root (ADMIN, USER) and alice (USER), both with password "secret"
var testStore = storeFunc(func(_ context.Context, username, password string) ([]string, error) {
	if password != "secret" {
		return nil, tokens.ErrInvalidCredentials
	}
	switch username {
	case "root":
		return []string{"ADMIN", "USER"}, nil
	case "alice":
		return []string{"USER"}, nil
	}
	return nil, tokens.ErrInvalidCredentials
})

func testConfig(service string) *config.Config {
	return &config.Config{
		Service:     service,
		Environment: "test",
		Server: config.ServerConfig{
			RequestTimeout: 5 * time.Second,
			AllowedOrigins: []string{"http://localhost:4200"},
		},
		Token: config.TokenConfig{
			Secret:    testSecret,
			Algorithm: "HS256",
			TTL:       time.Hour,
			ClockSkew: 30 * time.Second,
		},
		Gateway: config.GatewayConfig{
			PublicPaths: config.DefaultPublicPaths,
			AdminPaths:  config.DefaultAdminPaths,
		},
		Chat: config.ChatConfig{MemoryWindow: 10},
		Observability: config.ObservabilityConfig{
			LogLevel:       "error",
			MetricsEnabled: true,
		},
	}
}

func newIssuer(t *testing.T) *tokens.Issuer {
	t.Helper()
	issuer, err := tokens.NewIssuer(tokens.Config{Secret: testSecret}, testStore, nil)
	require.NoError(t, err)
	return issuer
}

func sign(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	token, err := newIssuer(t).Sign(subject, roles)
	require.NoError(t, err)
	return token
}

func do(t *testing.T, ts *httptest.Server, method, path, token string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestGatewayRoutes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Path", r.URL.Path)
		w.Header().Set("X-Seen-User", r.Header.Get(middleware.HeaderUsername))
		w.Header().Set("X-Seen-Roles", r.Header.Get(middleware.HeaderRoles))
		w.Header().Set("X-Seen-Forwarded-For", r.Header.Get("X-Forwarded-For"))
		_, _ = io.WriteString(w, "upstream")
	}))
	defer upstream.Close()

	cfg := testConfig(config.ServiceGateway)
	cfg.Gateway.Routes = map[string]string{
		"/auth-service":    upstream.URL,
		"/produit-service": upstream.URL,
	}

	deps, err := app.NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	ts := httptest.NewServer(SetupRoutes(deps))
	defer ts.Close()

	admin := sign(t, "root", "ADMIN", "USER")
	user := sign(t, "alice", "USER")

	t.Run("local health check", func(t *testing.T) {
		resp := do(t, ts, http.MethodGet, "/healthz", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("X-Seen-Path"))
	})

	t.Run("public path forwarded without token", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/auth-service/api/auth/login", strings.NewReader(`{}`))
		require.NoError(t, err)
		req.Header.Set(middleware.HeaderUsername, "root")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "/api/auth/login", resp.Header.Get("X-Seen-Path"))
		assert.Empty(t, resp.Header.Get("X-Seen-User"))
	})

	t.Run("admin path without token", func(t *testing.T) {
		resp := do(t, ts, http.MethodGet, "/produit-service/produits", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("admin path with garbage token", func(t *testing.T) {
		resp := do(t, ts, http.MethodGet, "/produit-service/produits", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("admin path as user", func(t *testing.T) {
		resp := do(t, ts, http.MethodGet, "/produit-service/produits/3", user, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin path as admin", func(t *testing.T) {
		resp := do(t, ts, http.MethodGet, "/Produit-Service//produits/3/", admin, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "/produits/3", resp.Header.Get("X-Seen-Path"))
		assert.Equal(t, "root", resp.Header.Get("X-Seen-User"))
		assert.Equal(t, "ADMIN,USER", resp.Header.Get("X-Seen-Roles"))
		assert.Equal(t, "upstream", readBody(t, resp))
	})

	t.Run("path parameter does not hide an admin path", func(t *testing.T) {
		for _, p := range []string{"/produit-service/produits;x", "/produit-service/produits;/3"} {
			resp := do(t, ts, http.MethodDelete, p, user, nil)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode, p)
			assert.Empty(t, resp.Header.Get("X-Seen-Path"), p)
		}

		resp := do(t, ts, http.MethodDelete, "/produit-service/produits;x/3", admin, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "/produits/3", resp.Header.Get("X-Seen-Path"))
	})

	t.Run("client X-Forwarded-For is not trusted", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/produit-service/categories", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+user)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "127.0.0.1", resp.Header.Get("X-Seen-Forwarded-For"))
	})

	t.Run("authenticated path as user", func(t *testing.T) {
		resp := do(t, ts, http.MethodGet, "/produit-service/categories", user, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "alice", resp.Header.Get("X-Seen-User"))
	})

	t.Run("unrouted prefix", func(t *testing.T) {
		resp := do(t, ts, http.MethodGet, "/inventaire-service/stock", user, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("metrics need an admin token", func(t *testing.T) {
		resp := do(t, ts, http.MethodGet, "/metrics", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp = do(t, ts, http.MethodGet, "/metrics", user, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = do(t, ts, http.MethodGet, "/metrics", admin, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "edge_decisions_total")
	})

	t.Run("CORS preflight skips the edge", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodOptions, ts.URL+"/produit-service/produits", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://localhost:4200")
		req.Header.Set("Access-Control-Request-Method", "GET")
		req.Header.Set("Access-Control-Request-Headers", "Authorization")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Less(t, resp.StatusCode, 300)
		assert.Equal(t, "http://localhost:4200", resp.Header.Get("Access-Control-Allow-Origin"))
	})
}

// stubAccounts serves a fixed account list
type stubAccounts struct{}

func (stubAccounts) ListAccounts(context.Context, int, int) ([]*models.Account, error) {
	return []*models.Account{models.NewAccount("alice", "hash", []string{models.RoleUser})}, nil
}

func (stubAccounts) Register(_ context.Context, in services.RegisterInput) (*models.Account, error) {
	return models.NewAccount(in.Username, "hash", []string{models.RoleUser}), nil
}

func (stubAccounts) GrantRole(_ context.Context, in services.GrantRoleInput) (*models.Account, error) {
	return models.NewAccount(in.Username, "hash", []string{models.RoleUser, in.RoleName}), nil
}

func TestAuthRoutes(t *testing.T) {
	cfg := testConfig(config.ServiceAuth)
	logger := zaptest.NewLogger(t)
	verifier, err := tokens.NewVerifier(cfg.Token.Tokens())
	require.NoError(t, err)

	deps := &app.Dependencies{
		Config:         cfg,
		Logger:         logger,
		Verifier:       verifier,
		AuthMiddleware: middleware.NewAuthMiddleware(verifier, logger),
		Health:         handlers.NewHealthHandler(cfg.Service, nil, logger),
		AuthHandler:    auth.NewHandler(newIssuer(t), nil, logger),
		AccountHandler: handlers.NewAccountHandler(stubAccounts{}, logger),
	}
	ts := httptest.NewServer(SetupRoutes(deps))
	defer ts.Close()

	login := func(t *testing.T, path, username, password string) (*http.Response, string) {
		t.Helper()
		body := `{"username":"` + username + `","password":"` + password + `"}`
		resp := do(t, ts, http.MethodPost, path, "", strings.NewReader(body))
		if resp.StatusCode != http.StatusOK {
			return resp, ""
		}
		var out auth.LoginResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp, out.AccessToken
	}

	t.Run("login issues a token the verifier accepts", func(t *testing.T) {
		resp, token := login(t, "/api/auth/login", "alice", "secret")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		principal, err := verifier.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "alice", principal.Subject)
		assert.Equal(t, []string{"USER"}, principal.Roles)
	})

	t.Run("login alias", func(t *testing.T) {
		resp, token := login(t, "/login", "root", "secret")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, token)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp, _ := login(t, "/api/auth/login", "alice", "nope")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("current principal", func(t *testing.T) {
		_, token := login(t, "/api/auth/login", "alice", "secret")

		resp := do(t, ts, http.MethodGet, "/api/auth/me", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), `"username":"alice"`)

		resp = do(t, ts, http.MethodGet, "/api/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("account administration needs ADMIN", func(t *testing.T) {
		_, userToken := login(t, "/api/auth/login", "alice", "secret")
		_, adminToken := login(t, "/api/auth/login", "root", "secret")

		tests := []struct {
			name   string
			method string
			path   string
			body   string
			token  string
			want   int
		}{
			{"list anonymous", http.MethodGet, "/api/auth/users", "", "", http.StatusUnauthorized},
			{"list as user", http.MethodGet, "/api/auth/users", "", userToken, http.StatusForbidden},
			{"list as admin", http.MethodGet, "/api/auth/users", "", adminToken, http.StatusOK},
			{"register as user", http.MethodPost, "/api/auth/users", `{"username":"bob","password":"password1"}`, userToken, http.StatusForbidden},
			{"register as admin", http.MethodPost, "/api/auth/users", `{"username":"bob","password":"password1"}`, adminToken, http.StatusCreated},
			{"grant as user", http.MethodPost, "/api/auth/addRoleToUser", `{"username":"bob","roleName":"ADMIN"}`, userToken, http.StatusForbidden},
			{"grant as admin", http.MethodPost, "/api/auth/addRoleToUser", `{"username":"bob","roleName":"ADMIN"}`, adminToken, http.StatusOK},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var body io.Reader
				if tt.body != "" {
					body = strings.NewReader(tt.body)
				}
				resp := do(t, ts, tt.method, tt.path, tt.token, body)
				assert.Equal(t, tt.want, resp.StatusCode)
			})
		}
	})

	t.Run("unknown endpoint", func(t *testing.T) {
		resp := do(t, ts, http.MethodGet, "/api/auth/nope", "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

// echoCompleter answers with the message it was asked
type echoCompleter struct {
	calls int
}

func (c *echoCompleter) Complete(_ context.Context, req chat.CompletionRequest) (string, error) {
	c.calls++
	return "echo: " + req.Message, nil
}

func TestAgentRoutes(t *testing.T) {
	cfg := testConfig(config.ServiceAgent)
	logger := zaptest.NewLogger(t)
	verifier, err := tokens.NewVerifier(cfg.Token.Tokens())
	require.NoError(t, err)

	completer := &echoCompleter{}
	svc := chat.NewService(chat.NewAuthorizer(verifier, nil, logger), chat.DefaultPromptPolicies(),
		chat.NewMemory(10), completer, nil, logger)

	deps := &app.Dependencies{
		Config:      cfg,
		Logger:      logger,
		Health:      handlers.NewHealthHandler(cfg.Service, nil, logger),
		Chat:        svc,
		ChatHandler: handlers.NewChatHandler(svc, logger),
	}
	ts := httptest.NewServer(SetupRoutes(deps))
	defer ts.Close()

	t.Run("anonymous caller is refused a write intent", func(t *testing.T) {
		resp := do(t, ts, http.MethodGet, "/chat?message=delete+product+3", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, chat.AccessDenied, readBody(t, resp))
		assert.Equal(t, 0, completer.calls)
	})

	t.Run("admin caller reaches the backend", func(t *testing.T) {
		resp := do(t, ts, http.MethodGet, "/chat?message=delete+product+3", sign(t, "root", "ADMIN"), nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "echo: delete product 3", readBody(t, resp))
		assert.Equal(t, 1, completer.calls)
	})

	t.Run("missing message", func(t *testing.T) {
		resp := do(t, ts, http.MethodGet, "/chat", "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("metrics not mounted without collectors", func(t *testing.T) {
		resp := do(t, ts, http.MethodGet, "/metrics", "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
