package app

import (
	"context"
	"fmt"

	"github.com/upb/commerce-gateway/auth"
	"github.com/upb/commerce-gateway/chat"
	"github.com/upb/commerce-gateway/config"
	"github.com/upb/commerce-gateway/gateway"
	"github.com/upb/commerce-gateway/handlers"
	"github.com/upb/commerce-gateway/internal/observability"
	"github.com/upb/commerce-gateway/middleware"
	"github.com/upb/commerce-gateway/repositories/postgres"
	"github.com/upb/commerce-gateway/services"
	"github.com/upb/commerce-gateway/services/providers"
	"github.com/upb/commerce-gateway/services/providers/openai"
	"github.com/upb/commerce-gateway/tokens"
	"go.uber.org/zap"
)

// Dependencies holds everything one binary needs. Only the section for
// Config.Service is populated; the shared part is always set.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Shared
	Verifier       *tokens.Verifier
	AuthMiddleware *middleware.AuthMiddleware
	Health         *handlers.HealthHandler

	// api-gateway
	Edge  *middleware.EdgeEnforcer
	Proxy *gateway.Proxy

	// auth-service
	RepoFactory    *postgres.RepositoryFactory
	Accounts       *services.AccountService
	AuthHandler    *auth.Handler
	AccountHandler *handlers.AccountHandler

	// agent-service
	Chat        *chat.Service
	ChatHandler *handlers.ChatHandler
}

// NewDependencies creates and wires the dependencies of cfg.Service
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps, err := newShared(cfg, logger)
	if err != nil {
		return nil, err
	}

	switch cfg.Service {
	case config.ServiceGateway:
		err = deps.initGateway()
	case config.ServiceAuth:
		var factory *postgres.RepositoryFactory
		factory, err = postgres.NewRepositoryFactory(ctx, cfg.Database, deps.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		err = deps.initAuth(ctx, factory)
	case config.ServiceAgent:
		err = deps.initAgent()
	default:
		err = fmt.Errorf("unknown service %q", cfg.Service)
	}
	if err != nil {
		_ = deps.Close(ctx)
		return nil, err
	}

	deps.Logger.Info("all dependencies initialized successfully",
		zap.String("service", cfg.Service))
	return deps, nil
}

func newShared(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics(cfg.Service)
	}

	verifier, err := tokens.NewVerifier(cfg.Token.Tokens())
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}
	deps.Verifier = verifier
	deps.AuthMiddleware = middleware.NewAuthMiddleware(verifier, logger)
	deps.Health = handlers.NewHealthHandler(cfg.Service, nil, logger)
	return deps, nil
}

// initGateway builds the rule set, the upstream proxy and the edge enforcer
func (d *Dependencies) initGateway() error {
	rules, err := gateway.NewRuleSet(d.Config.Gateway.PublicPaths, d.Config.Gateway.AdminPaths)
	if err != nil {
		return fmt.Errorf("invalid gateway rules: %w", err)
	}
	proxy, err := gateway.NewProxy(d.Config.Gateway.Routes, d.Logger)
	if err != nil {
		return fmt.Errorf("invalid gateway routes: %w", err)
	}

	d.Proxy = proxy
	d.Edge = middleware.NewEdgeEnforcer(rules, d.Verifier, d.Metrics, d.Logger)

	for _, rule := range rules.Rules() {
		d.Logger.Info("gateway rule",
			zap.String("pattern", rule.Pattern),
			zap.String("requirement", rule.Requirement.String()))
	}
	for _, route := range proxy.Routes() {
		d.Logger.Info("gateway route",
			zap.String("prefix", route.Prefix),
			zap.String("upstream", route.Upstream.String()))
	}
	return nil
}

// initAuth wires the account store, the token issuer and the admin endpoints
func (d *Dependencies) initAuth(ctx context.Context, factory *postgres.RepositoryFactory) error {
	d.RepoFactory = factory
	repos := factory.NewRepositories()

	authenticator, err := services.NewAccountAuthenticator(repos.Accounts, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}
	issuer, err := tokens.NewIssuer(d.Config.Token.Tokens(), authenticator, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	d.Accounts = services.NewAccountService(repos.Accounts, factory.GetTransactionManager(), d.Logger)
	d.AuthHandler = auth.NewHandler(issuer, d.Metrics, d.Logger)
	d.AccountHandler = handlers.NewAccountHandler(d.Accounts, d.Logger)
	d.Health = handlers.NewHealthHandler(d.Config.Service, map[string]handlers.CheckFunc{
		"database": d.Accounts.Ready,
	}, d.Logger)

	if b := d.Config.Bootstrap; b.AdminUsername != "" {
		if err := d.Accounts.EnsureAdmin(ctx, b.AdminUsername, b.AdminPassword); err != nil {
			return fmt.Errorf("failed to bootstrap admin account: %w", err)
		}
	}
	return nil
}

// initAgent wires the intent authorizer and the generative backend
func (d *Dependencies) initAgent() error {
	permissions := chat.DefaultPermissions()
	if d.Config.Chat.UserIntents != nil {
		table, err := chat.PermissionTableFromAllowList(d.Config.Chat.UserIntents)
		if err != nil {
			return fmt.Errorf("invalid intent allow list: %w", err)
		}
		permissions = table
	}

	oa := d.Config.Providers.OpenAI
	if oa.APIKey == "" {
		d.Logger.Warn("no generative backend key configured, chat requests will fail")
	}
	provider := openai.NewOpenAIAdapter(providers.ProviderConfig{
		APIKey:     oa.APIKey,
		BaseURL:    oa.BaseURL,
		Timeout:    oa.Timeout,
		MaxRetries: oa.MaxRetries,
	})

	authorizer := chat.NewAuthorizer(d.Verifier, permissions, d.Logger)
	completer := chat.NewProviderCompleter(provider, d.Config.Chat.Model, d.Config.Chat.Temperature)
	memory := chat.NewMemory(d.Config.Chat.MemoryWindow)

	allowed := make([]string, 0, len(permissions.Allowed()))
	for _, intent := range permissions.Allowed() {
		allowed = append(allowed, string(intent))
	}
	d.Logger.Info("chat configured",
		zap.Strings("user_intents", allowed),
		zap.Int("memory_window", memory.Window()),
		zap.String("model", d.Config.Chat.Model))

	d.Chat = chat.NewService(authorizer, chat.DefaultPromptPolicies(), memory, completer, d.Metrics, d.Logger)
	d.ChatHandler = handlers.NewChatHandler(d.Chat, d.Logger)
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}
