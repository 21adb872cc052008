package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/commerce-gateway/internal/observability"
	"github.com/upb/commerce-gateway/services/providers"
	"go.uber.org/zap"
)

// ErrBackendUnavailable is returned when the generative backend fails.
// Memory is left untouched in that case.
var ErrBackendUnavailable = errors.New("chat backend unavailable")

// Service answers chat messages after intent authorization
type Service struct {
	authorizer *Authorizer
	policies   PromptPolicies
	memory     *Memory
	completer  Completer
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewService wires the chat pipeline
func NewService(authorizer *Authorizer, policies PromptPolicies, memory *Memory, completer Completer, metrics *observability.Metrics, logger *zap.Logger) *Service {
	if memory == nil {
		memory = NewMemory(DefaultMemoryWindow)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		authorizer: authorizer,
		policies:   policies,
		memory:     memory,
		completer:  completer,
		metrics:    metrics,
		logger:     logger,
	}
}

// Chat resolves the caller, classifies the message and either refuses with
// AccessDenied or relays the backend answer verbatim. A denied intent never
// reaches the backend.
func (s *Service) Chat(ctx context.Context, authHeader, message string) (string, error) {
	tier := s.authorizer.Resolve(authHeader)
	intent := Classify(message)
	allowed := s.authorizer.IsAllowed(tier.Admin, intent)
	s.metrics.RecordIntentDecision(string(intent), allowed)

	if !allowed {
		s.logger.Info("chat intent denied",
			zap.String("sub", tier.Subject()),
			zap.String("intent", string(intent)))
		return AccessDenied, nil
	}

	key, remember := tier.MemoryKey()
	var history []providers.Message
	if remember {
		history = s.memory.Recent(key)
	}

	answer, err := s.completer.Complete(ctx, CompletionRequest{
		Policy:  s.policies.Select(tier.Admin),
		History: history,
		Message: message,
		Subject: tier.Subject(),
	})
	if err != nil {
		s.logger.Warn("chat backend failed",
			zap.String("sub", tier.Subject()),
			zap.String("intent", string(intent)),
			zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if remember {
		s.memory.Append(key,
			providers.Message{Role: providers.RoleUser, Content: message},
			providers.Message{Role: providers.RoleAssistant, Content: answer},
		)
	}
	return answer, nil
}
