package chat

import "github.com/upb/commerce-gateway/tokens"

// AccessDenied is the fixed refusal returned for a denied intent
const AccessDenied = "🚫 Accès refusé\n\n" +
	"Vous n'avez pas les droits nécessaires pour effectuer cette action."

// PromptPolicy is the system instruction and tool scope for one tier
type PromptPolicy struct {
	Role         string
	SystemPrompt string
	AllowedTools []string
}

const adminPrompt = `You display business data to administrators.

Rules:
- Always use tools to fetch real data
- Show results as a simple numbered list
- Never invent data
- If nothing exists, say so clearly
`

const userPrompt = `You display product data to users.

Rules:
- You may ONLY show products
- Always use tools
- Show results as a simple numbered list
- Never invent data
`

// PromptPolicies holds one policy per tier
type PromptPolicies struct {
	Admin PromptPolicy
	User  PromptPolicy
}

// DefaultPromptPolicies returns the built-in admin and user policies
func DefaultPromptPolicies() PromptPolicies {
	return PromptPolicies{
		Admin: PromptPolicy{
			Role:         tokens.RoleAdmin,
			SystemPrompt: adminPrompt,
			AllowedTools: []string{"products", "clients", "orders"},
		},
		User: PromptPolicy{
			Role:         tokens.RoleUser,
			SystemPrompt: userPrompt,
			AllowedTools: []string{"products"},
		},
	}
}

// Select returns the policy for the caller's tier
func (p PromptPolicies) Select(admin bool) PromptPolicy {
	if admin {
		return p.Admin
	}
	return p.User
}
