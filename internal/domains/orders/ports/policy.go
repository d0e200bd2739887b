package ports

import "context"

// AuthzRequest describes an action to be authorized by the policy gate.
type AuthzRequest struct {
	Action   string         `json:"action"`
	Resource map[string]any `json:"resource"`
	Subject  map[string]any `json:"subject"`
}

// AuthzDecision is the gate's answer; Reason explains denials (and fail-open
// or fail-closed fallbacks).
type AuthzDecision struct {
	Allowed bool
	Reason  string
}

// PolicyClient is the optional authorization gate consulted before mutating
// operations.
type PolicyClient interface {
	Enabled() bool
	Authorize(ctx context.Context, req AuthzRequest) (AuthzDecision, error)
}

// AllowAllPolicy is the disabled variant: always permissive, selected at
// construction time so use cases never nil-check the gate.
type AllowAllPolicy struct{}

func (AllowAllPolicy) Enabled() bool { return false }

func (AllowAllPolicy) Authorize(context.Context, AuthzRequest) (AuthzDecision, error) {
	return AuthzDecision{Allowed: true, Reason: "policy gate not configured"}, nil
}

var _ PolicyClient = AllowAllPolicy{}
