// Package agent holds the capability agents. Each agent owns one
// capability name and a set of actions; the orchestrator dispatches to
// them and never reaches around them into storage.
//
// Agents that propose ProjectContext changes do not write them. They
// return a MutationProposal in the Result and the orchestrator runs it
// through the conflict gate. Any LLM work an agent needs happens inside
// Handle, before the gate, so no lock is ever held across a network
// call.
package agent

import (
	"context"

	"github.com/fyrsmithlabs/tutord/internal/domain"
)

// Agent is the contract every capability implements.
type Agent interface {
	// Capability is the stable capability name used in requests.
	Capability() string

	// Handle executes one action. Unknown actions return an
	// UnsupportedAction error. Returned errors are typed from the
	// domain taxonomy; the orchestrator converts them to Results.
	Handle(ctx context.Context, action string, params map[string]any) (*domain.Result, error)

	// MutatingActions lists the actions whose Results carry a
	// MutationProposal for the conflict gate.
	MutatingActions() []string
}

func unsupportedAction(capability, action string) error {
	return domain.Errorf(domain.KindUnsupportedAction,
		"capability %q does not support action %q", capability, action)
}
