package repositories

import (
	"context"

	"github.com/danuharapan/senandika/server/domain/entities"
)

// Responder produces the single agent reply for one accepted user turn.
// Implementations must stay deterministic per role for the canned variant;
// a model-backed variant must preserve the one-reply-per-turn contract.
type Responder interface {
	// Opening returns the transcript's opening line for a role.
	Opening(role entities.Role) string
	// Reply generates the agent turn text for a user message under the
	// given persona binding.
	Reply(ctx context.Context, binding entities.PersonaBinding, role entities.Role, message string) (string, error)
}
