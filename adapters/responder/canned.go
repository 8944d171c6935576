package responder

import (
	"context"

	"github.com/danuharapan/senandika/server/domain/entities"
)

// CannedResponder answers from the role catalog. The reply family is fixed
// per role, so switching the bound role is the only thing that changes the
// agent's voice.
type CannedResponder struct{}

// NewCannedResponder creates the catalog-backed responder.
func NewCannedResponder() *CannedResponder {
	return &CannedResponder{}
}

// Opening returns the role's transcript opening line.
func (r *CannedResponder) Opening(role entities.Role) string {
	return role.Opening
}

// Reply returns the role's canned reply regardless of message content.
func (r *CannedResponder) Reply(ctx context.Context, binding entities.PersonaBinding, role entities.Role, message string) (string, error) {
	return role.Reply, nil
}
