// Package identity provides the built-in resolver used when no external
// identity provider is wired in.
package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"vigil/internal/auth/models"
	id "vigil/pkg/domain"
	dErrors "vigil/pkg/domain-errors"
	platformstrings "vigil/pkg/platform/strings"
)

// StaticResolver resolves usernames from a fixed roster. User IDs are
// name-based UUIDs, so a given username keeps its ID across restarts.
//
// Roster syntax: "alice:admin|user,bob:user". An empty roster switches to
// open mode, where any non-empty username resolves with the "user" role;
// that mode exists for development and is no substitute for a credential
// check.
type StaticResolver struct {
	users map[string][]string
	open  bool
}

// NewStaticResolver parses a roster spec.
func NewStaticResolver(spec string) *StaticResolver {
	r := &StaticResolver{users: make(map[string][]string)}
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, rolesSpec, _ := strings.Cut(entry, ":")
		roles := platformstrings.DedupeAndTrim(strings.Split(rolesSpec, "|"))
		if len(roles) == 0 {
			roles = []string{"user"}
		}
		r.users[name] = roles
	}
	r.open = len(r.users) == 0
	return r
}

// Resolve returns the identity for a roster username.
func (r *StaticResolver) Resolve(_ context.Context, username string) (models.Identity, error) {
	if username == "" {
		return models.Identity{}, dErrors.New(dErrors.CodeInvalidInput, "username required")
	}

	roles, ok := r.users[username]
	if !ok {
		if !r.open {
			return models.Identity{}, dErrors.Newf(dErrors.CodeNotFound, "unknown user %q", username)
		}
		roles = []string{"user"}
	}

	return models.Identity{
		ID:       id.UserID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(username))),
		Username: username,
		Roles:    roles,
	}, nil
}
