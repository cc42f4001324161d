package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/nexuscore/nexus/internal/queue"
	"github.com/nexuscore/nexus/internal/store"
)

// parseUUID wraps uuid.Parse so handlers share one error path for
// malformed path/body identifiers.
func parseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// userIsBanned loads the user and reports its banned flag. A lookup
// failure is treated as "not banned" here; the caller (auth) already
// rejected unknown users upstream.
func (s *Server) userIsBanned(ctx context.Context, userID string) (bool, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.Banned, nil
}

// tierFor resolves the queue admission tier for userID from its stored
// role/tier (spec.md §4.3: admin requests always dequeue first).
func (s *Server) tierFor(ctx context.Context, userID string) queue.Tier {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return queue.TierStandard
	}
	if u.Role == store.RoleAdmin {
		return queue.TierAdmin
	}
	if u.Tier == "premium" {
		return queue.TierPremium
	}
	return queue.TierStandard
}
