// Package referral answers ancestor-chain queries over the invitation graph.
package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfanzaky/refledger/internal/domain"
	"github.com/alfanzaky/refledger/pkg/logger"
)

// MaxDepthCap bounds every traversal regardless of the requested depth.
const MaxDepthCap = 64

// ParentLookup resolves the inviting user of an account.
type ParentLookup interface {
	GetParentID(ctx context.Context, id string) (*string, error)
}

// Ancestor is one referrer above a user. Level 1 is the direct parent.
type Ancestor struct {
	UserID string `json:"user_id"`
	Level  int    `json:"level"`
}

// Graph walks parent references.
type Graph struct {
	parents ParentLookup
}

// NewGraph creates a graph over the given parent lookup
func NewGraph(parents ParentLookup) *Graph {
	return &Graph{parents: parents}
}

// AncestorsOf returns the ancestor chain of userID ordered by level, stopping
// at the root or at maxDepth. Revisiting any user fails with ErrGraphCycle.
func (g *Graph) AncestorsOf(ctx context.Context, userID string, maxDepth int) ([]Ancestor, error) {
	if maxDepth > MaxDepthCap {
		maxDepth = MaxDepthCap
	}

	parent, err := g.parents.GetParentID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve parent of %s: %w", userID, err)
	}

	visited := map[string]struct{}{userID: {}}
	ancestors := make([]Ancestor, 0, 4)

	for level := 1; parent != nil && level <= maxDepth; level++ {
		id := *parent
		if _, seen := visited[id]; seen {
			logger.Error("Referral cycle detected",
				logger.String("user_id", userID),
				logger.String("repeated_id", id),
				logger.Int("level", level),
			)
			return nil, fmt.Errorf("%w: %s reached again at level %d from %s", domain.ErrGraphCycle, id, level, userID)
		}
		visited[id] = struct{}{}
		ancestors = append(ancestors, Ancestor{UserID: id, Level: level})

		parent, err = g.parents.GetParentID(ctx, id)
		if errors.Is(err, domain.ErrUnknownUser) {
			// dangling reference, the chain ends here
			logger.Warn("Referral chain references missing user",
				logger.String("user_id", userID),
				logger.String("missing_id", id),
			)
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve parent of %s: %w", id, err)
		}
	}

	return ancestors, nil
}
