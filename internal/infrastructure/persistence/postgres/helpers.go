package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kary-hub/kary-sync-engine/internal/domain/shared"
)

// resolveUpdateMiss classifies a versioned UPDATE that touched zero rows:
// either the row is gone (notFound) or someone else bumped the version
// first (shared.ErrOptimisticLock).
func (c *Connection) resolveUpdateMiss(ctx context.Context, table, id string, notFound error) error {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)", table)
	if err := c.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check %s row: %w", table, err)
	}
	if !exists {
		return notFound
	}
	return shared.ErrOptimisticLock
}

// marshalStrings serializes a string slice for a JSONB column, never nil.
func marshalStrings(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}
