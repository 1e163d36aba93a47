package shared

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID generates an opaque entity ID: prefix, millisecond timestamp and a
// short random suffix. The shape matches the IDs found in existing
// snapshots, so freshly generated records sort roughly by creation time.
func NewID(prefix string) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:9]
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), suffix)
}

// IsValidID reports whether the ID is non-empty and free of whitespace.
// Legacy snapshots contain hand-written IDs ("teacher-1"), so the check is
// deliberately loose.
func IsValidID(id string) bool {
	return id != "" && !strings.ContainsAny(id, " \t\n\r")
}
