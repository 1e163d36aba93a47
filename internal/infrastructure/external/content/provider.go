// Package content implements the AI content provider seam: role-aware
// generated copy for enriched notifications, with a fixed fallback when the
// remote service is unavailable or returns something unparseable.
package content

import (
	"context"
)

// Request describes what to generate: the dashboard role the copy targets,
// the profile it concerns and a structured context payload.
type Request struct {
	// Role is the dashboard role the content is written for ("parent",
	// "teacher", ...).
	Role string `json:"role"`

	// ProfileName is the display name of the person the content concerns.
	ProfileName string `json:"profileName"`

	// Context carries the structured situation the generator should use
	// (metrics, alert types, activity titles).
	Context map[string]interface{} `json:"context"`
}

// Generated is the produced copy.
type Generated struct {
	// Title is a short heading.
	Title string `json:"title"`

	// Body is the message text.
	Body string `json:"body"`

	// Source reports which provider produced the copy ("primary" or
	// "fallback").
	Source string `json:"source"`
}

// Provider generates user-facing content for a request. Implementations
// must be safe for concurrent use.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Generated, error)
}
