package types

import "time"

// Episode is one ingested unit of text tied to a user and a gapless,
// monotonically increasing session number within that user's scope.
// Episodes are immutable once committed, except for the back-reference sets
// of produced nodes and edges, and are deleted only as part of a full
// tenant teardown.
type Episode struct {
	ID            string `json:"id"`
	TenantID      string `json:"tenant_id"`
	UserID        string `json:"user_id"`
	SessionNumber int    `json:"session_number"`

	Name    string `json:"name"`
	Content string `json:"content"`
	// Source describes where the content came from, e.g. "session summary".
	Source string `json:"source,omitempty"`

	// Reference is the episode's own timestamp: when the described events
	// happened, as opposed to CreatedAt, when the system ingested them.
	Reference time.Time `json:"reference"`
	CreatedAt time.Time `json:"created_at"`

	// NodeIDs and EdgeIDs record what this episode produced or touched.
	NodeIDs []string `json:"node_ids,omitempty"`
	EdgeIDs []string `json:"edge_ids,omitempty"`
}

// Validate checks that the episode carries its required fields.
func (e *Episode) Validate() error {
	if e.Content == "" {
		return ErrEmptyContent
	}
	if e.TenantID == "" {
		return ErrEmptyTenantID
	}
	if e.UserID == "" {
		return ErrEmptyID
	}
	return nil
}
