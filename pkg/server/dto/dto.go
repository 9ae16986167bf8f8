// Package dto defines the wire types for the HTTP surface. The engine
// mandates no wire format; serialization lives entirely here.
package dto

import "time"

// CreateUserRequest bootstraps a user's graph.
type CreateUserRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// CreateSessionRequest ingests one episode of session text.
type CreateSessionRequest struct {
	UserID    string     `json:"user_id" binding:"required"`
	Text      string     `json:"text" binding:"required"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// SessionResponse describes a committed episode.
type SessionResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	SessionNumber int       `json:"session_number"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"created_at"`
}

// QueryRequest searches a user's graph.
type QueryRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Query  string `json:"query" binding:"required"`
	Limit  int    `json:"limit,omitempty"`
}

// CenterNodeQueryRequest bounds the search to a subgraph around a node.
type CenterNodeQueryRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	CenterNodeID string `json:"center_node_id" binding:"required"`
	Query        string `json:"query" binding:"required"`
	Depth        int    `json:"depth,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

// FactResult is one ranked fact.
type FactResult struct {
	UUID      string     `json:"uuid"`
	Fact      string     `json:"fact"`
	Score     float64    `json:"score"`
	ValidAt   *time.Time `json:"valid_at,omitempty"`
	InvalidAt *time.Time `json:"invalid_at,omitempty"`
}

// QueryResponse wraps ranked facts.
type QueryResponse struct {
	Facts []FactResult `json:"facts"`
	Total int          `json:"total"`
}

// DeleteUserResponse reports what a teardown removed.
type DeleteUserResponse struct {
	Status          string `json:"status"`
	NodesDeleted    int    `json:"nodes_deleted"`
	EdgesDeleted    int    `json:"edges_deleted"`
	EpisodesDeleted int    `json:"episodes_deleted"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
