// Package models defines core data structures for documents, queries, and retrieval results.
package models

import "time"

// Document represents a stored clinical document with metadata.
// ID is globally unique and stable across reindexing; it is the join key
// between the lexical and semantic indexes.
type Document struct {
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Abstract  string    `json:"abstract" db:"abstract"`
	Body      string    `json:"body" db:"body"`
	Authors   string    `json:"authors,omitempty" db:"authors"`
	Category  string    `json:"category,omitempty" db:"category"`
	Quality   float64   `json:"quality" db:"quality"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EmbeddingText returns the canonical text embedded for the semantic index:
// title and abstract concatenated in fixed order.
func (d *Document) EmbeddingText() string {
	if d.Abstract == "" {
		return d.Title
	}
	return d.Title + " " + d.Abstract
}

// ScoringText returns the text scored by the pairwise reranker:
// abstract, falling back to body then title.
func (d *Document) ScoringText() string {
	if d.Abstract != "" {
		return d.Abstract
	}
	if d.Body != "" {
		return d.Body
	}
	return d.Title
}

// DocumentInput is the input for creating or replacing a document.
// Body defaults to Abstract when absent; Quality defaults to 0.5.
type DocumentInput struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Abstract string   `json:"abstract"`
	Body     string   `json:"body,omitempty"`
	Authors  string   `json:"authors,omitempty"`
	Category string   `json:"category,omitempty"`
	Quality  *float64 `json:"quality,omitempty"`
}
