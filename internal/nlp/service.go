// Package nlp enriches ingested documents with sentiment and named entities
// from an external analysis endpoint. The whole package is optional: without
// a configured endpoint the disabled provider keeps ingestion running with
// empty annotations.
package nlp

import (
	"context"
	"strings"
)

// Sentiment is a classification label with its confidence.
type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Entity is one named entity found in the text.
type Entity struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// Analysis is the combined annotation for one document.
type Analysis struct {
	Sentiment *Sentiment `json:"sentiment,omitempty"`
	Entities  []Entity   `json:"entities,omitempty"`
}

// Provider analyzes free-form text.
type Provider interface {
	Analyze(ctx context.Context, text string) (*Analysis, error)
	Name() string
}

// Disabled is the no-op provider used when no endpoint is configured.
type Disabled struct{}

func (Disabled) Analyze(ctx context.Context, text string) (*Analysis, error) {
	return &Analysis{}, nil
}

func (Disabled) Name() string { return "disabled" }

// FromEndpoint picks the local provider when an endpoint is configured and
// the disabled one otherwise.
func FromEndpoint(endpoint string) Provider {
	if strings.TrimSpace(endpoint) == "" {
		return Disabled{}
	}
	return NewLocalProvider(endpoint)
}
