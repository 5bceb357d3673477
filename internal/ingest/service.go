// Package ingest turns validated mention payloads into deduplicated source
// rows: fetch text when the payload has none, detect language, enrich with
// sentiment, resolve the movement and hand the document to the content
// deduplicator.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/movements/internal/contentdedup"
	"horse.fit/movements/internal/db"
	"horse.fit/movements/internal/langdetect"
	"horse.fit/movements/internal/language"
	"horse.fit/movements/internal/match"
	"horse.fit/movements/internal/nlp"
	"horse.fit/movements/internal/reader"
	payloadschema "horse.fit/movements/schema"
)

// Fetcher retrieves readable text for a document URL.
type Fetcher interface {
	FetchText(ctx context.Context, url, title string) (string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url, title string) (string, error)

func (f FetcherFunc) FetchText(ctx context.Context, url, title string) (string, error) {
	return f(ctx, url, title)
}

// ReaderFetcher uses the readability-based fetcher.
func ReaderFetcher() Fetcher {
	return FetcherFunc(reader.FetchText)
}

// Result reports what happened to one ingested document.
type Result struct {
	SourceID    int64               `json:"source_id"`
	Inserted    bool                `json:"inserted"`
	Reason      contentdedup.Reason `json:"reason"`
	MovementID  *int64              `json:"movement_id,omitempty"`
	MatchMethod string              `json:"match_method,omitempty"`
	Language    string              `json:"language,omitempty"`
}

// Service is the ingestion pipeline. Matching and enrichment failures
// degrade gracefully; only validation and storage errors fail a document.
type Service struct {
	dedup    *contentdedup.Deduplicator
	matcher  *match.Matcher
	provider nlp.Provider
	fetcher  Fetcher
	detect   func(string) string
	minScore int
	logger   zerolog.Logger
}

// Options tunes optional service behavior.
type Options struct {
	// Fetcher fills in body text for payloads without one. Nil disables
	// fetching; such documents are stored with the excerpt or title only.
	Fetcher Fetcher
	// MinScore is the fuzzy matching threshold; <= 0 uses the default.
	MinScore int
}

func NewService(dedup *contentdedup.Deduplicator, matcher *match.Matcher, provider nlp.Provider, opts Options, logger zerolog.Logger) *Service {
	if provider == nil {
		provider = nlp.Disabled{}
	}
	return &Service{
		dedup:    dedup,
		matcher:  matcher,
		provider: provider,
		fetcher:  opts.Fetcher,
		detect:   langdetect.DetectISO6391,
		minScore: opts.MinScore,
		logger:   logger,
	}
}

// Ingest validates and stores one raw payload.
func (s *Service) Ingest(ctx context.Context, payload json.RawMessage) (Result, error) {
	doc, err := payloadschema.ValidateMentionPayload(payload)
	if err != nil {
		return Result{}, fmt.Errorf("invalid payload: %w", err)
	}
	return s.IngestDocument(ctx, doc)
}

// IngestDocument stores one validated document.
func (s *Service) IngestDocument(ctx context.Context, doc *payloadschema.MentionDocument) (Result, error) {
	if doc == nil {
		return Result{}, fmt.Errorf("document is nil")
	}

	text := s.resolveText(ctx, doc)
	lang := s.resolveLanguage(doc, text)

	params := db.InsertSourceParams{
		URL:        strings.TrimSpace(doc.URL),
		SourceName: optional(doc.Source),
		SourceType: doc.SourceType,
		Domain:     resolveDomain(doc),
		ScrapedBy:  doc.ScrapedBy,
	}
	if lang != "" {
		params.Language = &lang
	}
	if doc.PublishedAt != nil {
		if published, err := time.Parse(time.RFC3339, strings.TrimSpace(*doc.PublishedAt)); err == nil {
			utc := published.UTC()
			params.PublicationDate = &utc
		}
	}
	if doc.Excerpt != nil && strings.TrimSpace(*doc.Excerpt) != "" {
		params.ContentExcerpt = doc.Excerpt
	}
	if text != "" {
		params.ContentFull = &text
		words := len(strings.Fields(text))
		params.WordCount = &words
		if params.ContentExcerpt == nil {
			excerpt, _ := reader.TruncateText(text, 500)
			params.ContentExcerpt = &excerpt
		}
	}
	if len(doc.Keywords) > 0 {
		if encoded, err := json.Marshal(doc.Keywords); err == nil {
			params.KeywordsFound = encoded
		}
	}

	result := Result{Language: lang}

	if matched, ok := s.resolveMovement(doc, text); ok {
		params.MovementID = &matched.MovementID
		result.MovementID = &matched.MovementID
		result.MatchMethod = string(matched.Method)
	}

	s.enrich(ctx, text, &params)

	stored, err := s.dedup.InsertOrGet(ctx, params)
	if err != nil {
		return Result{}, err
	}
	result.SourceID = stored.SourceID
	result.Inserted = stored.Inserted
	result.Reason = stored.Reason
	return result, nil
}

// resolveText prefers payload body text and falls back to fetching. A failed
// fetch is logged, not fatal: the document is still worth recording.
func (s *Service) resolveText(ctx context.Context, doc *payloadschema.MentionDocument) string {
	if doc.BodyText != nil && strings.TrimSpace(*doc.BodyText) != "" {
		return reader.CleanText(*doc.BodyText)
	}
	if s.fetcher == nil {
		return ""
	}

	text, err := s.fetcher.FetchText(ctx, doc.URL, doc.Title)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", doc.URL).Msg("text fetch failed, storing without body")
		return ""
	}
	return text
}

func (s *Service) resolveLanguage(doc *payloadschema.MentionDocument, text string) string {
	if doc.Language != nil {
		if code := language.NormalizeCode(*doc.Language); code != "" {
			return code
		}
	}
	sample := text
	if sample == "" {
		sample = doc.Title
	}
	return s.detect(sample)
}

// resolveMovement tries the explicit hint first, then the matcher over title
// plus body.
func (s *Service) resolveMovement(doc *payloadschema.MentionDocument, text string) (match.Match, bool) {
	if s.matcher == nil {
		return match.Match{}, false
	}

	if doc.MovementHint != nil && strings.TrimSpace(*doc.MovementHint) != "" {
		if matched, ok := s.matcher.Match(*doc.MovementHint, s.minScore); ok {
			return matched, true
		}
	}

	matchText := doc.Title
	if text != "" {
		matchText += "\n" + text
	}
	return s.matcher.Match(matchText, s.minScore)
}

func (s *Service) enrich(ctx context.Context, text string, params *db.InsertSourceParams) {
	if text == "" {
		return
	}
	analysis, err := s.provider.Analyze(ctx, text)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", params.URL).Msg("nlp analysis failed, storing without enrichment")
		return
	}
	if analysis.Sentiment != nil {
		score := analysis.Sentiment.Score
		label := analysis.Sentiment.Label
		params.SentimentScore = &score
		params.ClassificationLabel = &label
	}
}

func resolveDomain(doc *payloadschema.MentionDocument) *string {
	if doc.Domain != nil && strings.TrimSpace(*doc.Domain) != "" {
		return doc.Domain
	}
	parsed, err := url.Parse(strings.TrimSpace(doc.URL))
	if err != nil || parsed.Host == "" {
		return nil
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	return &host
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
