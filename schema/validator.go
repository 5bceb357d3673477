package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed mention_document.schema.json
var mentionDocumentSchemaJSON string

// MentionDocument is one submitted registry document: a page or article that
// mentions a movement.
type MentionDocument struct {
	PayloadVersion string   `json:"payload_version"`
	Source         string   `json:"source"`
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	SourceType     *string  `json:"source_type,omitempty"`
	Domain         *string  `json:"domain,omitempty"`
	Language       *string  `json:"language,omitempty"`
	PublishedAt    *string  `json:"published_at,omitempty"`
	BodyText       *string  `json:"body_text,omitempty"`
	Excerpt        *string  `json:"excerpt,omitempty"`
	MovementHint   *string  `json:"movement_hint,omitempty"`
	ScrapedBy      *string  `json:"scraped_by,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateMentionPayload decodes, schema-checks and semantically validates a
// raw payload.
func ValidateMentionPayload(payload json.RawMessage) (*MentionDocument, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var doc MentionDocument
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("mention_document.schema.json", strings.NewReader(mentionDocumentSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("mention_document.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(doc *MentionDocument) error {
	if doc == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(doc.PayloadVersion) != "v1" {
		return fmt.Errorf("payload_version must be v1")
	}
	if strings.TrimSpace(doc.Source) == "" {
		return fmt.Errorf("source must not be empty")
	}
	if strings.TrimSpace(doc.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}

	trimmedURL := strings.TrimSpace(doc.URL)
	if trimmedURL == "" {
		return fmt.Errorf("url must not be empty")
	}
	if _, err := url.ParseRequestURI(trimmedURL); err != nil {
		return fmt.Errorf("url is not a valid URI: %w", err)
	}

	if doc.PublishedAt != nil {
		if _, err := time.Parse(time.RFC3339, strings.TrimSpace(*doc.PublishedAt)); err != nil {
			return fmt.Errorf("published_at must be RFC3339: %w", err)
		}
	}

	for i, keyword := range doc.Keywords {
		if strings.TrimSpace(keyword) == "" {
			return fmt.Errorf("keywords[%d] must not be empty", i)
		}
	}

	return nil
}
