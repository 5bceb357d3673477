package payloadschema

import (
	"encoding/json"
	"strings"
	"testing"
)

func validPayload() map[string]any {
	return map[string]any{
		"payload_version": "v1",
		"source":          "monitor",
		"url":             "https://example.cz/clanek",
		"title":           "Hnutí Hare Kršna otevřelo centrum",
		"language":        "cs",
		"published_at":    "2024-05-01T10:00:00Z",
		"body_text":       "Delší text článku.",
	}
}

func marshal(t *testing.T, payload map[string]any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}

func TestValidateMentionPayload(t *testing.T) {
	t.Parallel()

	doc, err := ValidateMentionPayload(marshal(t, validPayload()))
	if err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
	if doc.URL != "https://example.cz/clanek" {
		t.Fatalf("url = %q", doc.URL)
	}
	if doc.Language == nil || *doc.Language != "cs" {
		t.Fatalf("language not carried through")
	}
}

func TestValidateMentionPayloadRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing url", func(p map[string]any) { delete(p, "url") }},
		{"missing title", func(p map[string]any) { delete(p, "title") }},
		{"blank source", func(p map[string]any) { p["source"] = "  " }},
		{"wrong version", func(p map[string]any) { p["payload_version"] = "v2" }},
		{"invalid url", func(p map[string]any) { p["url"] = "not a url" }},
		{"bad language code", func(p map[string]any) { p["language"] = "czech" }},
		{"bad published_at", func(p map[string]any) { p["published_at"] = "yesterday" }},
		{"unknown field", func(p map[string]any) { p["surprise"] = true }},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			payload := validPayload()
			tc.mutate(payload)
			if _, err := ValidateMentionPayload(marshal(t, payload)); err == nil {
				t.Fatalf("expected rejection")
			}
		})
	}
}

func TestValidateMentionPayloadStrictJSON(t *testing.T) {
	t.Parallel()

	if _, err := ValidateMentionPayload(nil); err == nil {
		t.Fatalf("empty payload must be rejected")
	}

	raw := string(marshal(t, validPayload()))
	if _, err := ValidateMentionPayload(json.RawMessage(raw + " {}")); err == nil {
		t.Fatalf("trailing content must be rejected")
	}
	if _, err := ValidateMentionPayload(json.RawMessage(strings.TrimSuffix(raw, "}"))); err == nil {
		t.Fatalf("truncated JSON must be rejected")
	}
}
