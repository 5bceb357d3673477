package nlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultLocalEndpoint points to a local analysis service.
const DefaultLocalEndpoint = "http://127.0.0.1:8850"

// LocalProvider calls an HTTP analysis endpoint exposing POST /analyze.
type LocalProvider struct {
	endpointURL string
	client      *http.Client
}

// NewLocalProvider builds a provider for the given endpoint.
func NewLocalProvider(endpoint string) *LocalProvider {
	return &LocalProvider{
		endpointURL: analyzeURL(endpoint),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (p *LocalProvider) Name() string { return "local" }

type localAnalyzeRequest struct {
	Text string `json:"text"`
}

type localAnalyzeResponse struct {
	Sentiment *struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	} `json:"sentiment"`
	Entities []struct {
		Text string `json:"text"`
		Type string `json:"type"`
	} `json:"entities"`
}

type localErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *LocalProvider) Analyze(ctx context.Context, text string) (*Analysis, error) {
	if p == nil {
		return nil, fmt.Errorf("local provider is nil")
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("text is required")
	}

	body, err := json.Marshal(localAnalyzeRequest{Text: trimmed})
	if err != nil {
		return nil, fmt.Errorf("marshal analysis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build analysis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send analysis request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read analysis response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errPayload localErrorResponse
		if unmarshalErr := json.Unmarshal(respBody, &errPayload); unmarshalErr == nil {
			if msg := strings.TrimSpace(errPayload.Error.Message); msg != "" {
				return nil, fmt.Errorf("analysis endpoint status %d: %s", resp.StatusCode, msg)
			}
		}
		return nil, fmt.Errorf("analysis endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed localAnalyzeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode analysis response: %w", err)
	}

	analysis := &Analysis{}
	if parsed.Sentiment != nil && strings.TrimSpace(parsed.Sentiment.Label) != "" {
		analysis.Sentiment = &Sentiment{
			Label: strings.TrimSpace(parsed.Sentiment.Label),
			Score: parsed.Sentiment.Score,
		}
	}
	for _, entity := range parsed.Entities {
		entityText := strings.TrimSpace(entity.Text)
		if entityText == "" {
			continue
		}
		analysis.Entities = append(analysis.Entities, Entity{
			Text: entityText,
			Type: strings.TrimSpace(entity.Type),
		})
	}

	return analysis, nil
}

func analyzeURL(endpoint string) string {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		trimmed = DefaultLocalEndpoint
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		return DefaultLocalEndpoint + "/analyze"
	}
	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/analyze") {
		path += "/analyze"
	}
	parsed.Path = path
	return parsed.String()
}
