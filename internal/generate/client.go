// Package generate wraps the hosted generative-AI service behind a typed
// gateway. It owns prompt transport and response decoding; prompt content
// comes from the prompt package.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/quillrook/songsmith/internal/prompt"
)

// SongConcept is one generated result. It lives only in view state; the
// title and lyrics are appended to the history ledger on success.
type SongConcept struct {
	Title  string `json:"title"`
	Style  string `json:"style"`
	Lyrics string `json:"lyrics"`
}

// Client calls the generative language API. One shared rate limiter guards
// the upstream regardless of which user triggered the call.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a gateway client for the given API base URL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 90 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 3),
		logger:     logger.With("component", "generate"),
	}
}

// Wire types for the generateContent endpoint.

type apiRequest struct {
	Contents         []apiContent         `json:"contents"`
	GenerationConfig *apiGenerationConfig `json:"generationConfig,omitempty"`
}

type apiContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []apiPart `json:"parts"`
}

type apiPart struct {
	Text string `json:"text"`
}

type apiGenerationConfig struct {
	ResponseMIMEType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   *prompt.Schema `json:"responseSchema,omitempty"`
}

type apiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []apiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate forwards a structured request and decodes the response into a
// SongConcept, enforcing the request's required fields. Failures are typed;
// nothing is retried.
func (c *Client) Generate(ctx context.Context, apiKey string, req prompt.Request) (*SongConcept, error) {
	text, err := c.generateText(ctx, apiKey, req)
	if err != nil {
		return nil, err
	}
	return decodeConcept(text, req.Schema)
}

// SuggestTheme forwards a free-text request and returns the reply verbatim,
// trimmed.
func (c *Client) SuggestTheme(ctx context.Context, apiKey string, req prompt.Request) (string, error) {
	text, err := c.generateText(ctx, apiKey, req)
	if err != nil {
		return "", err
	}
	theme := strings.TrimSpace(strings.Trim(strings.TrimSpace(text), `"`))
	if theme == "" {
		return "", ErrUnparseable
	}
	return theme, nil
}

func (c *Client) generateText(ctx context.Context, apiKey string, req prompt.Request) (string, error) {
	if apiKey == "" {
		return "", ErrNoCredential
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}

	body := apiRequest{
		Contents: []apiContent{{
			Role:  "user",
			Parts: []apiPart{{Text: req.Instructions}},
		}},
	}
	if req.Schema != nil {
		body.GenerationConfig = &apiGenerationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   req.Schema,
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, req.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("calling generation service: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug("generation call finished",
		slog.String("model", req.Model),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return "", err
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	var text strings.Builder
	if len(apiResp.Candidates) > 0 {
		for _, part := range apiResp.Candidates[0].Content.Parts {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("%w: empty response", ErrUnparseable)
	}

	return text.String(), nil
}

func checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr apiError
	message := string(body)
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	}

	switch statusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrCredentialRejected, message)
	default:
		return fmt.Errorf("generation service error (HTTP %d): %s", statusCode, message)
	}
}

// decodeConcept strictly decodes the response text against the request's
// schema: every required field must be present and non-empty.
func decodeConcept(text string, schema *prompt.Schema) (*SongConcept, error) {
	fields := make(map[string]*string)
	if err := json.Unmarshal([]byte(stripFences(text)), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	required := []string{"title", "style", "lyrics"}
	if schema != nil {
		required = schema.Required
	}
	for _, name := range required {
		v, ok := fields[name]
		if !ok || v == nil || strings.TrimSpace(*v) == "" {
			return nil, fmt.Errorf("%w: missing field %q", ErrUnparseable, name)
		}
	}

	concept := &SongConcept{}
	if v := fields["title"]; v != nil {
		concept.Title = strings.TrimSpace(*v)
	}
	if v := fields["style"]; v != nil {
		concept.Style = truncate(strings.TrimSpace(*v), prompt.MaxStyleLength)
	}
	if v := fields["lyrics"]; v != nil {
		concept.Lyrics = strings.TrimSpace(*v)
	}
	return concept, nil
}

// stripFences removes a surrounding markdown code fence, which models emit
// even when asked for bare JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
