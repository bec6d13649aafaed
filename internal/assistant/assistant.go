// Package assistant is the client for the generative-AI collaborator. Every
// call tolerates upstream failure by returning a safe fallback value instead
// of an error: the assistant is an enhancement, never a dependency, and its
// failures must not reach the persistence layer or crash the caller.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexushub/nexus/internal/model"
)

const defaultModel = "gemini-2.5-flash"

const systemInstruction = `You are "Nexus", an intelligent personal digital assistant for a personal hub.
Help the user organize their digital life: saved links, password health (generically), and their schedule.
Rules:
1. Be concise, friendly, and professional.
2. Do NOT reveal actual password characters.
3. If the user asks to add a link or event, guide them to the respective page.
4. Offer productivity tips based on their data.`

// Fallback replies returned when the upstream call fails.
const (
	fallbackChat = "Sorry, I encountered an error processing your request."
	fallbackTip  = "Stay organized to save time."
)

// Client calls a generateContent-style completion endpoint.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// New creates an assistant client.
func New(apiKey string, log *zap.Logger, opts ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		apiKey:  apiKey,
		baseURL: "https://generativelanguage.googleapis.com",
		model:   defaultModel,
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --- wire types ---

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// generate performs one completion call and returns the first candidate text.
func (c *Client) generate(ctx context.Context, prompt, system string, jsonMode bool) (string, error) {
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}
	if system != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	if jsonMode {
		req.GenerationConfig = &generationConfig{ResponseMimeType: "application/json"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("completion call: status %d: %s", resp.StatusCode, b)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("completion call: empty response")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

// Chat answers a user message given a serialized context string describing
// the user's data. Returns a canned reply on any failure.
func (c *Client) Chat(ctx context.Context, message, contextData string) string {
	system := systemInstruction + "\n\nUser data context:\n" + contextData
	text, err := c.generate(ctx, message, system, false)
	if err != nil {
		c.log.Warn("assistant chat failed", zap.Error(err))
		return fallbackChat
	}
	return text
}

// LinkAnalysis is the structured result of analyzing a URL.
type LinkAnalysis struct {
	SuggestedTitle string         `json:"suggestedTitle"`
	Category       model.Category `json:"category"`
	Tags           []string       `json:"tags"`
}

// AnalyzeLink suggests a title, category and tags for a URL. The category is
// validated against the known set; on any failure the result degrades to
// Other with an "uncategorized" tag.
func (c *Client) AnalyzeLink(ctx context.Context, url, titleHint string) LinkAnalysis {
	fallback := LinkAnalysis{
		SuggestedTitle: titleHint,
		Category:       model.CategoryOther,
		Tags:           []string{"uncategorized"},
	}
	if fallback.SuggestedTitle == "" {
		fallback.SuggestedTitle = url
	}

	prompt := fmt.Sprintf(`Analyze this URL: %s
Title hint: %s

1. Suggest a clean, readable title.
2. Categorize it into one of: Work, Personal, Entertainment, Finance, Education, Social, Other.
3. Generate up to 4 relevant short tags.

Return JSON: {"suggestedTitle": string, "category": string, "tags": [string]}`, url, orUnknown(titleHint))

	text, err := c.generate(ctx, prompt, "", true)
	if err != nil {
		c.log.Warn("link analysis failed", zap.Error(err))
		return fallback
	}

	var res LinkAnalysis
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		c.log.Warn("link analysis returned malformed JSON", zap.Error(err))
		return fallback
	}
	if !model.ValidCategory(res.Category) {
		res.Category = model.CategoryOther
	}
	if res.SuggestedTitle == "" {
		res.SuggestedTitle = fallback.SuggestedTitle
	}
	if res.Tags == nil {
		res.Tags = []string{}
	}
	return res
}

// EventDraft is a calendar event extracted from free text.
type EventDraft struct {
	Title string          `json:"title"`
	Date  string          `json:"date"` // ISO-8601
	Type  model.EventType `json:"type"`
}

// ParseEvent extracts an event from natural language relative to ref.
// Returns nil when the upstream fails or produces an unusable draft.
func (c *Client) ParseEvent(ctx context.Context, input string, ref time.Time) *EventDraft {
	prompt := fmt.Sprintf(`Extract calendar event details from this text: %q
Current Date context: %s

Return JSON: {"title": string, "date": ISO-8601 string (resolve 'tomorrow', 'next friday' etc. against the current date), "type": one of "Meeting", "Birthday", "Deadline", "Reminder"}`,
		input, ref.UTC().Format(time.RFC3339))

	text, err := c.generate(ctx, prompt, "", true)
	if err != nil {
		c.log.Warn("event parsing failed", zap.Error(err))
		return nil
	}
	var draft EventDraft
	if err := json.Unmarshal([]byte(text), &draft); err != nil || draft.Title == "" || draft.Date == "" {
		return nil
	}
	return &draft
}

// ProductivityTip returns one short actionable tip, or a static fallback.
func (c *Client) ProductivityTip(ctx context.Context) string {
	text, err := c.generate(ctx,
		"Give me one short, unique, actionable productivity tip for a digital worker.", "", false)
	if err != nil {
		return fallbackTip
	}
	return text
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
