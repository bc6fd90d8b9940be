// Package classify suggests classification labels for items whose manual
// classification is still empty. Suggestions come from the Anthropic API
// and are purely advisory: nothing here writes to the store or the
// worksheets; an operator copies accepted suggestions into a worksheet.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/utlib/eacli/internal/record"
)

// Labels is the fixed classification vocabulary. Suggestions outside it
// are rejected at parse time.
var Labels = []string{
	"open access",
	"eigen materiaal - powerpoint",
	"eigen materiaal - overig",
	"lange overname",
	"eigen materiaal - titelindicatie",
}

const defaultModel = "claude-sonnet-4-5-20250929"

// batchSize caps how many items go into one prompt.
const batchSize = 50

// Suggestion is one advisory classification for one item.
type Suggestion struct {
	MaterialID string  `json:"material_id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Suggester produces classification suggestions for unclassified items.
type Suggester struct {
	client anthropic.Client
	model  string
	logger *slog.Logger
}

// Config tunes a Suggester.
type Config struct {
	APIKey string
	// Model defaults to defaultModel.
	Model string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewSuggester creates a Suggester backed by the Anthropic API.
func NewSuggester(cfg Config) *Suggester {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Suggester{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

// Unclassified filters records down to those with no manual
// classification yet.
func Unclassified(records []record.Record) []record.Record {
	var out []record.Record
	for _, rec := range records {
		if strings.TrimSpace(rec.Get("manual_classification")) == "" {
			out = append(out, rec)
		}
	}
	return out
}

// Suggest asks the model for one label per item. Items already carrying a
// manual classification are skipped. Results preserve item order within
// each batch; items the model declined to classify are absent.
func (s *Suggester) Suggest(ctx context.Context, records []record.Record) ([]Suggestion, error) {
	pending := Unclassified(records)
	if len(pending) == 0 {
		return nil, nil
	}

	var all []Suggestion
	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		s.logger.Info("requesting classification suggestions",
			"model", s.model, "items", len(batch))
		text, err := s.call(ctx, buildPrompt(batch))
		if err != nil {
			return all, err
		}
		suggestions, err := ParseResponse(text)
		if err != nil {
			return all, err
		}
		all = append(all, suggestions...)
	}
	return all, nil
}

func (s *Suggester) call(ctx context.Context, userPrompt string) (string, error) {
	message, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}
	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in Anthropic response")
}

func systemPrompt() string {
	var labelLines strings.Builder
	for _, label := range Labels {
		labelLines.WriteString(fmt.Sprintf("- %s\n", label))
	}
	return fmt.Sprintf(`You classify university teaching materials for copyright review.
Choose exactly one label for each item from:
%s
Skip items you cannot classify instead of guessing.
Set confidence between 0 and 1.

Respond with JSON only (no markdown):
[{"material_id": "M1", "label": "open access", "confidence": 0.9}, ...]`, labelLines.String())
}

func buildPrompt(batch []record.Record) string {
	var lines strings.Builder
	lines.WriteString("Classify these items:\n\n")
	for _, rec := range batch {
		lines.WriteString(fmt.Sprintf("ID:%s | title: %s | type: %s | prior: %s\n",
			rec.MaterialID(),
			strings.TrimSpace(rec.Get("title")),
			strings.TrimSpace(rec.Get("material_type")),
			strings.TrimSpace(rec.Get("classification"))))
	}
	return lines.String()
}

// ParseResponse parses the model's JSON reply. Markdown fences are
// stripped; suggestions with labels outside the vocabulary or without a
// material id are dropped.
func ParseResponse(responseText string) ([]Suggestion, error) {
	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	responseText = strings.TrimSpace(responseText)

	var raw []Suggestion
	if err := json.Unmarshal([]byte(responseText), &raw); err != nil {
		return nil, fmt.Errorf("parsing suggestion response: %w (response: %s)", err, responseText)
	}

	valid := make(map[string]bool, len(Labels))
	for _, label := range Labels {
		valid[label] = true
	}

	var out []Suggestion
	for _, s := range raw {
		s.MaterialID = strings.TrimSpace(s.MaterialID)
		s.Label = strings.ToLower(strings.TrimSpace(s.Label))
		if s.MaterialID == "" || !valid[s.Label] {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
