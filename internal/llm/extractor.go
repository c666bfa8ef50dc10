package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	perrors "github.com/a3tai/survey-pdf-processor/internal/errors"
	"github.com/a3tai/survey-pdf-processor/internal/pdf"
	"github.com/a3tai/survey-pdf-processor/internal/survey"
)

var (
	ErrEmptyResponse = errors.New("empty response from model")
	ErrNoFields      = errors.New("no fields in model reply")
	ErrMalformed     = errors.New("malformed JSON in model reply")
)

// DefaultPrompt asks the model for one entry per question, keyed by a
// stable question identifier
const DefaultPrompt = `Read the scanned survey page in this image and return its contents as a single JSON object of this shape:

{
  "<question_key>": {
    "question": "<question text as printed>",
    "answer": <true, false or a string>
  }
}

Rules:
- Use a short snake_case key for each question, derived from the question text, so the same question on another copy of the survey gets the same key.
- For checkboxes and multiple-choice options, add one entry per option with "answer" true when it is marked and false when it is not.
- For handwritten or typed answers, set "answer" to the text as written. Leave out quotation marks that appear inside the written text.
- Use "" when a text answer is left blank.
- Reply with the JSON object only.`

// jsonObjectPattern matches from the first "{" to the last "}"
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// FieldExtractor turns page images into field maps using a VisionClient
type FieldExtractor struct {
	client  VisionClient
	prompt  string
	limiter *rate.Limiter
}

// ExtractorOption configures a FieldExtractor
type ExtractorOption func(*FieldExtractor)

// WithPrompt replaces DefaultPrompt
func WithPrompt(prompt string) ExtractorOption {
	return func(e *FieldExtractor) {
		if prompt != "" {
			e.prompt = prompt
		}
	}
}

// WithRateLimit caps requests per minute. Zero or less disables pacing.
func WithRateLimit(perMinute float64) ExtractorOption {
	return func(e *FieldExtractor) {
		if perMinute > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(perMinute/60), 1)
		} else {
			e.limiter = nil
		}
	}
}

func NewFieldExtractor(client VisionClient, opts ...ExtractorOption) *FieldExtractor {
	e := &FieldExtractor{
		client: client,
		prompt: DefaultPrompt,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract sends one page to the model and parses its reply. Errors are
// Extraction ProcessingErrors carrying the 1-based page number.
func (e *FieldExtractor) Extract(ctx context.Context, page pdf.PageImage) (*survey.FieldMap, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, extractionError("rate limiter wait aborted", page, err)
		}
	}

	reply, err := e.client.Complete(ctx, e.prompt, Image{
		Page:      page.Index,
		Data:      page.Data,
		MediaType: page.MediaType,
	})
	if err != nil {
		return nil, extractionError("model request failed", page, err)
	}

	fields, err := ParseFields(reply)
	if err != nil {
		return nil, extractionError("could not read fields from model reply", page, err)
	}
	return fields, nil
}

func extractionError(msg string, page pdf.PageImage, err error) error {
	return perrors.Wrap(perrors.ErrorTypeExtraction, msg, err).WithPage(page.PageNumber())
}

// ParseFields pulls the first JSON object out of reply and flattens it to
// label -> answer, keeping the order keys appear in the reply
func ParseFields(reply string) (*survey.FieldMap, error) {
	raw := jsonObjectPattern.FindString(reply)
	if raw == "" {
		return nil, fmt.Errorf("%w: reply contains no JSON object", ErrNoFields)
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, truncate(raw, 120))
	}

	fields := survey.NewFieldMap()
	gjson.Parse(raw).ForEach(func(key, value gjson.Result) bool {
		fields.Set(key.String(), answerValue(value))
		return true
	})

	if fields.Len() == 0 {
		return nil, fmt.Errorf("%w: reply JSON object is empty", ErrNoFields)
	}
	return fields, nil
}

// answerValue reduces a question entry to its recorded answer
func answerValue(v gjson.Result) string {
	if v.IsObject() {
		if answer := v.Get("answer"); answer.Exists() {
			return scalarValue(answer)
		}
		return v.Raw
	}
	return scalarValue(v)
}

func scalarValue(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	case gjson.Number:
		return v.Raw
	case gjson.String:
		return v.String()
	}

	if v.IsArray() {
		var parts []string
		for _, item := range v.Array() {
			parts = append(parts, scalarValue(item))
		}
		return strings.Join(parts, "; ")
	}
	return v.Raw
}

// truncate shortens s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
