package filler

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/kweiss/applyflow/internal/config"
	"github.com/kweiss/applyflow/internal/domain"
	"github.com/kweiss/applyflow/internal/llm"
	"github.com/kweiss/applyflow/internal/logger"
	"github.com/kweiss/applyflow/internal/prompts"
)

const (
	profileJSONMaxLen = 3000
	jobJSONMaxLen     = 2000
)

// FieldInstruction is one discovered form field plus the value to fill.
type FieldInstruction struct {
	Label        string   `json:"label"`
	Type         string   `json:"type"`
	Required     bool     `json:"required"`
	Locator      []string `json:"locator"`
	Value        string   `json:"value"`
	Source       string   `json:"source"`
	DocumentType string   `json:"document_type,omitempty"`
}

// QuestionInstruction is one discovered screening question plus a drafted answer.
type QuestionInstruction struct {
	Text      string   `json:"text"`
	Type      string   `json:"type"`
	Locator   []string `json:"locator"`
	Answer    string   `json:"answer"`
	Source    string   `json:"source"`
	Sensitive bool     `json:"sensitive"`
}

// FormAnalysis is the merged result of analyzing all chunks of a page.
type FormAnalysis struct {
	Fields     []FieldInstruction    `json:"fields"`
	Questions  []QuestionInstruction `json:"questions"`
	FieldLabel string                `json:"field_label,omitempty"`
	Locator    []string              `json:"locator,omitempty"`
	Summary    string                `json:"summary"`
}

// chunkResponseSchema rejects malformed model output before unmarshalling.
// Shapes from all three analysis prompts are covered; unknown keys pass.
const chunkResponseSchema = `{
	"type": "object",
	"properties": {
		"fields": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["label", "locator"],
				"properties": {
					"label": {"type": "string"},
					"type": {"type": "string"},
					"required": {"type": "boolean"},
					"locator": {"type": "array", "items": {"type": "string"}, "minItems": 2, "maxItems": 2},
					"value": {"type": ["string", "null"]},
					"source": {"type": "string"}
				}
			}
		},
		"questions": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["text", "locator"],
				"properties": {
					"text": {"type": "string"},
					"type": {"type": "string"},
					"locator": {"type": "array", "items": {"type": "string"}, "minItems": 2, "maxItems": 2},
					"answer": {"type": ["string", "null"]},
					"source": {"type": "string"},
					"sensitive": {"type": "boolean"}
				}
			}
		},
		"field_label": {"type": "string"},
		"locator": {
			"anyOf": [
				{"type": "null"},
				{"type": "array", "items": {"type": "string"}, "minItems": 2, "maxItems": 2}
			]
		},
		"summary": {"type": "string"}
	}
}`

var (
	fencedJSONRe     = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	compiledSchema   *gojsonschema.Schema
	compileSchemaOne sync.Once
)

func responseSchema() *gojsonschema.Schema {
	compileSchemaOne.Do(func() {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(chunkResponseSchema))
		if err != nil {
			panic(fmt.Sprintf("invalid chunk response schema: %v", err))
		}
		compiledSchema = schema
	})
	return compiledSchema
}

// Engine is the AI-backed form discovery framework shared by concrete
// fillers. It chunks page HTML, asks the completion model for structured
// field instructions per chunk, validates and merges the responses, and
// memoizes results per (job, purpose) cache key.
type Engine struct {
	llm   llm.Client
	cfg   *config.AutomatorConfig
	cache *analysisCache
	audit *LocatorLog
	log   *logger.Logger

	profileJSON string
	jobJSON     string
	jobID       string
	platform    string

	// sleep is swapped in tests to avoid real retry delays
	sleep func(time.Duration)
}

// NewEngine creates a discovery engine bound to one job attempt.
// Parameters:
//   - client: completion client used for all analysis calls.
//   - cfg: automator configuration (chunk size, retries, cache settings).
//   - profile: candidate profile serialized into every prompt.
//   - job: job record providing posting context.
//   - platform: identified ATS platform, used in the locator audit log.
//   - audit: locator audit sink; nil disables audit logging.
// Returns:
//   - *Engine: engine with a fresh cache; discard with the attempt.
func NewEngine(client llm.Client, cfg *config.AutomatorConfig, profile *config.ProfileConfig, job *domain.JobRecord, platform string, audit *LocatorLog) *Engine {
	return &Engine{
		llm:         client,
		cfg:         cfg,
		cache:       newAnalysisCache(cfg.CacheSize, cfg.CacheTTL),
		audit:       audit,
		log:         logger.GetDefault().WithField(logger.FieldComponent, "discovery"),
		profileJSON: capJSON(profile, profileJSONMaxLen),
		jobJSON: capJSON(map[string]string{
			"title":       job.Title,
			"company":     job.Company,
			"location":    job.Location,
			"description": job.Description,
		}, jobJSONMaxLen),
		jobID:    job.PrimaryIdentifier,
		platform: platform,
		sleep:    time.Sleep,
	}
}

func capJSON(v interface{}, max int) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	s := string(b)
	if len(s) > max {
		s = s[:max]
	}
	return s
}

// Analyze runs the chunked analysis pipeline for one page and one purpose.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - html: raw page or section HTML.
//   - promptTemplate: analysis prompt with {chunk}/{profile}/{job} markers.
//   - cacheKey: purpose-scoped memoization key, e.g. "basic_info_<job>".
// Returns:
//   - *FormAnalysis: merged instructions across all chunks.
//   - error: non-nil if any chunk exhausts its retries; partial results are
//     discarded because a missed field is a missed form entry.
func (e *Engine) Analyze(ctx context.Context, html, promptTemplate, cacheKey string) (*FormAnalysis, error) {
	if cached, ok := e.cache.Get(cacheKey); ok {
		e.log.WithField("cache_key", cacheKey).Debug("Analysis cache hit")
		return cached, nil
	}

	chunks := chunkString(html, e.cfg.ChunkSize)
	merged := &FormAnalysis{}
	summary := "none"

	e.log.WithFields(logger.Fields{
		"cache_key": cacheKey,
		"chunks":    len(chunks),
		"html_size": len(html),
	}).Info("Starting form analysis")

	for i, chunk := range chunks {
		prompt := fillTemplate(promptTemplate, map[string]string{
			"profile":      e.profileJSON,
			"job":          e.jobJSON,
			"chunk":        chunk,
			"summary":      summary,
			"chunk_num":    strconv.Itoa(i + 1),
			"total_chunks": strconv.Itoa(len(chunks)),
		})

		result, err := e.analyzeChunk(ctx, prompt, cacheKey, i)
		if err != nil {
			return nil, err
		}

		merged.Fields = append(merged.Fields, result.Fields...)
		merged.Questions = append(merged.Questions, result.Questions...)
		if merged.Locator == nil && len(result.Locator) == 2 {
			merged.Locator = result.Locator
			merged.FieldLabel = result.FieldLabel
		}
		if result.Summary != "" {
			summary = result.Summary
		}
	}
	merged.Summary = summary

	e.cache.Set(cacheKey, merged)
	e.recordLocators(cacheKey, merged)
	return merged, nil
}

// analyzeChunk invokes the model for one chunk with bounded retries. Both
// transport timeouts and malformed responses are retried; exhausting the
// bound fails the whole Analyze call.
func (e *Engine) analyzeChunk(ctx context.Context, prompt, cacheKey string, chunkIdx int) (*FormAnalysis, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.AnalysisRetries; attempt++ {
		if attempt > 0 {
			e.log.WithFields(logger.Fields{
				"cache_key": cacheKey,
				"attempt":   attempt,
				"error":     fmt.Sprint(lastErr),
			}).Warn("Retrying chunk analysis")
			e.sleep(e.cfg.RetryDelay)
		}

		raw, err := e.llm.Generate(ctx, "", prompt)
		if err != nil {
			lastErr = err
			if !llm.IsTimeout(err) && ctx.Err() != nil {
				return nil, err
			}
			continue
		}

		result, err := parseChunkResponse(raw)
		if err != nil {
			lastErr = &ParseError{CacheKey: cacheKey, Chunk: chunkIdx, Err: err}
			continue
		}
		return result, nil
	}
	return nil, fmt.Errorf("chunk %d analysis failed after %d attempts: %w", chunkIdx, e.cfg.AnalysisRetries+1, lastErr)
}

// parseChunkResponse extracts the fenced JSON block from a model response
// and validates it against the expected shape.
func parseChunkResponse(raw string) (*FormAnalysis, error) {
	jsonText := extractJSON(raw)
	if jsonText == "" {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	docLoader := gojsonschema.NewStringLoader(jsonText)
	validation, err := responseSchema().Validate(docLoader)
	if err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}
	if !validation.Valid() {
		issues := make([]string, 0, len(validation.Errors()))
		for _, desc := range validation.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, fmt.Errorf("response failed schema validation: %s", strings.Join(issues, "; "))
	}

	var result FormAnalysis
	if err := json.Unmarshal([]byte(jsonText), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// extractJSON pulls the first fenced JSON block out of a response, falling
// back to the outermost brace pair when the model skips the fences.
func extractJSON(raw string) string {
	if m := fencedJSONRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return ""
}

func chunkString(s string, size int) []string {
	if size <= 0 || len(s) <= size {
		return []string{s}
	}
	chunks := make([]string, 0, len(s)/size+1)
	for len(s) > size {
		chunks = append(chunks, s[:size])
		s = s[size:]
	}
	if len(s) > 0 {
		chunks = append(chunks, s)
	}
	return chunks
}

func fillTemplate(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func (e *Engine) recordLocators(purpose string, analysis *FormAnalysis) {
	if e.audit == nil {
		return
	}
	for _, f := range analysis.Fields {
		e.audit.Record(e.jobID, e.platform, purpose, f.Label, f.Locator)
	}
	for _, q := range analysis.Questions {
		e.audit.Record(e.jobID, e.platform, purpose, q.Text, q.Locator)
	}
	if len(analysis.Locator) == 2 {
		e.audit.Record(e.jobID, e.platform, purpose, analysis.FieldLabel, analysis.Locator)
	}
}

// GenerateFieldValue asks the model for a one-off value for a field the
// form analysis could not resolve from the profile.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - label: the field's visible label.
//   - fieldType: form input type (text, select, textarea).
//   - required: whether the form marks the field required.
// Returns:
//   - string: suggested value; empty when the model declines ("N/A").
//   - error: non-nil if the completion call fails.
func (e *Engine) GenerateFieldValue(ctx context.Context, label, fieldType string, required bool) (string, error) {
	prompt := fillTemplate(prompts.FieldValueUserTemplate, map[string]string{
		"label":    label,
		"type":     fieldType,
		"required": strconv.FormatBool(required),
		"job":      "Job Details: " + e.jobJSON,
		"profile":  "Candidate Profile: " + e.profileJSON,
	})

	raw, err := e.llm.Generate(ctx, prompts.FieldValueSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("field value generation failed for %q: %w", label, err)
	}

	value := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"`))
	lower := strings.ToLower(value)
	if value == "" || lower == "n/a" || strings.Contains(lower, "not applicable") {
		return "", nil
	}
	return value, nil
}

// ============================================================================
// Analysis cache (per-attempt memoization with TTL and bounded capacity)
// ============================================================================

type cacheEntry struct {
	analysis *FormAnalysis
	storedAt time.Time
}

type analysisCache struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	order    []string
	capacity int
	ttl      time.Duration
}

func newAnalysisCache(capacity int, ttl time.Duration) *analysisCache {
	if capacity <= 0 {
		capacity = 10
	}
	return &analysisCache{
		entries:  make(map[string]cacheEntry),
		capacity: capacity,
		ttl:      ttl,
	}
}

func (c *analysisCache) Get(key string) (*FormAnalysis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		c.removeKey(key)
		return nil, false
	}
	return entry.analysis, true
}

func (c *analysisCache) Set(key string, analysis *FormAnalysis) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = cacheEntry{analysis: analysis, storedAt: time.Now()}

	// Evict oldest entries beyond capacity
	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *analysisCache) removeKey(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
