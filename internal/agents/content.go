package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/brendan721/Flipsync-Final-sub011/internal/agent"
	"github.com/brendan721/Flipsync-Final-sub011/internal/llm"
	"github.com/brendan721/Flipsync-Final-sub011/internal/marketplace"
)

// ContentRequest asks for listing content generation or optimization.
// RequestType selects the operation: generate, optimize or template.
type ContentRequest struct {
	SKU           string                  `json:"sku"`
	ProductName   string                  `json:"product_name"`
	RequestType   string                  `json:"request_type"`
	Marketplace   marketplace.Marketplace `json:"marketplace"`
	Attributes    map[string]string       `json:"attributes,omitempty"`
	ExistingTitle string                  `json:"existing_title,omitempty"`
	ExistingBody  string                  `json:"existing_body,omitempty"`
}

// ContentResult carries generated listing content with a quality estimate
type ContentResult struct {
	SKU             string   `json:"sku"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Keywords        []string `json:"keywords"`
	QualityScore    float64  `json:"quality_score"`
	ConfidenceScore float64  `json:"confidence_score"`
	Reasoning       string   `json:"reasoning"`
}

// ContentAgent generates and optimizes listing content, preferring the LLM
// and degrading to deterministic templates.
type ContentAgent struct {
	id     string
	client llm.Client
	log    zerolog.Logger
}

func NewContentAgent(client llm.Client, log zerolog.Logger) *ContentAgent {
	return &ContentAgent{
		id:     "content_agent",
		client: client,
		log:    log.With().Str("agent", "content_agent").Logger(),
	}
}

func (a *ContentAgent) AgentID() string       { return a.id }
func (a *ContentAgent) AgentType() agent.Type { return agent.TypeContent }
func (a *ContentAgent) Capabilities() []string {
	return []string{"content_generation", "content_optimization", "template_changes"}
}

type llmContent struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Quality     float64  `json:"quality"`
}

// GenerateContent produces listing content for a SKU. Missing product name
// is an input error; LLM failures fall back to the template path.
func (a *ContentAgent) GenerateContent(ctx context.Context, req ContentRequest) (*ContentResult, error) {
	if req.ProductName == "" {
		return nil, fmt.Errorf("product_name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.RequestType == "" {
		req.RequestType = "generate"
	}

	if a.client == nil {
		return a.templateResult(req, "no model configured"), nil
	}

	resp, err := a.client.Generate(ctx, llm.Request{
		Prompt: fmt.Sprintf(`Write %s listing content for %q (sku %s) on %s. Attributes: %v.
Respond with JSON only: {"title": string, "description": string, "keywords": [string], "quality": number}`,
			req.RequestType, req.ProductName, req.SKU, req.Marketplace, req.Attributes),
		SystemPrompt: "You are an e-commerce listing copywriter. Answer with strict JSON.",
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.log.Warn().Err(err).Str("sku", req.SKU).Msg("Content generation fell back to template")
		return a.templateResult(req, err.Error()), nil
	}

	var parsed llmContent
	if err := llm.ParseJSONResponse(resp.Content, &parsed); err != nil {
		return a.templateResult(req, "unparseable model output"), nil
	}

	return &ContentResult{
		SKU:             req.SKU,
		Title:           parsed.Title,
		Description:     parsed.Description,
		Keywords:        parsed.Keywords,
		QualityScore:    parsed.Quality,
		ConfidenceScore: 0.85,
		Reasoning:       fmt.Sprintf("Generated %s content for %s via model %s", req.RequestType, req.SKU, resp.Model),
	}, nil
}

// templateResult is the deterministic fallback built from the attributes
func (a *ContentAgent) templateResult(req ContentRequest, cause string) *ContentResult {
	keywords := []string{strings.ToLower(req.ProductName)}
	var attrs []string
	for k, v := range req.Attributes {
		attrs = append(attrs, fmt.Sprintf("%s: %s", k, v))
		keywords = append(keywords, strings.ToLower(v))
	}

	title := req.ProductName
	if req.ExistingTitle != "" {
		title = req.ExistingTitle
	}
	description := fmt.Sprintf("%s. %s", req.ProductName, strings.Join(attrs, ", "))

	return &ContentResult{
		SKU:             req.SKU,
		Title:           title,
		Description:     description,
		Keywords:        keywords,
		QualityScore:    0.5,
		ConfidenceScore: 0.3,
		Reasoning:       fmt.Sprintf("fallback: true (%s)", cause),
	}
}

// HandleMessage generates content from a free-form request. Content changes
// always go through approval.
func (a *ContentAgent) HandleMessage(ctx context.Context, message, conversationID, userID string) (*agent.Response, error) {
	start := time.Now()
	result, err := a.GenerateContent(ctx, ContentRequest{
		ProductName: message,
		RequestType: "generate",
		Marketplace: marketplace.Ebay,
	})
	if err != nil {
		return nil, err
	}

	return &agent.Response{
		Content:      result.Reasoning,
		AgentType:    agent.TypeContent,
		Confidence:   result.ConfidenceScore,
		ResponseTime: time.Since(start).Seconds(),
		Metadata: map[string]interface{}{
			"conversation_id":   conversationID,
			"user_id":           userID,
			"requires_approval": true,
			"request_type":      "generate",
			"data": map[string]interface{}{
				"title":         result.Title,
				"quality_score": result.QualityScore,
			},
		},
	}, nil
}
