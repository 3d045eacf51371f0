package agents

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brendan721/Flipsync-Final-sub011/internal/marketplace"
)

func TestGenerateContentFromLLM(t *testing.T) {
	stub := &stubLLM{content: `{
		"title": "Vintage Camera - Fully Working",
		"description": "A tested vintage camera in excellent condition.",
		"keywords": ["vintage", "camera"],
		"quality": 0.92
	}`}
	a := NewContentAgent(stub, zerolog.Nop())

	result, err := a.GenerateContent(context.Background(), ContentRequest{
		SKU:         "CAM-1",
		ProductName: "Vintage Camera",
		Marketplace: marketplace.Ebay,
	})
	require.NoError(t, err)

	assert.Equal(t, "Vintage Camera - Fully Working", result.Title)
	assert.InDelta(t, 0.92, result.QualityScore, 0.0001)
	assert.InDelta(t, 0.85, result.ConfidenceScore, 0.0001)
	assert.Equal(t, []string{"vintage", "camera"}, result.Keywords)
}

func TestGenerateContentTemplateFallbackOnError(t *testing.T) {
	stub := &stubLLM{err: fmt.Errorf("model overloaded")}
	a := NewContentAgent(stub, zerolog.Nop())

	result, err := a.GenerateContent(context.Background(), ContentRequest{
		SKU:         "CAM-1",
		ProductName: "Vintage Camera",
		Attributes:  map[string]string{"condition": "Used"},
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.3, result.ConfidenceScore, 0.0001)
	assert.Contains(t, result.Reasoning, "fallback: true")
	assert.Equal(t, "Vintage Camera", result.Title)
	assert.Contains(t, result.Description, "condition: Used")
	assert.Contains(t, result.Keywords, "vintage camera")
}

func TestGenerateContentTemplateFallbackOnBadJSON(t *testing.T) {
	stub := &stubLLM{content: "sorry, I cannot help with that"}
	a := NewContentAgent(stub, zerolog.Nop())

	result, err := a.GenerateContent(context.Background(), ContentRequest{
		SKU:         "CAM-1",
		ProductName: "Vintage Camera",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Reasoning, "unparseable model output")
}

func TestGenerateContentWithoutClient(t *testing.T) {
	a := NewContentAgent(nil, zerolog.Nop())

	result, err := a.GenerateContent(context.Background(), ContentRequest{ProductName: "Widget"})
	require.NoError(t, err)
	assert.Contains(t, result.Reasoning, "no model configured")
	assert.InDelta(t, 0.3, result.ConfidenceScore, 0.0001)
}

func TestGenerateContentMissingName(t *testing.T) {
	a := NewContentAgent(nil, zerolog.Nop())
	_, err := a.GenerateContent(context.Background(), ContentRequest{SKU: "X"})
	assert.Error(t, err)
}

func TestGenerateContentOptimizeKeepsExistingTitle(t *testing.T) {
	a := NewContentAgent(nil, zerolog.Nop())

	result, err := a.GenerateContent(context.Background(), ContentRequest{
		ProductName:   "Widget",
		RequestType:   "optimize",
		ExistingTitle: "Premium Widget - Free Shipping",
	})
	require.NoError(t, err)
	assert.Equal(t, "Premium Widget - Free Shipping", result.Title)
}

func TestContentHandleMessageRequiresApproval(t *testing.T) {
	stub := &stubLLM{content: `{"title": "Widget", "description": "d", "keywords": [], "quality": 0.8}`}
	a := NewContentAgent(stub, zerolog.Nop())

	resp, err := a.HandleMessage(context.Background(), "Widget", "conv-1", "user-1")
	require.NoError(t, err)

	assert.True(t, resp.RequiresApproval())
	assert.Equal(t, "generate", resp.RequestType())
	assert.Equal(t, "Widget", resp.Data()["title"])
}

func TestGenerateContentCancelledContext(t *testing.T) {
	a := NewContentAgent(nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.GenerateContent(ctx, ContentRequest{ProductName: "Widget"})
	assert.ErrorIs(t, err, context.Canceled)
}
