package services

import (
	"context"
	"strings"
	"testing"

	"artstudioapi/models"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

type fakeContentGenerator struct {
	response *genai.GenerateContentResponse
	err      error

	calls     int
	lastModel string
}

func (f *fakeContentGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.lastModel = model
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

type gatekeeperStub struct {
	result *models.PromptResult
	err    error
	calls  int
}

func (g *gatekeeperStub) GeneratePrompt(ctx context.Context, form models.FormData, hasReferenceImage bool, language models.Language) (*models.PromptResult, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

func inlineImageResponse(data []byte, mimeType string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{
				{InlineData: &genai.Blob{Data: data, MIMEType: mimeType}},
			}}},
		},
	}
}

func TestParseSceneContextNullLocationBecomesEmpty(t *testing.T) {
	raw := `{"gender":"Female","theme":"a traveler","context":"a busy street","location":null,"action":"walking","emotion":"joyful","style":"documentary"}`
	scene, err := parseSceneContext(raw, "image analysis")
	assert.NoError(t, err)
	assert.Equal(t, models.GenderFemale, scene.Gender)
	assert.Equal(t, "", scene.Location)
}

func TestParseSceneContextKeepsNamedLandmark(t *testing.T) {
	raw := `{"gender":"Male","theme":"a tourist","context":"old quarter","location":"Ben Thanh Market, Ho Chi Minh City","action":"standing","emotion":"calm","style":"photo"}`
	scene, err := parseSceneContext(raw, "image analysis")
	assert.NoError(t, err)
	assert.Equal(t, "Ben Thanh Market, Ho Chi Minh City", scene.Location)
}

func TestParseSceneContextInvalidPayload(t *testing.T) {
	scene, err := parseSceneContext("I cannot help with that", "image analysis")
	assert.Nil(t, scene)
	assert.ErrorIs(t, err, ErrInvalidModelOutput)
}

func TestExtractFirstInlineImageNoCandidates(t *testing.T) {
	_, _, err := ExtractFirstInlineImage(&genai.GenerateContentResponse{})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, _, err = ExtractFirstInlineImage(nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestExtractFirstInlineImageTextOnly(t *testing.T) {
	result := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "I refuse to draw this"}}}},
		},
	}
	_, _, err := ExtractFirstInlineImage(result)
	assert.ErrorIs(t, err, ErrNoImageReturned)
}

func TestExtractFirstInlineImageReturnsFirstBlob(t *testing.T) {
	result := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{
				{Text: "here is your image"},
				{InlineData: &genai.Blob{Data: []byte{1, 2, 3}, MIMEType: "image/png"}},
				{InlineData: &genai.Blob{Data: []byte{9}, MIMEType: "image/jpeg"}},
			}}},
		},
	}
	data, mimeType, err := ExtractFirstInlineImage(result)
	assert.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.Equal(t, "image/png", mimeType)
}

func TestParseVideoPlanSuggestions(t *testing.T) {
	plan, err := ParseVideoPlan(`{"suggestions":["idea one","idea two","idea three"]}`)
	assert.NoError(t, err)
	assert.Len(t, plan.Suggestions, 3)
	assert.Empty(t, plan.Prompt)
}

func TestParseVideoPlanPrompt(t *testing.T) {
	plan, err := ParseVideoPlan(`{"prompt":"full video prompt","techDetails":"one scene, dolly in"}`)
	assert.NoError(t, err)
	assert.Equal(t, "full video prompt", plan.Prompt)
	assert.Equal(t, "one scene, dolly in", plan.TechDetails)
	assert.Empty(t, plan.Suggestions)
}

func TestParseVideoPlanSuggestionsWinOverPartialPrompt(t *testing.T) {
	// A vague prompt-mode request may come back as suggestions.
	plan, err := ParseVideoPlan(`{"suggestions":["a","b","c"],"prompt":null,"techDetails":null}`)
	assert.NoError(t, err)
	assert.Len(t, plan.Suggestions, 3)
}

func TestParseVideoPlanNeitherShape(t *testing.T) {
	plan, err := ParseVideoPlan(`{"prompt":"only half"}`)
	assert.Nil(t, plan)
	assert.ErrorIs(t, err, ErrInvalidModelOutput)

	plan, err = ParseVideoPlan(`not json at all`)
	assert.Nil(t, plan)
	assert.ErrorIs(t, err, ErrInvalidModelOutput)
}

func TestComposeImageRecordsOneUsageEvent(t *testing.T) {
	usage := &usageLogStub{}
	gatekeeper := &gatekeeperStub{result: &models.PromptResult{Prompt: "full prompt", TechDetails: "Imagen, 8k"}}
	generator := &fakeContentGenerator{response: inlineImageResponse([]byte{1, 2, 3}, "image/png")}
	processor := &GoogleLLMStudioProcessor{
		APIKey:     "test-key",
		Gatekeeper: gatekeeper,
		UsageLog:   usage,
		ContentGen: generator,
	}

	generated, err := processor.ComposeImage(context.Background(), testForm(), testFace(), nil, models.VI, "")
	assert.NoError(t, err)
	assert.Equal(t, 1, gatekeeper.calls)
	assert.Equal(t, []byte{1, 2, 3}, generated.Data)
	assert.Equal(t, "Imagen, 8k", generated.TechDetails)
	assert.True(t, strings.HasPrefix(generated.ImageURL, "data:image/png;base64,"))
	assert.Equal(t, []models.UsageEventKind{models.UsageEventImage}, usage.events)
}

func TestComposeImageOverridePromptSkipsGatekeeper(t *testing.T) {
	usage := &usageLogStub{}
	gatekeeper := &gatekeeperStub{}
	generator := &fakeContentGenerator{response: inlineImageResponse([]byte{9}, "image/png")}
	processor := &GoogleLLMStudioProcessor{
		APIKey:     "test-key",
		Gatekeeper: gatekeeper,
		UsageLog:   usage,
		ContentGen: generator,
	}

	generated, err := processor.ComposeImage(context.Background(), models.FormData{}, testFace(), nil, models.EN, "my edited prompt")
	assert.NoError(t, err)
	assert.Equal(t, 0, gatekeeper.calls)
	assert.Equal(t, "Generated from custom prompt", generated.TechDetails)
	assert.Equal(t, []models.UsageEventKind{models.UsageEventImage}, usage.events)
}

func TestComposeImageNoInlineImageEmitsNoUsageEvent(t *testing.T) {
	usage := &usageLogStub{}
	generator := &fakeContentGenerator{response: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "cannot comply"}}}},
		},
	}}
	processor := &GoogleLLMStudioProcessor{
		APIKey:     "test-key",
		Gatekeeper: &gatekeeperStub{result: &models.PromptResult{Prompt: "p", TechDetails: "t"}},
		UsageLog:   usage,
		ContentGen: generator,
	}

	_, err := processor.ComposeImage(context.Background(), testForm(), testFace(), nil, models.VI, "")
	assert.ErrorIs(t, err, ErrNoImageReturned)
	assert.Empty(t, usage.events)
}

func TestCustomPromptTechDetails(t *testing.T) {
	assert.Equal(t, "Tạo từ prompt tùy chỉnh", CustomPromptTechDetails(models.VI))
	assert.Equal(t, "Generated from custom prompt", CustomPromptTechDetails(models.EN))
}
