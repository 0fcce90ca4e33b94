package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"artstudioapi/models"

	"github.com/getsentry/sentry-go"
	"google.golang.org/genai"
)

const (
	analyzeModel = "gemini-2.5-flash"
	imageModel   = "gemini-2.5-flash-image-preview"
	videoModel   = "veo-2.0-generate-001"
)

func floatPointer(f float32) *float32 {
	return &f
}

func boolPointer(b bool) *bool {
	return &b
}

// LLMProvider wraps the three remote model capabilities: structured image
// analysis, composited image generation and video planning/synthesis.
type LLMProvider interface {
	AnalyzeImage(ctx context.Context, image models.ImageAsset, language models.Language) (*models.SceneContext, error)
	RewriteForGender(ctx context.Context, scene models.SceneContext, targetGender models.Gender, language models.Language) (*models.SceneContext, error)
	ComposeImage(ctx context.Context, form models.FormData, face models.ImageAsset, reference *models.ImageAsset, language models.Language, overridePrompt string) (*models.GeneratedImage, error)
	PlanVideo(ctx context.Context, mode models.VideoMode, requestText string, gender models.Gender, face models.ImageAsset, language models.Language) (*models.VideoPlan, error)
	GenerateVideo(ctx context.Context, prompt string, face models.ImageAsset) (*models.GeneratedVideo, error)
}

type GoogleLLMStudioProcessor struct {
	APIKey     string
	Gatekeeper GatekeeperProvider
	UsageLog   UsageLogProvider
	HTTPClient *http.Client

	// Overridable for tests. Zero values fall back to the defaults.
	ContentGen       ContentGenerator
	VideoOps         VideoOperations
	PollInterval     time.Duration
	MaxVideoPollWait time.Duration
}

// ContentGenerator abstracts the model call behind GenerateContent so
// responses can be faked in tests.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type genaiContentGenerator struct {
	client *genai.Client
}

func (g *genaiContentGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return g.client.Models.GenerateContent(ctx, model, contents, config)
}

func NewGoogleLLMStudioProcessor(cfg RemoteConfig, gatekeeper GatekeeperProvider, usageLog UsageLogProvider) *GoogleLLMStudioProcessor {
	return &GoogleLLMStudioProcessor{
		APIKey:     cfg.GoogleAPIKey,
		Gatekeeper: gatekeeper,
		UsageLog:   usageLog,
		HTTPClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (p *GoogleLLMStudioProcessor) newClient(ctx context.Context) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
}

func (p *GoogleLLMStudioProcessor) contentGenerator(ctx context.Context) (ContentGenerator, error) {
	if p.ContentGen != nil {
		return p.ContentGen, nil
	}
	client, err := p.newClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %v", err)
	}
	return &genaiContentGenerator{client: client}, nil
}

var sceneContextSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"gender": {
			Type:        genai.TypeString,
			Description: `The gender of the main character. Must be either "Male" or "Female".`,
			Enum:        []string{"Male", "Female"},
		},
		"theme": {
			Type:        genai.TypeString,
			Description: "The character's main theme or role (e.g., a cyberpunk warrior, a peaceful traveler).",
		},
		"context": {
			Type:        genai.TypeString,
			Description: "A hyper-detailed description of the general scene, including lighting, textures, and atmosphere.",
		},
		"location": {
			Type:        genai.TypeString,
			Description: "A specific, real-world, famous landmark, IF identifiable. Otherwise, this must be an empty string.",
		},
		"action": {
			Type:        genai.TypeString,
			Description: "The character's specific action and pose.",
		},
		"emotion": {
			Type:        genai.TypeString,
			Description: "The specific emotion expressed on the character's face.",
		},
		"style": {
			Type:        genai.TypeString,
			Description: "The overall artistic or photographic style of the image.",
		},
	},
	Required: []string{"gender", "theme", "context", "location", "action", "emotion", "style"},
}

func analyzeInstruction(language models.Language) string {
	return `# PRIMARY ROLE
You are an Expert Image Description Builder for an AI image generation system. Your task is to analyze the provided image and transform it into a structured JSON object containing hyper-detailed, vivid descriptions. These details will be used to generate an 8K hyper-realistic photograph.

# PROCESSING & DESCRIPTION GENERATION RULES
1. **Analyze Gender:** Strictly identify the gender of the main subject. The output must be either "Male" or "Female".
2. **Auto-fill Creatively:** If any field (except gender) is unclear, creatively and logically fill it in based on the available visual information. Ensure consistency across all fields.
3. **Detailed Character Description:** Define the character's role or theme, describe their posture and interaction with the environment, and describe their facial expression specifically.
4. **DISTINGUISH LOCATION vs. CONTEXT:**
   * ` + "`location`" + ` (Specific Landmark): identify whether the image contains a SPECIFIC, REAL-WORLD, FAMOUS LANDMARK (e.g., "Eiffel Tower, Paris," "Ben Thanh Market, Ho Chi Minh City"). If no specific, famous landmark is clearly identifiable, you MUST return an EMPTY STRING "" for this field. Do not guess.
   * ` + "`context`" + ` (General Scene): the GENERAL scene description. Even if a landmark is identified, describe the surrounding environment here with depth, texture, and atmosphere.
5. **Output Language:** All your text descriptions (theme, context, location, action, emotion, style) MUST be in ` + language.Name() + `.

# OUTPUT
Your output MUST BE a single, valid JSON object with the specified keys. Do NOT include any other text, markdown, or explanations outside of the JSON object.`
}

func parseSceneContext(raw string, operation string) (*models.SceneContext, error) {
	var scene models.SceneContext
	if err := json.Unmarshal([]byte(raw), &scene); err != nil {
		fmt.Printf("Failed to parse JSON from %s response: %s\n", operation, raw)
		sentry.CaptureException(fmt.Errorf("invalid %s model output: %s", operation, raw))
		return nil, ErrInvalidModelOutput
	}
	// A null location decodes to the zero string, which is exactly the
	// contract: empty unless a named real-world landmark was identified.
	return &scene, nil
}

func (p *GoogleLLMStudioProcessor) AnalyzeImage(ctx context.Context, image models.ImageAsset, language models.Language) (*models.SceneContext, error) {
	generator, err := p.contentGenerator(ctx)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		{InlineData: &genai.Blob{Data: image.Data, MIMEType: image.MIMEType}},
		{Text: analyzeInstruction(language)},
	}

	result, err := generator.GenerateContent(ctx, analyzeModel, []*genai.Content{{Parts: parts}}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   sceneContextSchema,
		Temperature:      floatPointer(1),
	})
	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, &UpstreamError{Message: err.Error()}
	}

	return parseSceneContext(result.Text(), "image analysis")
}

func rewriteInstruction(scene models.SceneContext, targetGender models.Gender, language models.Language) string {
	original, _ := json.MarshalIndent(scene, "", "  ")
	return fmt.Sprintf(`# PRIMARY ROLE
You are an expert text editor specializing in adapting scene descriptions. Take the provided JSON object describing a scene and rewrite its text fields to change the subject's gender from "%s" to "%s".

# REWRITING RULES
1. The `+"`gender`"+` field in the output JSON MUST be "%s".
2. Make all necessary grammatical changes, including pronouns and gendered nouns.
3. Subtly adapt descriptions of clothing, actions, or roles to be natural for the new gender, while preserving the original theme, mood, and core elements of the scene. The goal is a natural-sounding description, not a caricature.
4. The output must be a valid JSON object with the exact same keys as the input. Do not add, remove, or rename keys.
5. All text descriptions MUST be in %s.

# INPUT DATA
%s

# OUTPUT
Your output MUST BE a single, valid JSON object containing the rewritten data. Do not include any other text, markdown, or explanations.`,
		scene.Gender, targetGender, targetGender, language.Name(), string(original))
}

func (p *GoogleLLMStudioProcessor) RewriteForGender(ctx context.Context, scene models.SceneContext, targetGender models.Gender, language models.Language) (*models.SceneContext, error) {
	generator, err := p.contentGenerator(ctx)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{{Text: rewriteInstruction(scene, targetGender, language)}}

	result, err := generator.GenerateContent(ctx, analyzeModel, []*genai.Content{{Parts: parts}}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   sceneContextSchema,
		Temperature:      floatPointer(1),
	})
	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, &UpstreamError{Message: err.Error()}
	}

	return parseSceneContext(result.Text(), "gender rewrite")
}

// CustomPromptTechDetails labels media generated from a user-edited prompt.
func CustomPromptTechDetails(language models.Language) string {
	if language == models.VI {
		return "Tạo từ prompt tùy chỉnh"
	}
	return "Generated from custom prompt"
}

// ExtractFirstInlineImage finds the first response part carrying inline image
// bytes. Zero candidates and image-less candidates are distinct failures.
func ExtractFirstInlineImage(result *genai.GenerateContentResponse) ([]byte, string, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, "", ErrEmptyResponse
	}
	cand := result.Candidates[0]
	if cand.Content == nil {
		return nil, "", ErrNoImageReturned
	}
	for _, part := range cand.Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return part.InlineData.Data, part.InlineData.MIMEType, nil
		}
	}
	return nil, "", ErrNoImageReturned
}

// ComposeImage generates a composited portrait from the face image, the
// optional reference image and a prompt. Without an override prompt the
// gatekeeper produces the prompt, and its failures propagate unchanged.
func (p *GoogleLLMStudioProcessor) ComposeImage(ctx context.Context, form models.FormData, face models.ImageAsset, reference *models.ImageAsset, language models.Language, overridePrompt string) (*models.GeneratedImage, error) {
	var prompt string
	var techDetails string

	if overridePrompt != "" {
		prompt = overridePrompt
		techDetails = CustomPromptTechDetails(language)
	} else {
		result, err := p.Gatekeeper.GeneratePrompt(ctx, form, reference != nil, language)
		if err != nil {
			return nil, err
		}
		prompt = result.Prompt
		techDetails = result.TechDetails
	}

	generator, err := p.contentGenerator(ctx)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		{InlineData: &genai.Blob{Data: face.Data, MIMEType: face.MIMEType}},
	}
	if reference != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{Data: reference.Data, MIMEType: reference.MIMEType},
		})
	}
	parts = append(parts, &genai.Part{Text: prompt})

	result, err := generator.GenerateContent(ctx, imageModel, []*genai.Content{{Parts: parts}}, &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, &UpstreamError{Message: err.Error()}
	}

	imageBytes, mimeType, err := ExtractFirstInlineImage(result)
	if err != nil {
		return nil, err
	}

	// Count the paid generation, never block on it.
	p.UsageLog.RecordEvent(models.UsageEventImage)

	imageURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageBytes))
	return &models.GeneratedImage{
		Data:        imageBytes,
		MIMEType:    mimeType,
		ImageURL:    imageURL,
		TechDetails: techDetails,
	}, nil
}

var videoPlanSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"suggestions": {
			Type:     genai.TypeArray,
			Items:    &genai.Schema{Type: genai.TypeString},
			Nullable: boolPointer(true),
		},
		"prompt": {
			Type:     genai.TypeString,
			Nullable: boolPointer(true),
		},
		"techDetails": {
			Type:     genai.TypeString,
			Nullable: boolPointer(true),
		},
	},
}

func videoPlanInstruction(mode models.VideoMode, requestText string, gender models.Gender, language models.Language) string {
	subject := "man"
	if gender == models.GenderFemale {
		subject = "woman"
	}

	task := ""
	switch mode {
	case models.VideoModeSuggestions:
		task = fmt.Sprintf("The user asked for scene ideas. Their base idea is: `%s`. Use it as the core theme. Based on this theme and your analysis of the reference image, generate EXACTLY 3 creative and expanded scene suggestions in %s. If the idea is very generic, generate diverse ideas based on the reference image. Return ONLY the suggestions array.", requestText, language.Name())
	default:
		task = fmt.Sprintf("The user described a scene: `%s`. Use it to construct a full, professional English video prompt following the structure below, plus a brief techDetails summary. Only if the description is far too vague to build a prompt from, return 3 expanded scene suggestions in %s instead.", requestText, language.Name())
	}

	return fmt.Sprintf(`# PRIMARY ROLE
You are a world-class AI Video Prompt Expert, specializing in detailed, technical prompts for hyper-realistic video generation. Your mission is to take a user's reference face image and scene request, then compose a FULL TEXT PROMPT instructing another AI video model to produce a HYPER-REALISTIC, CINEMATIC DOCUMENTARY STYLE video where the character's face is flawlessly and consistently composited onto EVERY FRAME.

# CORE, NON-NEGOTIABLE DIRECTIVES
1. Every video prompt MUST begin with: `+"`[CORE DIRECTIVE FOR VIDEO FACE COMPOSITING: The primary goal is to seamlessly and artistically composite the face from the user's reference image onto the character, maintaining strong consistency in EVERY FRAME. Faithfully represent the key facial features, expression, and head angle from the reference photo throughout the video. The lighting on the character and environment should be harmonized to match the lighting on the reference face. Ensure the character's proportions are realistic and consistent in motion.]`"+`
2. Then the prompt must start with: `+"`PRODUCE A HYPER-REALISTIC, CINEMATIC DOCUMENTARY STYLE VIDEO CLIP.`"+`
3. The prompt must always include: `+"`EXTREME EMPHASIS on HYPER-REALISTIC, FILM-QUALITY, DYNAMIC TEXTURES for all moving surfaces, clothing, skin, hair, and objects.`"+`

# USER INPUT
First analyze the provided reference image for the character's appearance, expression and potential context. The character is a %s.

# TASK
%s

# PROFESSIONAL VIDEO PROMPT CONSTRUCTION (for specific scene requests)
Storyboard the prompt like a short film script using scene blocks `+"`[SCENE 1: DESCRIPTION]`"+` with CAMERA (camera, lens, precise movement), CHARACTER ACTION & EXPRESSION, ENVIRONMENT & ATMOSPHERE (dynamic lighting, moving environmental elements), LIGHTING & VFX (DYNAMIC), and TEXTURES (DYNAMIC) sections.

# OUTPUT STRUCTURE
Your output MUST be a single, valid JSON object. Do not include any other text or markdown.
* For suggestions: {"suggestions": ["...", "...", "..."]}
* For a video prompt: {"prompt": "The full, detailed English video prompt text...", "techDetails": "A brief summary..."}`,
		subject, task)
}

type videoPlanResponse struct {
	Suggestions []string `json:"suggestions"`
	Prompt      string   `json:"prompt"`
	TechDetails string   `json:"techDetails"`
}

// PlanVideo classifies and executes one video-request mode. The mode always
// comes from the caller. In prompt mode the model may still answer with
// suggestions when the request is too vague, and callers must display them.
func (p *GoogleLLMStudioProcessor) PlanVideo(ctx context.Context, mode models.VideoMode, requestText string, gender models.Gender, face models.ImageAsset, language models.Language) (*models.VideoPlan, error) {
	generator, err := p.contentGenerator(ctx)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		{InlineData: &genai.Blob{Data: face.Data, MIMEType: face.MIMEType}},
		{Text: videoPlanInstruction(mode, requestText, gender, language)},
	}

	result, err := generator.GenerateContent(ctx, analyzeModel, []*genai.Content{{Parts: parts}}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   videoPlanSchema,
	})
	if err != nil {
		fmt.Println("Error in GenerateContent:", err)
		return nil, &UpstreamError{Message: err.Error()}
	}

	return ParseVideoPlan(result.Text())
}

// ParseVideoPlan validates the structured video-request answer.
func ParseVideoPlan(raw string) (*models.VideoPlan, error) {
	var parsed videoPlanResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		fmt.Println("Failed to parse video request response:", raw)
		sentry.CaptureException(fmt.Errorf("invalid video request model output: %s", raw))
		return nil, ErrInvalidModelOutput
	}
	if len(parsed.Suggestions) > 0 {
		return &models.VideoPlan{Suggestions: parsed.Suggestions}, nil
	}
	if parsed.Prompt != "" && parsed.TechDetails != "" {
		return &models.VideoPlan{Prompt: parsed.Prompt, TechDetails: parsed.TechDetails}, nil
	}
	fmt.Println("Video request response had neither prompt nor suggestions:", raw)
	sentry.CaptureException(fmt.Errorf("video request model output missing prompt and suggestions: %s", raw))
	return nil, ErrInvalidModelOutput
}
