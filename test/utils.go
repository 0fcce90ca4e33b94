package test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"time"

	"artstudioapi/models"

	"github.com/golang-jwt/jwt/v4"
)

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {

	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func GenerateSessionToken(sessionId string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sessionId,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		log.Fatalf("Error when signing session token for %s. Error %s ", sessionId, err)
	}
	return t
}

func NewJSONAuthRequest(method string, target string, sessionId string, param interface{}) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateSessionToken(sessionId)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

// GatekeeperMock returns a canned prompt result or error and counts calls.
type GatekeeperMock struct {
	mu     sync.Mutex
	Result *models.PromptResult
	Err    error
	Calls  int
}

func (m *GatekeeperMock) GeneratePrompt(ctx context.Context, form models.FormData, hasReferenceImage bool, language models.Language) (*models.PromptResult, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &models.PromptResult{Prompt: "a cinematic portrait", TechDetails: "Generated with Imagen"}, nil
}

// LLMMock implements the model provider with overridable behaviors. The zero
// value answers every call with a plausible success.
type LLMMock struct {
	AnalyzeFunc  func(ctx context.Context, image models.ImageAsset, language models.Language) (*models.SceneContext, error)
	RewriteFunc  func(ctx context.Context, scene models.SceneContext, targetGender models.Gender, language models.Language) (*models.SceneContext, error)
	ComposeFunc  func(ctx context.Context, form models.FormData, face models.ImageAsset, reference *models.ImageAsset, language models.Language, overridePrompt string) (*models.GeneratedImage, error)
	PlanFunc     func(ctx context.Context, mode models.VideoMode, requestText string, gender models.Gender, face models.ImageAsset, language models.Language) (*models.VideoPlan, error)
	GenerateFunc func(ctx context.Context, prompt string, face models.ImageAsset) (*models.GeneratedVideo, error)
}

func (m *LLMMock) AnalyzeImage(ctx context.Context, image models.ImageAsset, language models.Language) (*models.SceneContext, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, image, language)
	}
	return &models.SceneContext{
		Gender:  models.GenderFemale,
		Theme:   "a peaceful traveler",
		Context: "a sunlit old quarter street with mossy walls",
		Action:  "walking slowly past a cafe",
		Emotion: "calm",
		Style:   "documentary photography",
	}, nil
}

func (m *LLMMock) RewriteForGender(ctx context.Context, scene models.SceneContext, targetGender models.Gender, language models.Language) (*models.SceneContext, error) {
	if m.RewriteFunc != nil {
		return m.RewriteFunc(ctx, scene, targetGender, language)
	}
	rewritten := scene
	rewritten.Gender = targetGender
	return &rewritten, nil
}

func (m *LLMMock) ComposeImage(ctx context.Context, form models.FormData, face models.ImageAsset, reference *models.ImageAsset, language models.Language, overridePrompt string) (*models.GeneratedImage, error) {
	if m.ComposeFunc != nil {
		return m.ComposeFunc(ctx, form, face, reference, language, overridePrompt)
	}
	return &models.GeneratedImage{
		Data:        []byte("fake-png-bytes"),
		MIMEType:    "image/png",
		ImageURL:    "data:image/png;base64,ZmFrZQ==",
		TechDetails: "Generated with Gemini 2.5 Flash Image",
	}, nil
}

func (m *LLMMock) PlanVideo(ctx context.Context, mode models.VideoMode, requestText string, gender models.Gender, face models.ImageAsset, language models.Language) (*models.VideoPlan, error) {
	if m.PlanFunc != nil {
		return m.PlanFunc(ctx, mode, requestText, gender, face, language)
	}
	if mode == models.VideoModeSuggestions {
		return &models.VideoPlan{Suggestions: []string{"walking in rain", "rooftop sunset", "market at dawn"}}, nil
	}
	return &models.VideoPlan{Prompt: "a full cinematic video prompt", TechDetails: "One scene, slow dolly"}, nil
}

func (m *LLMMock) GenerateVideo(ctx context.Context, prompt string, face models.ImageAsset) (*models.GeneratedVideo, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, face)
	}
	return &models.GeneratedVideo{
		Data:        []byte("fake-mp4-bytes"),
		MIMEType:    "video/mp4",
		TechDetails: "Generated with VEO 2.0 and Gemini 2.5 Flash",
	}, nil
}

// UsageLogMock records events in memory.
type UsageLogMock struct {
	mu     sync.Mutex
	Events []models.UsageEventKind
	Stats  *models.UsageStats
}

func (m *UsageLogMock) RecordEvent(kind models.UsageEventKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, kind)
}

func (m *UsageLogMock) Recorded() []models.UsageEventKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.UsageEventKind{}, m.Events...)
}

func (m *UsageLogMock) FetchStats(ctx context.Context) *models.UsageStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Stats
}

type AWSProviderMock struct {
	MockUrl string
}

func (awsService AWSProviderMock) InitPresignClient(ctx context.Context) error {
	return nil
}

func (awsService AWSProviderMock) PresignLink(ctx context.Context, bucketName string, fileName string) (string, error) {

	return fmt.Sprintf("https://fakebucketurl.com/%s", fileName), nil
}

func (awsService AWSProviderMock) GetPresignedR2FileReadURL(ctx context.Context, bucketName, fileKey string) (string, error) {
	return awsService.MockUrl, nil
}

func (awsService AWSProviderMock) UploadToPresignedURL(ctx context.Context, url string, fileContent []byte, mimeType string) (string, int, error) {
	return url, 204, nil
}

type URLCacheMock struct {
	MockUrl string
}

func (m URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	return m.MockUrl, nil
}

func NewRefString(data string) *string {
	return &data
}
