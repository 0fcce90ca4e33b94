package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"artstudioapi/models"

	"github.com/stretchr/testify/assert"
)

func testForm() models.FormData {
	return models.FormData{
		Gender:     models.GenderMale,
		Framing:    models.FramingHalfBody,
		Background: models.BackgroundCharacterFocus,
		Theme:      "a street photographer",
	}
}

func newTestGatekeeper(url string) *GatekeeperService {
	return &GatekeeperService{
		URL:        url,
		Secret:     "test-secret",
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestGeneratePromptSuccess(t *testing.T) {
	fmt.Println("Starting TestGeneratePromptSuccess")
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "text/plain;charset=utf-8", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"status":"success","prompt":"full prompt text","techDetails":"Imagen, 8k"}`))
	}))
	defer mockServer.Close()

	gk := newTestGatekeeper(mockServer.URL)
	result, err := gk.GeneratePrompt(context.Background(), testForm(), false, models.VI)
	assert.NoError(t, err)
	assert.Equal(t, "full prompt text", result.Prompt)
	assert.Equal(t, "Imagen, 8k", result.TechDetails)
}

func TestGeneratePromptUnauthorizedMessage(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"UNAUTHORIZED"}`))
	}))
	defer mockServer.Close()

	gk := newTestGatekeeper(mockServer.URL)
	result, err := gk.GeneratePrompt(context.Background(), testForm(), false, models.VI)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGeneratePromptTransportFailureIsUnauthorized(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	mockServer.Close()

	gk := newTestGatekeeper(mockServer.URL)
	result, err := gk.GeneratePrompt(context.Background(), testForm(), true, models.EN)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGeneratePromptPlaceholderURLSkipsRequest(t *testing.T) {
	requested := false
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = true
	}))
	defer mockServer.Close()

	gk := newTestGatekeeper("https://script.google.com/YOUR_GOOGLE_APPS_SCRIPT/exec")
	result, err := gk.GeneratePrompt(context.Background(), testForm(), false, models.VI)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.False(t, requested)
}

func TestGeneratePromptRemoteErrorMessage(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"quota exceeded"}`))
	}))
	defer mockServer.Close()

	gk := newTestGatekeeper(mockServer.URL)
	_, err := gk.GeneratePrompt(context.Background(), testForm(), false, models.VI)
	var upstream *UpstreamError
	assert.ErrorAs(t, err, &upstream)
	assert.Equal(t, "quota exceeded", upstream.Message)
}

func TestGeneratePromptIncompleteResponse(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","prompt":"only a prompt"}`))
	}))
	defer mockServer.Close()

	gk := newTestGatekeeper(mockServer.URL)
	_, err := gk.GeneratePrompt(context.Background(), testForm(), false, models.VI)
	var upstream *UpstreamError
	assert.ErrorAs(t, err, &upstream)
}

func TestGeneratePromptServerError(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer mockServer.Close()

	gk := newTestGatekeeper(mockServer.URL)
	_, err := gk.GeneratePrompt(context.Background(), testForm(), false, models.VI)
	var upstream *UpstreamError
	assert.ErrorAs(t, err, &upstream)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}
