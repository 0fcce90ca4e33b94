package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"artstudioapi/models"
)

// The gatekeeper withholds the actual prompt text from the client until the
// deployment secret is validated on the Apps Script side.
type GatekeeperProvider interface {
	GeneratePrompt(ctx context.Context, form models.FormData, hasReferenceImage bool, language models.Language) (*models.PromptResult, error)
}

type gatekeeperRequest struct {
	Action            string          `json:"action"`
	Secret            string          `json:"secret"`
	Language          models.Language `json:"language"`
	HasReferenceImage bool            `json:"hasReferenceImage"`
	FormData          models.FormData `json:"formData"`
}

type gatekeeperResponse struct {
	Status      string `json:"status"`
	Prompt      string `json:"prompt"`
	TechDetails string `json:"techDetails"`
	Message     string `json:"message"`
}

type GatekeeperService struct {
	URL        string
	Secret     string
	HTTPClient *http.Client
}

func NewGatekeeperService(cfg RemoteConfig) *GatekeeperService {
	return &GatekeeperService{
		URL:        cfg.GatekeeperURL,
		Secret:     cfg.GatekeeperSecret,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// GeneratePrompt asks the gatekeeper for a prompt + techDetails pair. Single
// attempt, no retry; the caller decides whether to surface or recover.
func (gk *GatekeeperService) GeneratePrompt(ctx context.Context, form models.FormData, hasReferenceImage bool, language models.Language) (*models.PromptResult, error) {
	if IsPlaceholderURL(gk.URL) {
		return nil, ErrServiceUnavailable
	}

	payload, err := json.Marshal(gatekeeperRequest{
		Action:            "generatePrompt",
		Secret:            gk.Secret,
		Language:          language,
		HasReferenceImage: hasReferenceImage,
		FormData:          form,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode gatekeeper payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", gk.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create gatekeeper request: %v", err)
	}
	// Apps Script web apps behave best with text/plain bodies.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := gk.HTTPClient.Do(req)
	if err != nil {
		// A connection failure and an explicit rejection look the same to the
		// user: this deployment is not allowed to call the service.
		fmt.Println("Gatekeeper transport failure:", err)
		return nil, ErrUnauthorized
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Message: fmt.Sprintf("prompt service returned status %d", resp.StatusCode)}
	}

	var result gatekeeperResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &UpstreamError{Message: fmt.Sprintf("prompt service returned an unreadable response: %v", err)}
	}

	if result.Status == "success" && result.Prompt != "" && result.TechDetails != "" {
		return &models.PromptResult{Prompt: result.Prompt, TechDetails: result.TechDetails}, nil
	}

	if result.Message == "UNAUTHORIZED" {
		return nil, ErrUnauthorized
	}
	if result.Message != "" {
		return nil, &UpstreamError{Message: result.Message}
	}
	return nil, &UpstreamError{Message: "prompt service returned an incomplete response"}
}
