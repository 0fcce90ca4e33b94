package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"artstudioapi/models"

	"google.golang.org/genai"
)

const (
	// VideoTechDetails labels every finished video regardless of which prompt
	// produced it.
	VideoTechDetails = "Generated with VEO 2.0 and Gemini 2.5 Flash"

	defaultPollInterval     = 10 * time.Second
	defaultMaxVideoPollWait = 10 * time.Minute
)

// VideoOperations abstracts the long-running video job API so the poll loop
// can be driven by a fake in tests.
type VideoOperations interface {
	Start(ctx context.Context, prompt string, image *genai.Image) (*genai.GenerateVideosOperation, error)
	Poll(ctx context.Context, operation *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error)
}

type genaiVideoOperations struct {
	client *genai.Client
}

func (ops *genaiVideoOperations) Start(ctx context.Context, prompt string, image *genai.Image) (*genai.GenerateVideosOperation, error) {
	return ops.client.Models.GenerateVideos(ctx, videoModel, prompt, image, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
	})
}

func (ops *genaiVideoOperations) Poll(ctx context.Context, operation *genai.GenerateVideosOperation) (*genai.GenerateVideosOperation, error) {
	return ops.client.Operations.GetVideosOperation(ctx, operation, nil)
}

// WaitForVideoOperation polls until the operation reports done. The first
// state comes from Start, so a job that finishes immediately is never polled.
// Cancellation is honored between polls and maxWait is a hard deadline.
func WaitForVideoOperation(ctx context.Context, ops VideoOperations, operation *genai.GenerateVideosOperation, interval time.Duration, maxWait time.Duration) (*genai.GenerateVideosOperation, error) {
	deadline := time.Now().Add(maxWait)
	for !operation.Done {
		if time.Now().After(deadline) {
			return nil, &GenerationError{Message: fmt.Sprintf("operation did not finish within %s", maxWait)}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
		var err error
		operation, err = ops.Poll(ctx, operation)
		if err != nil {
			return nil, &GenerationError{Message: err.Error()}
		}
	}
	return operation, nil
}

func operationErrorMessage(operationError map[string]any) string {
	if message, ok := operationError["message"].(string); ok && message != "" {
		return message
	}
	encoded, err := json.Marshal(operationError)
	if err != nil {
		return fmt.Sprintf("%v", operationError)
	}
	return string(encoded)
}

// ClassifyVideoFailure turns a terminal operation error into a safety
// violation or a plain generation failure.
func ClassifyVideoFailure(operationError map[string]any) error {
	message := operationErrorMessage(operationError)
	if IsSafetyMessage(message) {
		return &SafetyViolationError{Message: message}
	}
	return &GenerationError{Message: message}
}

func videoResultURI(operation *genai.GenerateVideosOperation) string {
	if operation.Response == nil || len(operation.Response.GeneratedVideos) == 0 {
		return ""
	}
	video := operation.Response.GeneratedVideos[0].Video
	if video == nil {
		return ""
	}
	return video.URI
}

// GenerateVideo runs the full video pipeline: start the job, poll until done,
// classify any terminal failure and download the finished file.
func (p *GoogleLLMStudioProcessor) GenerateVideo(ctx context.Context, prompt string, face models.ImageAsset) (*models.GeneratedVideo, error) {
	ops := p.VideoOps
	if ops == nil {
		client, err := p.newClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create genai client: %v", err)
		}
		ops = &genaiVideoOperations{client: client}
	}

	interval := p.PollInterval
	if interval == 0 {
		interval = defaultPollInterval
	}
	maxWait := p.MaxVideoPollWait
	if maxWait == 0 {
		maxWait = defaultMaxVideoPollWait
	}

	operation, err := ops.Start(ctx, prompt, &genai.Image{
		ImageBytes: face.Data,
		MIMEType:   face.MIMEType,
	})
	if err != nil {
		fmt.Println("Failed to start video operation:", err)
		return nil, &GenerationError{Message: err.Error()}
	}

	operation, err = WaitForVideoOperation(ctx, ops, operation, interval, maxWait)
	if err != nil {
		return nil, err
	}

	if len(operation.Error) > 0 {
		return nil, ClassifyVideoFailure(operation.Error)
	}

	uri := videoResultURI(operation)
	if uri == "" {
		return nil, ErrMissingResultURI
	}

	data, mimeType, err := p.downloadVideo(ctx, uri)
	if err != nil {
		return nil, err
	}

	p.UsageLog.RecordEvent(models.UsageEventVideo)

	return &models.GeneratedVideo{
		Data:        data,
		MIMEType:    mimeType,
		TechDetails: VideoTechDetails,
	}, nil
}

// The result file lives behind the same API key as the model calls, passed as
// a query parameter.
func (p *GoogleLLMStudioProcessor) downloadVideo(ctx context.Context, uri string) ([]byte, string, error) {
	separator := "?"
	if strings.Contains(uri, "?") {
		separator = "&"
	}
	req, err := http.NewRequestWithContext(ctx, "GET", uri+separator+"key="+p.APIKey, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create video download request: %v", err)
	}

	httpClient := p.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", &GenerationError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &DownloadError{Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read video file: %v", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "video/mp4"
	}
	return data, mimeType, nil
}
