package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"artstudioapi/models"
	"artstudioapi/services"

	"github.com/stretchr/testify/assert"
)

func TestHandleUsageRecordTaskPostsToSheet(t *testing.T) {
	fmt.Println("Starting TestHandleUsageRecordTaskPostsToSheet")

	var receivedBody []byte
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer mockServer.Close()

	usageLog := &services.SheetLogService{
		URL:        mockServer.URL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}

	task, err := services.NewUsageRecordTask(models.UsageEventVideo)
	assert.NoError(t, err)

	err = HandleUsageRecordTask(context.Background(), task, usageLog)
	assert.NoError(t, err)

	var payload map[string]string
	assert.NoError(t, json.Unmarshal(receivedBody, &payload))
	assert.Equal(t, "Video", payload["type"])
}

func TestHandleUsageRecordTaskSwallowsDeliveryFailure(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer mockServer.Close()

	usageLog := &services.SheetLogService{
		URL:        mockServer.URL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}

	task, err := services.NewUsageRecordTask(models.UsageEventImage)
	assert.NoError(t, err)

	// A failed delivery must not fail the task, retrying cannot fix a broken
	// sheet deployment.
	err = HandleUsageRecordTask(context.Background(), task, usageLog)
	assert.NoError(t, err)
}

func TestNewSafetyAlertTaskPayload(t *testing.T) {
	task, err := NewSafetyAlertTask("session-1", "blocked by policy")
	assert.NoError(t, err)
	assert.Equal(t, SafetyAlertTaskType, task.Type())

	var payload SafetyAlertPayload
	assert.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "session-1", payload.SessionID)
	assert.Equal(t, "blocked by policy", payload.Message)
}
