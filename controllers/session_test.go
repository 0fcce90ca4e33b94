package controllers

import (
	"testing"

	"artstudioapi/models"

	"github.com/stretchr/testify/assert"
)

func TestBeginSubmissionClearsResultSlot(t *testing.T) {
	session := newStudioSession(models.VI)
	session.Result = ResultSlot{Kind: ResultError, ErrorMessage: "old failure"}
	session.Notice = "old notice"

	seq, err := session.BeginSubmission(WorkflowImage)
	assert.NoError(t, err)
	assert.NotZero(t, seq)

	snapshot := session.Snapshot()
	assert.Equal(t, ResultNone, snapshot.Result.Kind)
	assert.Empty(t, snapshot.Result.ErrorMessage)
	assert.Empty(t, snapshot.Notice)
	assert.True(t, snapshot.Busy)
}

func TestBeginSubmissionRejectsConcurrentWorkflow(t *testing.T) {
	session := newStudioSession(models.VI)

	_, err := session.BeginSubmission(WorkflowVideo)
	assert.NoError(t, err)

	_, err = session.BeginSubmission(WorkflowVideo)
	assert.ErrorIs(t, err, ErrWorkflowBusy)

	// A different workflow is not blocked.
	_, err = session.BeginSubmission(WorkflowImage)
	assert.NoError(t, err)
}

func TestCompleteInstallsResult(t *testing.T) {
	session := newStudioSession(models.VI)
	seq, _ := session.BeginSubmission(WorkflowImage)

	installed := session.Complete(WorkflowImage, seq, ResultSlot{
		Kind:  ResultImage,
		Image: &models.GeneratedImage{ImageURL: "data:image/png;base64,aaa", TechDetails: "details"},
	})
	assert.True(t, installed)

	snapshot := session.Snapshot()
	assert.Equal(t, ResultImage, snapshot.Result.Kind)
	assert.False(t, snapshot.Busy)
}

func TestStaleResultIsDiscarded(t *testing.T) {
	session := newStudioSession(models.VI)

	oldSeq, _ := session.BeginSubmission(WorkflowVideo)

	// The user resubmits before the first run finishes. The old run finishing
	// later must not clobber the newer submission's slot.
	session.Complete(WorkflowVideo, oldSeq, ResultSlot{Kind: ResultNone})
	newSeq, err := session.BeginSubmission(WorkflowVideo)
	assert.NoError(t, err)
	assert.Greater(t, newSeq, oldSeq)

	installed := session.Complete(WorkflowVideo, oldSeq, ResultSlot{
		Kind:  ResultVideo,
		Video: &models.GeneratedVideo{TechDetails: "stale"},
	})
	assert.False(t, installed)
	assert.Equal(t, ResultNone, session.Snapshot().Result.Kind)

	installed = session.Complete(WorkflowVideo, newSeq, ResultSlot{
		Kind:  ResultVideo,
		Video: &models.GeneratedVideo{TechDetails: "fresh"},
	})
	assert.True(t, installed)
	assert.Equal(t, "fresh", session.Snapshot().Result.Video.TechDetails)
}

func TestStaleFailureIsDiscarded(t *testing.T) {
	session := newStudioSession(models.VI)
	oldSeq, _ := session.BeginSubmission(WorkflowImage)
	session.Complete(WorkflowImage, oldSeq, ResultSlot{Kind: ResultNone})
	newSeq, _ := session.BeginSubmission(WorkflowImage)

	assert.False(t, session.Fail(WorkflowImage, oldSeq, "stale error"))
	assert.Equal(t, ResultNone, session.Snapshot().Result.Kind)

	assert.True(t, session.Fail(WorkflowImage, newSeq, "fresh error"))
	snapshot := session.Snapshot()
	assert.Equal(t, ResultError, snapshot.Result.Kind)
	assert.Equal(t, "fresh error", snapshot.Result.ErrorMessage)
}

func TestSwitchTabClearsResult(t *testing.T) {
	session := newStudioSession(models.VI)
	seq, _ := session.BeginSubmission(WorkflowImage)
	session.Complete(WorkflowImage, seq, ResultSlot{
		Kind:  ResultImage,
		Image: &models.GeneratedImage{ImageURL: "data:image/png;base64,aaa"},
	})

	session.SwitchTab(TabVideo)
	snapshot := session.Snapshot()
	assert.Equal(t, TabVideo, snapshot.ActiveTab)
	assert.Equal(t, ResultNone, snapshot.Result.Kind)
}

func TestSwitchTabSameTabKeepsResult(t *testing.T) {
	session := newStudioSession(models.VI)
	seq, _ := session.BeginSubmission(WorkflowImage)
	session.Complete(WorkflowImage, seq, ResultSlot{Kind: ResultPrompt, Prompt: &models.PromptResult{Prompt: "p", TechDetails: "d"}})

	session.SwitchTab(TabImage)
	assert.Equal(t, ResultPrompt, session.Snapshot().Result.Kind)
}

func TestSwitchTabInvalidatesInFlightWork(t *testing.T) {
	session := newStudioSession(models.VI)
	seq, _ := session.BeginSubmission(WorkflowVideo)

	session.SwitchTab(TabImage)

	installed := session.Complete(WorkflowVideo, seq, ResultSlot{
		Kind:  ResultVideo,
		Video: &models.GeneratedVideo{TechDetails: "late"},
	})
	assert.False(t, installed)
	assert.Equal(t, ResultNone, session.Snapshot().Result.Kind)
}

func TestRemovingReferenceDropsAnalyzedContext(t *testing.T) {
	session := newStudioSession(models.EN)
	session.SetImage("reference", &models.ImageAsset{ID: "ref-1", Name: "ref.png", MIMEType: "image/png"})
	session.mu.Lock()
	session.AnalyzedContext = &models.SceneContext{Gender: models.GenderMale}
	session.mu.Unlock()

	session.SetImage("reference", nil)
	snapshot := session.Snapshot()
	assert.Nil(t, snapshot.ReferenceImage)
	assert.Nil(t, snapshot.AnalyzedContext)
}
