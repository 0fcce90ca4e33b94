package controllers

import (
	"fmt"
	"sync"

	"artstudioapi/models"

	"github.com/google/uuid"
)

type Tab string

const (
	TabImage Tab = "image"
	TabVideo Tab = "video"
)

type Workflow string

const (
	WorkflowImage   Workflow = "image"
	WorkflowVideo   Workflow = "video"
	WorkflowAnalyze Workflow = "analyze"
)

type ResultKind string

const (
	ResultNone        ResultKind = "none"
	ResultImage       ResultKind = "image"
	ResultVideo       ResultKind = "video"
	ResultPrompt      ResultKind = "prompt"
	ResultSuggestions ResultKind = "suggestions"
	ResultError       ResultKind = "error"
)

// ResultSlot is the single output area of a session. Exactly one of the
// payload fields is set, selected by Kind. A new submission always replaces
// the slot as a whole, success and failure included.
type ResultSlot struct {
	Kind         ResultKind              `json:"kind"`
	Image        *models.GeneratedImage  `json:"image,omitempty"`
	Video        *models.GeneratedVideo  `json:"video,omitempty"`
	Prompt       *models.PromptResult    `json:"prompt,omitempty"`
	Suggestions  []string                `json:"suggestions,omitempty"`
	ErrorMessage string                  `json:"error_message,omitempty"`
}

var ErrWorkflowBusy = fmt.Errorf("workflow already running")

// StudioSession holds the full interactive state for one visitor. Generated
// media bytes live in object storage, only keys and small payloads stay here.
type StudioSession struct {
	mu sync.Mutex

	ID       string
	Language models.Language

	ActiveTab Tab
	Form      models.FormData

	FaceImage      *models.ImageAsset
	ReferenceImage *models.ImageAsset
	VideoFaceImage *models.ImageAsset

	AnalyzedContext *models.SceneContext
	EditablePrompt  string
	Notice          string

	Result ResultSlot

	busy map[Workflow]bool
	seq  uint64
}

func newStudioSession(language models.Language) *StudioSession {
	return &StudioSession{
		ID:        uuid.NewString(),
		Language:  language,
		ActiveTab: TabImage,
		Result:    ResultSlot{Kind: ResultNone},
		busy:      map[Workflow]bool{},
	}
}

// BeginSubmission atomically clears the result slot and claims the workflow.
// The returned sequence number identifies this submission: any result carrying
// an older number is stale and must be discarded.
func (s *StudioSession) BeginSubmission(workflow Workflow) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[workflow] {
		return 0, ErrWorkflowBusy
	}
	s.busy[workflow] = true
	s.seq++
	s.Result = ResultSlot{Kind: ResultNone}
	s.Notice = ""
	return s.seq, nil
}

// Complete installs a finished result. Returns false when the submission was
// superseded by a newer one, in which case the slot is left untouched.
func (s *StudioSession) Complete(workflow Workflow, seq uint64, slot ResultSlot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy[workflow] = false
	if seq != s.seq {
		fmt.Printf("[Session %s] Discarding stale %s result (seq %d, current %d)\n", s.ID, workflow, seq, s.seq)
		return false
	}
	s.Result = slot
	return true
}

// Fail installs a failure message into the shared result slot, with the same
// stale-submission guard as Complete.
func (s *StudioSession) Fail(workflow Workflow, seq uint64, message string) bool {
	return s.Complete(workflow, seq, ResultSlot{Kind: ResultError, ErrorMessage: message})
}

// SwitchTab changes the active tab and clears the result slot. Leftover
// output from the other tab never survives a switch.
func (s *StudioSession) SwitchTab(tab Tab) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ActiveTab == tab {
		return
	}
	s.ActiveTab = tab
	s.seq++
	s.Result = ResultSlot{Kind: ResultNone}
	s.Notice = ""
}

func (s *StudioSession) SetImage(slot string, asset *models.ImageAsset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch slot {
	case "face":
		s.FaceImage = asset
	case "reference":
		s.ReferenceImage = asset
		if asset == nil {
			s.AnalyzedContext = nil
		}
	case "video_face":
		s.VideoFaceImage = asset
	}
}

type imageSlotView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type SessionStateResponse struct {
	ID              string               `json:"id"`
	Language        models.Language      `json:"language"`
	ActiveTab       Tab                  `json:"active_tab"`
	Form            models.FormData      `json:"form"`
	FaceImage       *imageSlotView       `json:"face_image"`
	ReferenceImage  *imageSlotView       `json:"reference_image"`
	VideoFaceImage  *imageSlotView       `json:"video_face_image"`
	AnalyzedContext *models.SceneContext `json:"analyzed_context"`
	EditablePrompt  string               `json:"editable_prompt"`
	Notice          string               `json:"notice"`
	Busy            bool                 `json:"busy"`
	Result          ResultSlot           `json:"result"`
}

func imageView(asset *models.ImageAsset) *imageSlotView {
	if asset == nil {
		return nil
	}
	return &imageSlotView{ID: asset.ID, Name: asset.Name}
}

// Snapshot builds a consistent copy of the visible session state.
func (s *StudioSession) Snapshot() SessionStateResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *StudioSession) snapshotLocked() SessionStateResponse {
	busy := false
	for _, b := range s.busy {
		busy = busy || b
	}
	return SessionStateResponse{
		ID:              s.ID,
		Language:        s.Language,
		ActiveTab:       s.ActiveTab,
		Form:            s.Form,
		FaceImage:       imageView(s.FaceImage),
		ReferenceImage:  imageView(s.ReferenceImage),
		VideoFaceImage:  imageView(s.VideoFaceImage),
		AnalyzedContext: s.AnalyzedContext,
		EditablePrompt:  s.EditablePrompt,
		Notice:          s.Notice,
		Busy:            busy,
		Result:          s.Result,
	}
}

// SessionStore keeps live sessions in memory. Sessions are identified by the
// JWT subject claim, history is the only state that survives a restart.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*StudioSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: map[string]*StudioSession{}}
}

func (store *SessionStore) Create(language models.Language) *StudioSession {
	session := newStudioSession(language)
	store.mu.Lock()
	store.sessions[session.ID] = session
	store.mu.Unlock()
	return session
}

func (store *SessionStore) Get(id string) *StudioSession {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.sessions[id]
}
