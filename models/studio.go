package models

import (
	"regexp"

	"github.com/go-playground/validator"
)

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

func (g *Gender) Scan(value interface{}) error {
	*g = Gender(value.(string))
	return nil
}

func (g Gender) Value() (string, error) {
	return string(g), nil
}

func ValidateGender(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	matched, _ := regexp.MatchString("^Male|Female$", string(value))
	return matched
}

type Framing string

const (
	FramingPortrait Framing = "Portrait"
	FramingHalfBody Framing = "HalfBody"
	FramingFullBody Framing = "FullBody"
)

func ValidateFraming(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	matched, _ := regexp.MatchString("^Portrait|HalfBody|FullBody$", string(value))
	return matched
}

type Background string

const (
	BackgroundCharacterFocus Background = "CharacterFocus"
	BackgroundWideDetailed   Background = "WideDetailed"
)

func ValidateBackground(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	matched, _ := regexp.MatchString("^CharacterFocus|WideDetailed$", string(value))
	return matched
}

// VideoMode is always chosen explicitly by the caller. The model never infers
// it from the request text.
type VideoMode string

const (
	VideoModeSuggestions VideoMode = "suggestions"
	VideoModePrompt      VideoMode = "prompt"
	VideoModeVideo       VideoMode = "video"
)

func ValidateVideoMode(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	matched, _ := regexp.MatchString("^suggestions|prompt|video$", string(value))
	return matched
}

// FormData is the immutable snapshot of the creation form taken at submit time.
type FormData struct {
	Gender     Gender     `json:"gender" validate:"required,gender"`
	Framing    Framing    `json:"framing" validate:"required,framing"`
	Background Background `json:"background" validate:"required,background"`
	Theme      string     `json:"theme" validate:"omitempty,max=500"`
	Context    string     `json:"context" validate:"omitempty,max=2000"`
	Location   string     `json:"location" validate:"omitempty,max=500"`
	Hairstyle  string     `json:"hairstyle" validate:"omitempty,max=200"`
	BodyShape  string     `json:"bodyShape" validate:"omitempty,max=200"`
	Action     string     `json:"action" validate:"omitempty,max=500"`
	Emotion    string     `json:"emotion" validate:"omitempty,max=200"`
	Style      string     `json:"style" validate:"omitempty,max=500"`
}

// ImageAsset holds an uploaded image for the duration of one session slot.
// Replacing or removing the slot drops the whole asset.
type ImageAsset struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

type PromptResult struct {
	Prompt      string `json:"prompt"`
	TechDetails string `json:"tech_details"`
}

// SceneContext is the structured attribute set extracted from an image.
// Location stays "" unless a specific named real-world landmark was identified.
type SceneContext struct {
	Gender   Gender `json:"gender"`
	Theme    string `json:"theme"`
	Context  string `json:"context"`
	Location string `json:"location"`
	Action   string `json:"action"`
	Emotion  string `json:"emotion"`
	Style    string `json:"style"`
}

type GeneratedImage struct {
	Data        []byte `json:"-"`
	MIMEType    string `json:"mime_type"`
	ImageURL    string `json:"image_url"`
	TechDetails string `json:"tech_details"`
}

type GeneratedVideo struct {
	Data        []byte `json:"-"`
	MIMEType    string `json:"mime_type"`
	VideoURL    string `json:"video_url"`
	TechDetails string `json:"tech_details"`
}

// VideoPlan is the model's answer to a video request: either a full prompt
// with its techDetails, or scene suggestions when the request was too vague.
type VideoPlan struct {
	Suggestions []string `json:"suggestions,omitempty"`
	Prompt      string   `json:"prompt,omitempty"`
	TechDetails string   `json:"tech_details,omitempty"`
}

type UsageEventKind string

const (
	UsageEventImage UsageEventKind = "Image"
	UsageEventVideo UsageEventKind = "Video"
)

type UsageWindow struct {
	Images int `json:"images"`
	Videos int `json:"videos"`
}

type UsageStats struct {
	Today UsageWindow `json:"today"`
	Month UsageWindow `json:"month"`
}
