package models

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator"
)

type Language string

const (
	VI Language = "vi"
	EN Language = "en"
)

func (l *Language) Scan(value interface{}) error {
	*l = Language(value.(string))
	return nil
}

func (l Language) Value() (string, error) {
	return string(l), nil
}

// Name is what the model prompts call the output language.
func (l Language) Name() string {
	if strings.ToLower(string(l)) == "vi" {
		return "Vietnamese"
	}
	return "English"
}

func ValidateLanguage(fl validator.FieldLevel) bool {
	value := fl.Field().String()

	matched, _ := regexp.MatchString("^vi|en$", string(value))
	return matched
}

func ValidateLanguageRaw(value string) bool {

	matched, _ := regexp.MatchString("^vi|en$", value)
	return matched
}
