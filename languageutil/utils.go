package languageutil

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"artstudioapi/models"
)

var TitleCaser = cases.Title(language.Vietnamese)
var LowerCaser = cases.Lower(language.Vietnamese)

var supportedLanguages = []language.Tag{
	language.Vietnamese, // default
	language.English,
}

var matcher = language.NewMatcher(supportedLanguages)

// Match resolves an Accept-Language header to one of the supported UI
// languages, falling back to Vietnamese.
func Match(acceptLanguage string) models.Language {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return models.VI
	}
	_, index, _ := matcher.Match(tags...)
	if supportedLanguages[index] == language.English {
		return models.EN
	}
	return models.VI
}

//go:embed locales/*.json
var localeFS embed.FS

var (
	loadOnce sync.Once
	messages map[models.Language]map[string]string
)

func loadLocales() {
	messages = map[models.Language]map[string]string{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, lang := range []models.Language{models.VI, models.EN} {
		wg.Add(1)
		go func(lang models.Language) {
			defer wg.Done()
			data, err := localeFS.ReadFile(fmt.Sprintf("locales/%s.json", lang))
			if err != nil {
				fmt.Println("Failed to read locale file:", lang, err)
				return
			}
			parsed := map[string]string{}
			if err := json.Unmarshal(data, &parsed); err != nil {
				fmt.Println("Failed to parse locale file:", lang, err)
				return
			}
			mu.Lock()
			messages[lang] = parsed
			mu.Unlock()
		}(lang)
	}
	wg.Wait()
}

// T returns the localized message for key, interpolating {placeholder}
// occurrences from params. Unknown keys fall back to Vietnamese, then to the
// key itself.
func T(lang models.Language, key string, params map[string]string) string {
	loadOnce.Do(loadLocales)

	text, ok := messages[lang][key]
	if !ok {
		text, ok = messages[models.VI][key]
	}
	if !ok {
		return key
	}
	for name, value := range params {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}
	return text
}
