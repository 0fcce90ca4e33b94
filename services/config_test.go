package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPlaceholderURL(t *testing.T) {
	assert.True(t, IsPlaceholderURL(""))
	assert.True(t, IsPlaceholderURL("https://script.google.com/macros/s/YOUR_GOOGLE_APPS_SCRIPT_ID/exec"))
	assert.False(t, IsPlaceholderURL("https://script.google.com/macros/s/AKfycb123/exec"))
}

func TestRemoteConfigValidate(t *testing.T) {
	valid := RemoteConfig{
		GatekeeperURL: "https://script.google.com/macros/s/AKfycb123/exec",
		GoogleAPIKey:  "key",
	}
	assert.NoError(t, valid.Validate())

	missingKey := valid
	missingKey.GoogleAPIKey = ""
	assert.ErrorIs(t, missingKey.Validate(), ErrServiceUnavailable)

	placeholder := valid
	placeholder.GatekeeperURL = "https://YOUR_GOOGLE_URL/exec"
	assert.ErrorIs(t, placeholder.Validate(), ErrServiceUnavailable)
}
