package valueobjects

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderFromIssuer(t *testing.T) {
	tests := []struct {
		issuer string
		tag    ProviderTag
		known  bool
	}{
		{"https://accounts.google.com", ProviderGoogle, true},
		{"https://login.live.com", ProviderMicrosoft, true},
		{"https://login.microsoftonline.com/common/v2.0", ProviderMicrosoft, true},
		{"https://login.windows.net/common", ProviderMicrosoft, true},
		{"https://api.login.yahoo.com", ProviderYahoo, true},
		{"https://www.facebook.com", ProviderFacebook, true},
		{"https://twitter.com", ProviderTwitter, true},
		{"HTTPS://ACCOUNTS.GOOGLE.COM", ProviderGoogle, true},
		{"https://id.example.org", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		tag, ok := ProviderFromIssuer(tt.issuer)
		assert.Equal(t, tt.known, ok, "issuer %q", tt.issuer)
		assert.Equal(t, tt.tag, tag, "issuer %q", tt.issuer)
	}
}

func TestProviderTagValid(t *testing.T) {
	assert.True(t, ProviderGoogle.Valid())
	assert.True(t, ProviderMicrosoft.Valid())
	assert.False(t, ProviderTag("github").Valid())
	assert.False(t, ProviderTag("").Valid())
}
