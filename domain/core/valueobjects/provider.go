package valueobjects

import "strings"

// ProviderTag is the canonical short tag of an identity provider. The tag is
// both the user's partition key and the suffix of the user's row key, so it
// must never contain a key separator.
type ProviderTag string

const (
	ProviderGoogle    ProviderTag = "google"
	ProviderMicrosoft ProviderTag = "microsoft"
	ProviderYahoo     ProviderTag = "yahoo"
	ProviderFacebook  ProviderTag = "facebook"
	ProviderTwitter   ProviderTag = "twitter"
)

// providerMatch maps known issuer substrings to canonical tags. The list is
// ordered; the first match wins.
var providerMatch = []struct {
	substring string
	tag       ProviderTag
}{
	{"google", ProviderGoogle},
	{"live.com", ProviderMicrosoft},
	{"microsoft", ProviderMicrosoft},
	{"windows", ProviderMicrosoft},
	{"yahoo", ProviderYahoo},
	{"facebook", ProviderFacebook},
	{"twitter", ProviderTwitter},
}

// ProviderFromIssuer resolves an identity provider issuer string (as found in
// a token's iss claim or an OAuth redirect) to its canonical tag. Unknown
// issuers resolve to false.
func ProviderFromIssuer(issuer string) (ProviderTag, bool) {
	lowered := strings.ToLower(issuer)
	for _, m := range providerMatch {
		if strings.Contains(lowered, m.substring) {
			return m.tag, true
		}
	}
	return "", false
}

// Valid reports whether the tag is one of the known providers.
func (p ProviderTag) Valid() bool {
	switch p {
	case ProviderGoogle, ProviderMicrosoft, ProviderYahoo, ProviderFacebook, ProviderTwitter:
		return true
	}
	return false
}
