// Package languages lists the languages the relay advertises to clients.
package languages

import "encoding/json"

type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Flag string `json:"flag"`
}

var supported = []Language{
	{Code: "ar", Name: "Arabic", Flag: "🇸🇦"},
	{Code: "en", Name: "English", Flag: "🇺🇸"},
	{Code: "es", Name: "Spanish", Flag: "🇪🇸"},
	{Code: "fr", Name: "French", Flag: "🇫🇷"},
	{Code: "de", Name: "German", Flag: "🇩🇪"},
	{Code: "ja", Name: "Japanese", Flag: "🇯🇵"},
	{Code: "nl", Name: "Dutch", Flag: "🇳🇱"},
	{Code: "ur", Name: "Urdu", Flag: "🇵🇰"},
	{Code: "tr", Name: "Turkish", Flag: "🇹🇷"},
	{Code: "id", Name: "Indonesian", Flag: "🇮🇩"},
	{Code: "ms", Name: "Malay", Flag: "🇲🇾"},
}

const (
	DefaultSource = "ar"
	DefaultTarget = "en"
)

// All returns the supported languages in display order.
func All() []Language {
	out := make([]Language, len(supported))
	copy(out, supported)
	return out
}

// Lookup finds a language by code.
func Lookup(code string) (Language, bool) {
	for _, l := range supported {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

// Name returns the English name for code, or code itself when unknown.
func Name(code string) string {
	if l, ok := Lookup(code); ok {
		return l.Name
	}
	return code
}

// JSON renders the list served by the get/languages RPC.
func JSON() (string, error) {
	b, err := json.Marshal(supported)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
