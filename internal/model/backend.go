package model

// Supported generative backend identities.
const (
	BackendGemini = "gemini"
	BackendGPT4o  = "gpt4o"
)

// DefaultBackend is used when a request names no backend.
const DefaultBackend = BackendGemini

// Backends lists every supported backend identity in display order.
var Backends = []string{BackendGemini, BackendGPT4o}

// IsSupportedBackend reports whether name is a known backend identity.
func IsSupportedBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}
