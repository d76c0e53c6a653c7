// Package storage provides the persistent key-value surface the client keeps
// its session, user record and API keys in.
package storage

// Keys of the persisted slots.
const (
	KeySessionToken    = "session_token"
	KeyUser            = "user"
	KeyAPIKey          = "api_key"
	KeyOpenAIAPIKey    = "openai_api_key"
	KeyGoogleAPIKey    = "google_api_key"
	KeyAnthropicAPIKey = "anthropic_api_key"
)

// KV is a synchronous string key-value store that survives restarts.
type KV interface {
	// Get returns the value stored under key and whether it was present.
	Get(key string) (string, bool)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
}
