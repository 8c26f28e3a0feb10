package models

// ProviderKind selects the client implementation for an AiSource
type ProviderKind string

const (
	ProviderOpenAI    ProviderKind = "openai"
	ProviderAnthropic ProviderKind = "anthropic"
	ProviderGemini    ProviderKind = "gemini"
	ProviderOllama    ProviderKind = "ollama"
)

// AiSource is one configured AI provider account
type AiSource struct {
	ID       string       `json:"id" yaml:"id"`
	Name     string       `json:"name" yaml:"name"`
	Provider ProviderKind `json:"provider" yaml:"provider"`
	APIKey   string       `json:"-" yaml:"apiKey"`
	BaseURL  string       `json:"baseUrl,omitempty" yaml:"baseUrl"`
	Model    string       `json:"model" yaml:"model"`
	Enabled  bool         `json:"enabled" yaml:"enabled"`
	Traits   string       `json:"traits,omitempty" yaml:"traits"`

	// Vertex AI only
	Project string `json:"project,omitempty" yaml:"project"`
	Region  string `json:"region,omitempty" yaml:"region"`
}

// Label is the name used in user-facing messages
func (s AiSource) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Usable reports whether the source belongs in a failover chain
func (s AiSource) Usable() bool {
	return s.Enabled && s.APIKey != ""
}

// ModelSummary is one entry of a provider's model list
type ModelSummary struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one conversational turn
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}
