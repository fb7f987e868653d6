package ai

import "context"

// Runtime is the minimal interface implemented by text generation backends
// such as the Hugging Face inference API and local runtimes (e.g., Ollama).
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used across the CLI for selection.
const (
	ProviderHuggingFace = "huggingface"
	ProviderOpenAI      = "openai"
	ProviderOllama      = "ollama"
	ProviderLocal       = "local"
)

// Providers lists the registered provider names in a stable order.
func Providers() []string {
	return []string{ProviderHuggingFace, ProviderOpenAI, ProviderOllama, ProviderLocal}
}
