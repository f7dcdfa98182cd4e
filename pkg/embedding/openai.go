package embedding

// OpenAIProviderConfig documents the wire contract a production Provider
// for an OpenAI-compatible `/embeddings` endpoint would need (model,
// base URL, API key). It exists so the shape is on record without this
// module making outbound network calls from package code; wire a real
// HTTP-backed Provider satisfying the same interface (mirroring
// pkg/llm.Client's transport) when a live deployment needs one.
type OpenAIProviderConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}
