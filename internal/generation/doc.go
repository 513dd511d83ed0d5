// Package generation provides the interface for calling an external
// text-generation backend. It abstracts the details of LLM API
// integration (Gemini), allowing the executor to send rendered prompts
// without coupling to a specific external service.
package generation
