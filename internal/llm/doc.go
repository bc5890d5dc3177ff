// Package llm wraps the language model behind a single synchronous call:
// prompt in, completion out.
//
// The model is served by an OpenAI-compatible endpoint (Ollama, vLLM or
// text-generation-inference). Load is called once at startup and records
// the model in a local cache directory so later starts skip the lookup.
package llm
