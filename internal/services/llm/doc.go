// Package llm provides an OpenRouter-compatible chat client used to run GAAP
// audits against a hosted model.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send system/user prompts, receive free text (loose audits).
// Client.CompleteJSON: same, with response_format json_object (strict audits).
// Client.HealthCheck: verify API key and model availability.
// DecodeJSON: decode a JSON payload that may be fenced or wrapped in prose.
//
// # Configuration
//
// Requires api_key and model; base_url, referer, title and timeout are
// optional. The default HTTP timeout is 120s.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, network timeouts and empty
// completions with exponential backoff (base 1s, max 10s). Two attempts are
// made by default; WithRetryMaxAttempts changes that. A Retry-After header
// overrides the computed delay. Context cancellation aborts retries
// immediately.
package llm
