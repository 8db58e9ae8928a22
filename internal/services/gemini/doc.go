// Package gemini wraps google.golang.org/genai for GAAP audit prompts.
//
// Either a Gemini API key or a Vertex AI project/location is used. Requests
// carry an explicit HTTP timeout and are retried a bounded number of times on
// 408/429/5xx responses, network timeouts and empty replies.
package gemini
