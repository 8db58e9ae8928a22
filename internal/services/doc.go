// Package services defines shared utilities consumed by the audit pipeline and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp document IDs, audit run IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so malformed input,
//     extraction failures, remote service errors, and persistence problems can
//     be told apart at the boundary of a single user action.
//
// LLM transports live in the llm (OpenRouter-compatible) and gemini (Google
// GenAI) subpackages.
package services
