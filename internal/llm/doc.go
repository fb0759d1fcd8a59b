// Package llm holds the outbound boundaries to the external text
// completion and embedding services. Both are OpenAI-compatible HTTP
// APIs reached through langchaingo; both are opaque network services to
// the rest of the system.
//
// Calls apply a configured timeout; expiry surfaces as
// UpstreamUnavailable and is safe for the caller to retry. Retries are
// never attempted here.
package llm
