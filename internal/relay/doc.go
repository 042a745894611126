// Package relay holds the core conversation logic: identity registration,
// message relaying, and history reads.
//
// # Flow
//
// Register derives a stable user id from the contact address and upserts the
// identity into both the channel registry and the local store, idempotently.
//
// Relay verifies the identity in both registries (each miss reported
// distinctly), replays the most recent exchanges as conversational context,
// calls the completion provider with a fixed model, persists the resulting
// exchange, and mirrors the reply into the user's channel. The store insert
// is the durability point: a publish failure afterwards is reported but the
// exchange stays committed.
//
// # Errors
//
// Every failure is an *Error with one of three kinds: validation (caller
// input), not-found (unknown identity), or upstream (any collaborator
// failure, including timeouts). The relay never retries; the one local
// recovery is substituting a fallback reply when the provider returns empty
// content.
package relay
