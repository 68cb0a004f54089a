// package auth implements the Spotify authorization code flow with PKCE.
//
// The flow is split across two processes in time: [Flow.Begin] generates the
// code verifier and state, persists them, and returns the authorization URL;
// [Flow.Complete] consumes the callback query, validates state, and exchanges
// the code for tokens. Pending artifacts are cleared on every completion
// attempt, successful or not, so a failed exchange cannot be replayed.
//
// Tokens are persisted next to the library database so playback commands in
// later invocations can reuse them. A token is treated as expired sixty
// seconds early to absorb clock skew and request latency.
package auth
