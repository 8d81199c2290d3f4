// Package auth owns the Spotify session lifecycle: PKCE generation, the persisted credential record and token exchange.
//
// # PKCE
//
// [CreatePair] returns a fresh verifier, its S256 challenge and an independent state token for one login attempt.
//
// # Token Store
//
// [FileStore] reads and writes the single [models.AuthRecord] file. A missing file is the "never authenticated" state.
// Writes replace the whole file; there is no locking, so concurrent invocations race and the last writer wins.
//
// # Token Lifecycle
//
// [Manager] decides whether the stored access token is usable, exchanges an authorization code during [Manager.Login]
// and runs the refresh grant in [Manager.Refresh]. Exchanges go through [oauth2.Config] with the client id sent in
// the form body, since Spotify PKCE clients have no secret.
//
// Merge rules:
//   - access_token is always replaced
//   - refresh_token and scope are replaced only when the provider sends a non-empty value
//   - expires_at is now + max(30, expires_in)
package auth
