// Package services issues authenticated Spotify Web API calls and implements the saved-tracks operations.
//
// # Authenticated Client
//
// [SpotifyClient] obtains a token from a [TokenProvider] (the auth manager), sends one Bearer request, and on a
// 401 performs exactly one refresh followed by one retry. The retried response is returned as is, so a second 401
// never loops. Requests share a fixed per-call timeout and pass through a [rate.Limiter].
//
// Non-2xx responses are data, not errors: [APIResponse] carries the status and raw body, and
// [APIResponse.ErrorMessage] reads error.message from the provider's JSON envelope with gjson.
// Transport failures wrap [shared.ErrNetwork].
//
// # Library
//
// [Library] validates 22 character track ids before any network activity, then:
//   - LikeStatus: GET /me/tracks/contains?ids=<id>
//   - ToggleLike: LikeStatus, then DELETE or PUT /me/tracks?ids=<id>
//
// 401 and 403 are reported as authorized=false rather than returned as errors.
package services
