// Package services defines the playback [Bridge] and implements it for Spotify.
//
// # Bridge
//
// The quest engine and the tracker only see [Bridge]. Every method reports failure as false or nil
// rather than an error: a dead device, an expired token or a free-tier account must never abort a
// quest operation. Implementations log the underlying cause.
//
// [Player] adds volume, device transfer and account lookups for the HTTP surface and the CLI.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
// The [oauth2.Client] refreshes expired tokens using the refresh token, and [SpotifyService.Token]
// hands the refreshed token back so the CLI can persist it.
//
// Playlists are created private and filled in batches of 100 URIs, the limit of the add-items endpoint.
//
// # API Client
//
// [APIService] is a thin client for a running questsync server used by the `api` commands.
//
// # Error Handling
//
// Lower-level calls use typed errors from the shared package:
//   - [shared.ErrNotAuthenticated] : no token installed
//   - [shared.ErrTokenExpired] : Spotify answered 401, reauthorization needed
//   - [shared.ErrAPIRequest] : transport failure or non-2xx status
package services
