// Package server exposes the quest engine over HTTP and hosts the OAuth callback used by CLI logins.
//
// # Routing
//
// [BasicRouter] wraps [http.ServeMux] and registers "METHOD /path" patterns, so handlers read
// path wildcards with [http.Request.PathValue]. [Middleware] registered with Use wraps each
// route in reverse order (last added executes first).
//
// # API
//
// [API] binds the quest, checkpoint, music, and user stats routes to a [tasks.QuestEngine] and
// the /spotify routes to a [services.Player]. Bodies are JSON; failures are written as
// {"detail": "..."} with the status chosen by [StatusFor]:
//
//	not found         404
//	invalid argument  400
//	conflict          409
//	not authenticated 401
//	unavailable       503
//	anything else     500
//
// Playback routes answer 503 when no player is configured and 401 until it is authenticated.
//
// # OAuth Callback Handler
//
// [OAuthHandler] serves a single authorization code callback for `questsync spotify auth`. It
// validates the state parameter, exchanges the code, and delivers the token on [OAuthHandler.Result].
// The API has its own login and callback routes for browser sessions against a running server.
package server
