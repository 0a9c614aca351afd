package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/questsync/internal/shared"
)

func (a *API) playbackRoutes(r *BasicRouter) {
	r.HandleFunc(http.MethodGet, "/spotify/auth/status", a.authStatus)
	r.HandleFunc(http.MethodGet, "/spotify/auth/login", a.login)
	r.HandleFunc(http.MethodGet, "/spotify/auth/callback", a.callback)
	r.HandleFunc(http.MethodGet, "/callback", a.callback)
	r.HandleFunc(http.MethodPost, "/spotify/auth/logout", a.logout)

	r.HandleFunc(http.MethodGet, "/spotify/current", a.current)
	r.HandleFunc(http.MethodPost, "/spotify/play", a.control("play"))
	r.HandleFunc(http.MethodPost, "/spotify/pause", a.control("pause"))
	r.HandleFunc(http.MethodPost, "/spotify/next", a.control("next"))
	r.HandleFunc(http.MethodPost, "/spotify/previous", a.control("previous"))
	r.HandleFunc(http.MethodPost, "/spotify/volume", a.volume)
	r.HandleFunc(http.MethodPost, "/spotify/transfer-playback", a.transferPlayback)
	r.HandleFunc(http.MethodPost, "/spotify/create-playlist", a.createPlaylist)
}

// requirePlayer writes 503 when no player is configured and 401 when it is not authenticated.
func (a *API) requirePlayer(w http.ResponseWriter, r *http.Request) bool {
	if a.player == nil {
		writeDetail(w, http.StatusServiceUnavailable, "spotify is not configured")
		return false
	}
	if !a.player.IsAuthenticated(r.Context()) {
		writeDetail(w, http.StatusUnauthorized, "not authenticated with spotify")
		return false
	}
	return true
}

func (a *API) authStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"authenticated": false, "user": nil}
	if a.player != nil && a.player.IsAuthenticated(r.Context()) {
		resp["authenticated"] = true
		if user := a.player.UserInfo(r.Context()); user != nil {
			resp["user"] = user
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	if a.auth == nil {
		writeDetail(w, http.StatusServiceUnavailable, "spotify login is not configured")
		return
	}

	state, err := shared.GenerateState()
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.mu.Lock()
	a.state = state
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"auth_url": a.auth.GetAuthURL(state)})
}

func (a *API) callback(w http.ResponseWriter, r *http.Request) {
	if a.auth == nil {
		writeDetail(w, http.StatusServiceUnavailable, "spotify login is not configured")
		return
	}

	a.mu.Lock()
	expected := a.state
	a.state = ""
	a.mu.Unlock()

	token, status, err := exchangeCallback(r.Context(), a.auth.GetOAuthConfig(), r, expected)
	if err != nil {
		a.logger.Warn("spotify callback rejected", "error", err)
		writeDetail(w, status, err.Error())
		return
	}
	if err := a.auth.OAuthenticate(r.Context(), token); err != nil {
		a.writeError(w, r, err)
		return
	}
	if a.onToken != nil {
		a.onToken(a.auth.Token())
	}

	a.logger.Info("spotify authenticated")
	writeSuccessPage(w)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if a.auth == nil {
		writeDetail(w, http.StatusServiceUnavailable, "spotify login is not configured")
		return
	}
	a.auth.Logout()
	if a.onToken != nil {
		a.onToken(nil)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (a *API) current(w http.ResponseWriter, r *http.Request) {
	if !a.requirePlayer(w, r) {
		return
	}

	track := a.player.CurrentTrack(r.Context())
	if track == nil {
		writeJSON(w, http.StatusOK, map[string]any{"playing": false, "track": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playing": track.IsPlaying, "track": track})
}

func (a *API) control(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.requirePlayer(w, r) {
			return
		}

		var ok bool
		switch action {
		case "play":
			ok = a.player.Play(r.Context())
		case "pause":
			ok = a.player.Pause(r.Context())
		case "next":
			ok = a.player.Next(r.Context())
		case "previous":
			ok = a.player.Previous(r.Context())
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
	}
}

func (a *API) volume(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("volume")
	percent, err := strconv.Atoi(raw)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("invalid volume %q", raw))
		return
	}
	if !a.requirePlayer(w, r) {
		return
	}

	percent = max(0, min(100, percent))
	writeJSON(w, http.StatusOK, map[string]any{"success": a.player.SetVolume(r.Context(), percent), "volume": percent})
}

func (a *API) transferPlayback(w http.ResponseWriter, r *http.Request) {
	deviceID := strings.TrimSpace(r.URL.Query().Get("device_id"))
	if deviceID == "" {
		writeDetail(w, http.StatusBadRequest, "device_id query parameter is required")
		return
	}
	if !a.requirePlayer(w, r) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": a.player.TransferPlayback(r.Context(), deviceID)})
}

type createPlaylistRequest struct {
	PlaylistName string   `json:"playlist_name"`
	TrackURIs    []string `json:"track_uris"`
}

func (a *API) createPlaylist(w http.ResponseWriter, r *http.Request) {
	var req createPlaylistRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if len(req.TrackURIs) == 0 {
		writeDetail(w, http.StatusBadRequest, "track_uris must not be empty")
		return
	}
	if strings.TrimSpace(req.PlaylistName) == "" {
		writeDetail(w, http.StatusBadRequest, "playlist_name is required")
		return
	}
	if !a.requirePlayer(w, r) {
		return
	}

	url, ok := a.player.CreatePlaylist(r.Context(), req.PlaylistName, req.TrackURIs)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "failed to create playlist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "playlist created",
		"playlist_url": url,
		"total_tracks": len(req.TrackURIs),
	})
}
