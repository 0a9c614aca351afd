// Spotify Web API implementation of [Player]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/questsync/internal/models"
	"github.com/desertthunder/questsync/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// playlistBatchSize is the most tracks the add-items endpoint accepts per request.
	playlistBatchSize = 100
	playlistDesc      = "Created by questsync"
)

// SpotifyScopes are requested during authorization.
var SpotifyScopes = []string{
	"user-read-currently-playing",
	"user-read-playback-state",
	"user-modify-playback-state",
	"playlist-modify-public",
	"playlist-modify-private",
	"user-read-email",
	"user-read-private",
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID           string         `json:"id"`
	DisplayName  string         `json:"display_name"`
	Email        string         `json:"email"`
	Country      string         `json:"country"`
	Product      string         `json:"product"` // premium, free, etc.
	ExternalURLs externalURLs   `json:"external_urls"`
	Images       []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Public       bool         `json:"public"`
	ExternalURLs externalURLs `json:"external_urls"`
	URI          string       `json:"uri"`
}

// SpotifyDevice is a playback target.
type SpotifyDevice struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsActive      bool   `json:"is_active"`
	VolumePercent int    `json:"volume_percent"`
}

// SpotifyPlayback is the player state returned by GET /me/player.
type SpotifyPlayback struct {
	Device     SpotifyDevice `json:"device"`
	IsPlaying  bool          `json:"is_playing"`
	ProgressMS int           `json:"progress_ms"`
	Item       *SpotifyTrack `json:"item"`
}

// TrackInfo converts the playing item, returning nil when there is none.
func (p *SpotifyPlayback) TrackInfo() *models.TrackInfo {
	if p == nil || p.Item == nil || p.Item.URI == "" {
		return nil
	}

	info := &models.TrackInfo{
		TrackName:        p.Item.Name,
		Album:            p.Item.Album.Name,
		ExternalTrackRef: p.Item.URI,
		DurationMs:       p.Item.DurationMS,
		ProgressMs:       p.ProgressMS,
		IsPlaying:        p.IsPlaying,
	}
	if len(p.Item.Artists) > 0 {
		info.Artist = p.Item.Artists[0].Name
	}
	if len(p.Item.Album.Images) > 0 {
		info.AlbumArt = p.Item.Album.Images[0].URL
	}
	return info
}

// SpotifyService implements [Player] and [OAuthService] for the Spotify Web API.
// Uses [oauth2] for authentication; the token source refreshes expired access tokens.
type SpotifyService struct {
	config  *oauth2.Config
	baseURL string
	logger  *log.Logger

	mu          sync.RWMutex
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       SpotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		baseURL:    spotifyBaseURL,
		logger:     log.New(io.Discard),
		httpClient: http.DefaultClient,
	}, nil
}

// SetLogger replaces the discard logger used for bridge failures.
func (s *SpotifyService) SetLogger(l *log.Logger) {
	if l != nil {
		s.logger = l
	}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Authenticate performs OAuth2 authentication with Spotify. Expects either an "access_token" or "auth_code" in credentials.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		return s.OAuthenticate(ctx, &oauth2.Token{AccessToken: accessToken, RefreshToken: credentials["refresh_token"]})
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		return s.OAuthenticate(ctx, token)
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// OAuthenticate installs token. Requests made afterwards refresh it transparently when it expires.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: empty token", shared.ErrMissingCredentials)
	}

	// the client outlives the request that installed it
	ctx = context.WithoutCancel(ctx)
	ts := s.config.TokenSource(ctx, token)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenSource = ts
	s.httpClient = oauth2.NewClient(ctx, ts)
	return nil
}

// Token returns the current token, refreshing it if needed. Nil when logged out or refresh fails.
func (s *SpotifyService) Token() *oauth2.Token {
	s.mu.RLock()
	ts := s.tokenSource
	s.mu.RUnlock()

	if ts == nil {
		return nil
	}
	token, err := ts.Token()
	if err != nil {
		s.logger.Warn("failed to obtain spotify token", "error", err)
		return nil
	}
	return token
}

// Logout drops the token.
func (s *SpotifyService) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenSource = nil
	s.httpClient = http.DefaultClient
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig exposes the OAuth2 config for the callback handler.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// IsAuthenticated reports whether a token is installed and still valid or refreshable.
func (s *SpotifyService) IsAuthenticated(ctx context.Context) bool {
	return s.Token() != nil
}

// doRequest performs an authenticated HTTP request to the Spotify API.
//
// body is JSON encoded when non-nil; result is decoded unless the response has no content.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	s.mu.RLock()
	client, ts := s.httpClient, s.tokenSource
	s.mu.RUnlock()

	if ts == nil {
		return shared.ErrNotAuthenticated
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return shared.ErrTokenExpired
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: spotify status %d: %s", shared.ErrAPIRequest, resp.StatusCode, bytes.TrimSpace(msg))
	case resp.StatusCode == http.StatusNoContent || result == nil:
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CurrentPlayback returns the player state, or nil when no device is active.
func (s *SpotifyService) CurrentPlayback(ctx context.Context) (*SpotifyPlayback, error) {
	var playback *SpotifyPlayback
	if err := s.doRequest(ctx, http.MethodGet, "/me/player", nil, &playback); err != nil {
		return nil, err
	}
	return playback, nil
}

// Devices lists the user's available playback devices.
func (s *SpotifyService) Devices(ctx context.Context) ([]SpotifyDevice, error) {
	var response struct {
		Devices []SpotifyDevice `json:"devices"`
	}
	if err := s.doRequest(ctx, http.MethodGet, "/me/player/devices", nil, &response); err != nil {
		return nil, err
	}
	return response.Devices, nil
}

// CreatePlaylistWithTracks creates a private playlist for the current user and adds uris in batches.
func (s *SpotifyService) CreatePlaylistWithTracks(ctx context.Context, name string, uris []string) (*SpotifyPlaylist, error) {
	if len(uris) == 0 {
		return nil, fmt.Errorf("%w: no track uris", shared.ErrInvalidArgument)
	}

	user, err := s.UserProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current user: %w", err)
	}

	payload := map[string]any{"name": name, "public": false, "description": playlistDesc}
	var playlist SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(user.ID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, payload, &playlist); err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}

	for start := 0; start < len(uris); start += playlistBatchSize {
		end := min(start+playlistBatchSize, len(uris))
		endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlist.ID))
		if err := s.doRequest(ctx, http.MethodPost, endpoint, map[string]any{"uris": uris[start:end]}, nil); err != nil {
			return &playlist, fmt.Errorf("failed to add tracks %d-%d: %w", start, end, err)
		}
	}

	return &playlist, nil
}

// CurrentTrack implements [Bridge].
func (s *SpotifyService) CurrentTrack(ctx context.Context) *models.TrackInfo {
	playback, err := s.CurrentPlayback(ctx)
	if err != nil {
		s.logger.Warn("failed to get current track", "error", err)
		return nil
	}
	return playback.TrackInfo()
}

// Play implements [Bridge].
func (s *SpotifyService) Play(ctx context.Context) bool {
	return s.control(ctx, "play", http.MethodPut, "/me/player/play", nil)
}

// Pause implements [Bridge].
func (s *SpotifyService) Pause(ctx context.Context) bool {
	return s.control(ctx, "pause", http.MethodPut, "/me/player/pause", nil)
}

// Next implements [Bridge].
func (s *SpotifyService) Next(ctx context.Context) bool {
	return s.control(ctx, "next", http.MethodPost, "/me/player/next", nil)
}

// Previous implements [Bridge].
func (s *SpotifyService) Previous(ctx context.Context) bool {
	return s.control(ctx, "previous", http.MethodPost, "/me/player/previous", nil)
}

// SetVolume sets the active device volume, clamped to 0-100.
func (s *SpotifyService) SetVolume(ctx context.Context, percent int) bool {
	percent = max(0, min(100, percent))
	return s.control(ctx, "volume", http.MethodPut, fmt.Sprintf("/me/player/volume?volume_percent=%d", percent), nil)
}

// TransferPlayback moves playback to deviceID without starting it.
func (s *SpotifyService) TransferPlayback(ctx context.Context, deviceID string) bool {
	if deviceID == "" {
		s.logger.Warn("transfer playback requires a device id")
		return false
	}
	body := map[string]any{"device_ids": []string{deviceID}, "play": false}
	return s.control(ctx, "transfer", http.MethodPut, "/me/player", body)
}

// CreatePlaylist implements [Bridge].
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name string, uris []string) (string, bool) {
	playlist, err := s.CreatePlaylistWithTracks(ctx, name, uris)
	if err != nil {
		s.logger.Warn("failed to create playlist", "name", name, "tracks", len(uris), "error", err)
		return "", false
	}
	return playlist.ExternalURLs.Spotify, true
}

// UserInfo implements [Player].
func (s *SpotifyService) UserInfo(ctx context.Context) *UserInfo {
	user, err := s.UserProfile(ctx)
	if err != nil {
		s.logger.Warn("failed to get user info", "error", err)
		return nil
	}

	info := &UserInfo{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		ProfileURL:  user.ExternalURLs.Spotify,
		Premium:     user.Product == "premium",
	}
	if len(user.Images) > 0 {
		info.Image = user.Images[0].URL
	}
	return info
}

func (s *SpotifyService) control(ctx context.Context, action, method, endpoint string, body any) bool {
	if err := s.doRequest(ctx, method, endpoint, body, nil); err != nil {
		s.logger.Warn("playback control failed", "action", action, "error", err)
		return false
	}
	return true
}
