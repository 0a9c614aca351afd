package services

import (
	"context"

	"github.com/desertthunder/questsync/internal/models"
	"golang.org/x/oauth2"
)

// Bridge is the playback capability consumed by the quest engine and the tracker.
//
// Failures are reported as false or nil and logged by the implementation; callers treat them as
// recoverable and never retry automatically.
type Bridge interface {
	// IsAuthenticated reports whether the bridge holds usable credentials.
	IsAuthenticated(ctx context.Context) bool
	// CurrentTrack returns the playing track, or nil when nothing is playing or the lookup failed.
	CurrentTrack(ctx context.Context) *models.TrackInfo
	Play(ctx context.Context) bool
	Pause(ctx context.Context) bool
	Next(ctx context.Context) bool
	Previous(ctx context.Context) bool
	// CreatePlaylist creates an external playlist holding uris in order and returns its URL.
	CreatePlaylist(ctx context.Context, name string, uris []string) (string, bool)
}

// Player extends [Bridge] with device and account controls.
type Player interface {
	Bridge
	SetVolume(ctx context.Context, percent int) bool
	TransferPlayback(ctx context.Context, deviceID string) bool
	UserInfo(ctx context.Context) *UserInfo
}

// OAuthService is implemented by providers that authenticate through the authorization code flow.
type OAuthService interface {
	GetAuthURL(state string) string
	GetOAuthConfig() *oauth2.Config
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
	// Token returns the current (possibly refreshed) token, or nil when logged out.
	Token() *oauth2.Token
	Logout()
}

// UserInfo is the account summary shown by status commands.
type UserInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	ProfileURL  string `json:"profile_url"`
	Image       string `json:"image,omitempty"`
	Premium     bool   `json:"premium"`
}
