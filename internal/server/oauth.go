package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/desertthunder/questsync/internal/shared"
)

// exchangeCallback checks the redirect query against state and trades its code for a token.
//
// The returned status is the one to write when err is non-nil.
func exchangeCallback(ctx context.Context, config *oauth2.Config, r *http.Request, state string) (*oauth2.Token, int, error) {
	q := r.URL.Query()
	if state == "" || q.Get("state") != state {
		return nil, http.StatusBadRequest, fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)
	}

	code := q.Get("code")
	if code == "" {
		return nil, http.StatusBadRequest, fmt.Errorf("%w: %s %s", shared.ErrAuthFailed, q.Get("error"), q.Get("error_description"))
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return nil, http.StatusBadGateway, fmt.Errorf("%w: token exchange failed: %v", shared.ErrAuthFailed, err)
	}
	return token, http.StatusOK, nil
}

// OAuthResult is what a [OAuthHandler] delivers once its callback has been hit.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler serves the one redirect of `questsync spotify auth`, which runs its own
// short-lived listener instead of the API.
type OAuthHandler struct {
	config *oauth2.Config
	state  string
	result chan OAuthResult

	mu   sync.Mutex
	done bool
}

// NewOAuthHandler expects state to be the random value sent with the authorization URL.
func NewOAuthHandler(config *oauth2.Config, state string) *OAuthHandler {
	return &OAuthHandler{
		config: config,
		state:  state,
		result: make(chan OAuthResult, 1),
	}
}

func (h *OAuthHandler) Routes() []string {
	return []string{"GET /callback"}
}

// ServeHTTP accepts the first callback only. Later hits get 400.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	first := !h.done
	h.done = true
	h.mu.Unlock()

	if !first {
		http.Error(w, "callback already processed", http.StatusBadRequest)
		return
	}

	token, status, err := exchangeCallback(r.Context(), h.config, r, h.state)
	h.result <- OAuthResult{Token: token, err: err}
	close(h.result)

	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	writeSuccessPage(w)
}

// Result yields exactly one [OAuthResult] and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.result
}

const successPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>questsync</title></head>
<body style="font-family: system-ui, sans-serif; text-align: center; padding-top: 4rem;">
  <h1>&#9835; Connected</h1>
  <p>questsync is connected to Spotify. You can close this window.</p>
</body>
</html>
`

func writeSuccessPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}
