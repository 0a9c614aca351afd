package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/questsync/internal/models"
	"github.com/desertthunder/questsync/internal/services"
	"github.com/desertthunder/questsync/internal/shared"
	"github.com/desertthunder/questsync/internal/tasks"
)

// APIOpts configures an [API].
type APIOpts struct {
	Player         services.Player       // nil disables the /spotify routes (503)
	Auth           services.OAuthService // nil disables the browser login routes
	Logger         *log.Logger
	AllowedOrigins []string
	OnToken        func(*oauth2.Token) // called after a login or logout so the token can be persisted
	Now            func() time.Time
}

// API serves the quest, checkpoint, music, stats, and playback routes over a [tasks.QuestEngine].
type API struct {
	engine  *tasks.QuestEngine
	player  services.Player
	auth    services.OAuthService
	logger  *log.Logger
	origins []string
	onToken func(*oauth2.Token)
	now     func() time.Time

	mu    sync.Mutex
	state string
}

// NewAPI creates an API. A nil logger discards output.
func NewAPI(engine *tasks.QuestEngine, opts APIOpts) *API {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &API{
		engine:  engine,
		player:  opts.Player,
		auth:    opts.Auth,
		logger:  shared.WithLogger(logger, "component", "http"),
		origins: opts.AllowedOrigins,
		onToken: opts.OnToken,
		now:     now,
	}
}

// Routes registers every endpoint on r.
func (a *API) Routes(r *BasicRouter) {
	r.HandleFunc(http.MethodGet, "/health", a.health)

	r.HandleFunc(http.MethodPost, "/quests", a.createQuest)
	r.HandleFunc(http.MethodGet, "/quests", a.listQuests)
	r.HandleFunc(http.MethodGet, "/quests/{id}", a.getQuest)
	r.HandleFunc(http.MethodPatch, "/quests/{id}", a.editQuest)
	r.HandleFunc(http.MethodDelete, "/quests/{id}", a.deleteQuest)
	r.HandleFunc(http.MethodPatch, "/quests/{id}/status", a.setStatus)
	r.HandleFunc(http.MethodPost, "/quests/{id}/sync", a.setSyncing)
	r.HandleFunc(http.MethodPost, "/quests/{id}/retrieve_loot", a.retrieveLoot)
	r.HandleFunc(http.MethodGet, "/quests/{id}/stats", a.questStats)
	r.HandleFunc(http.MethodGet, "/quests/{id}/playlist", a.questPlaylist)
	r.HandleFunc(http.MethodPost, "/quests/{id}/export", a.exportQuest)
	r.HandleFunc(http.MethodPost, "/quests/{id}/checkpoints", a.addCheckpoint)
	r.HandleFunc(http.MethodGet, "/quests/{id}/checkpoints", a.listCheckpoints)

	r.HandleFunc(http.MethodPatch, "/checkpoints/{id}", a.editCheckpoint)
	r.HandleFunc(http.MethodDelete, "/checkpoints/{id}", a.deleteCheckpoint)
	r.HandleFunc(http.MethodPatch, "/checkpoints/{id}/complete", a.completeCheckpoint)
	r.HandleFunc(http.MethodGet, "/checkpoints/{id}/music", a.checkpointMusic)

	r.HandleFunc(http.MethodPost, "/music/track", a.recordTrack)
	r.HandleFunc(http.MethodGet, "/user/stats", a.userStats)

	a.playbackRoutes(r)
}

// Handler builds the full middleware chain: CORS outermost, then recovery and logging per route.
func (a *API) Handler() http.Handler {
	r := NewBasicRouter()
	r.Use(RecoveryMiddleware(a.logger), LoggingMiddleware(a.logger))
	a.Routes(r)
	return CORSMiddleware(a.origins)(r)
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": a.now().UTC(),
	})
}

type createQuestRequest struct {
	Title       string                  `json:"title"`
	Description models.Optional[string] `json:"description"`
}

func (a *API) createQuest(w http.ResponseWriter, r *http.Request) {
	var req createQuestRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	quest, err := a.engine.CreateQuest(r.Context(), req.Title, req.Description)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, quest)
}

func (a *API) listQuests(w http.ResponseWriter, r *http.Request) {
	quests, err := a.engine.ListQuests(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quests)
}

func (a *API) getQuest(w http.ResponseWriter, r *http.Request) {
	details, err := a.engine.QuestDetails(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (a *API) editQuest(w http.ResponseWriter, r *http.Request) {
	var patch models.QuestPatch
	if err := decodeJSON(r, &patch); err != nil {
		a.writeError(w, r, err)
		return
	}

	quest, err := a.engine.EditQuest(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quest)
}

func (a *API) deleteQuest(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.engine.DeleteQuest(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "quest deleted", "quest_id": id})
}

func (a *API) setStatus(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		writeDetail(w, http.StatusBadRequest, "status query parameter is required")
		return
	}

	quest, err := a.engine.SetStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quest)
}

func (a *API) setSyncing(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("is_syncing")
	if raw == "" {
		writeDetail(w, http.StatusBadRequest, "is_syncing query parameter is required")
		return
	}
	syncing, err := strconv.ParseBool(raw)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("invalid is_syncing value %q", raw))
		return
	}

	quest, err := a.engine.SetSyncing(r.Context(), r.PathValue("id"), syncing)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quest)
}

func (a *API) retrieveLoot(w http.ResponseWriter, r *http.Request) {
	quest, err := a.engine.RetrieveLoot(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quest)
}

func (a *API) questStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.engine.Stats(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) questPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, err := a.engine.Playlist(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

type exportRequest struct {
	Name string `json:"name"`
}

func (a *API) exportQuest(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	result, err := a.engine.ExportToSpotify(r.Context(), r.PathValue("id"), req.Name, nil)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if !result.Created {
		writeDetail(w, http.StatusBadGateway, "failed to create playlist")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type checkpointRequest struct {
	Title      string `json:"title"`
	OrderIndex *int   `json:"order_index"`
}

func (a *API) addCheckpoint(w http.ResponseWriter, r *http.Request) {
	var req checkpointRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.OrderIndex == nil {
		writeDetail(w, http.StatusBadRequest, "order_index is required")
		return
	}

	checkpoint, err := a.engine.AddCheckpoint(r.Context(), r.PathValue("id"), req.Title, *req.OrderIndex)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkpoint)
}

func (a *API) listCheckpoints(w http.ResponseWriter, r *http.Request) {
	checkpoints, err := a.engine.ListCheckpoints(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkpoints)
}

func (a *API) editCheckpoint(w http.ResponseWriter, r *http.Request) {
	var patch models.CheckpointPatch
	if err := decodeJSON(r, &patch); err != nil {
		a.writeError(w, r, err)
		return
	}

	checkpoint, err := a.engine.EditCheckpoint(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkpoint)
}

func (a *API) deleteCheckpoint(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.engine.DeleteCheckpoint(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "checkpoint deleted", "checkpoint_id": id})
}

func (a *API) completeCheckpoint(w http.ResponseWriter, r *http.Request) {
	checkpoint, err := a.engine.CompleteCheckpoint(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkpoint)
}

func (a *API) checkpointMusic(w http.ResponseWriter, r *http.Request) {
	music, err := a.engine.CheckpointMusic(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, music)
}

// trackRequest accepts spotify_uri as an alias of external_track_ref.
type trackRequest struct {
	CheckpointID     string                  `json:"checkpoint_id"`
	TrackName        string                  `json:"track_name"`
	Artist           string                  `json:"artist"`
	Album            models.Optional[string] `json:"album"`
	ExternalTrackRef string                  `json:"external_track_ref"`
	SpotifyURI       string                  `json:"spotify_uri"`
	DurationMs       int                     `json:"duration_ms"`
}

func (a *API) recordTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	ref := strings.TrimSpace(req.ExternalTrackRef)
	if ref == "" {
		ref = strings.TrimSpace(req.SpotifyURI)
	}

	session, err := a.engine.RecordSession(r.Context(), &models.MusicSession{
		CheckpointID:     req.CheckpointID,
		TrackName:        req.TrackName,
		Artist:           req.Artist,
		Album:            req.Album,
		ExternalTrackRef: ref,
		DurationMs:       req.DurationMs,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (a *API) userStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.engine.UserStats(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
