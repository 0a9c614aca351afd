package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/desertthunder/questsync/internal/formatter"
	"github.com/desertthunder/questsync/internal/models"
	"golang.org/x/time/rate"
)

// BulkExportOpts contains configuration for bulk playlist exports.
type BulkExportOpts struct {
	Format     string  // Export format: json, csv, markdown, txt
	OutputDir  string  // Base output directory (default: questsync_export_{epoch})
	NumWorkers int     // Concurrent workers (default: 5)
	RateLimit  float64 // Playlists built per second (default: 20)
}

// PlaylistExportJob is one quest playlist queued for writing.
type PlaylistExportJob struct {
	Playlist *models.QuestPlaylist
}

// BulkExport writes the playlist of each quest in ids (every quest when ids is empty) to opts.OutputDir.
//
// Playlists are built by a single producer paced by a rate limiter and written by a worker pool.
// Failures are recorded per quest; a manifest summarizing the run is written last.
func (e *QuestEngine) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, ids []string, opts BulkExportOpts) (*models.BulkExportResult, error) {
	format, err := formatter.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	opts.Format = format

	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("questsync_export_%d", e.now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20.0
	}

	if len(ids) == 0 {
		quests, err := e.store.Quests.List(ctx, nil)
		if err != nil {
			return nil, err
		}
		for _, q := range quests {
			ids = append(ids, q.ID)
		}
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &models.BulkExportResult{
		TotalQuests:     len(ids),
		OutputDirectory: opts.OutputDir,
		ExportedAt:      e.now(),
		Results:         make([]models.PlaylistExportResult, 0, len(ids)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan PlaylistExportJob, len(ids))
	results := make(chan models.PlaylistExportResult, len(ids))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, id := range ids {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			playlist, err := e.Playlist(ctx, id)
			if err != nil {
				results <- models.PlaylistExportResult{
					QuestID:    id,
					QuestTitle: fmt.Sprintf("Unknown (%s)", id),
					Error:      fmt.Errorf("failed to build playlist: %w", err),
				}
				continue
			}

			sendProgress(prog, exportingPlaylistUpdate(i+1, len(ids), playlist.Quest.Title))
			jobs <- PlaylistExportJob{Playlist: playlist}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			sendProgress(prog, exportCompletedUpdate(completed, len(ids), res.QuestTitle, len(res.Files)))
		} else {
			result.FailedExports++
			sendProgress(prog, exportFailedUpdate(completed, len(ids), res.QuestTitle, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteBulkExportManifest(result, opts.Format, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath

	e.logger.Info("bulk export finished", "dir", opts.OutputDir, "ok", result.SuccessfulExports, "failed", result.FailedExports)
	return result, nil
}

// exportWorker writes playlists from the jobs channel until it is closed.
func (e *QuestEngine) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan PlaylistExportJob,
	results chan<- models.PlaylistExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			return
		}
		results <- exportSinglePlaylist(job, opts)
	}
}

// exportSinglePlaylist writes one playlist in the requested format.
func exportSinglePlaylist(j PlaylistExportJob, opts BulkExportOpts) models.PlaylistExportResult {
	quest := j.Playlist.Quest
	result := models.PlaylistExportResult{
		QuestID:    quest.ID,
		QuestTitle: quest.Title,
		TrackCount: j.Playlist.UniqueSongs,
		Files:      []string{},
	}

	switch opts.Format {
	case models.FormatCSV:
		csvRes, err := formatter.WriteCSVExport(j.Playlist, filepath.Join(opts.OutputDir, quest.ID))
		if err != nil {
			result.Error = fmt.Errorf("CSV export failed: %w", err)
			return result
		}
		result.Files = []string{csvRes.TracksFile, csvRes.MetadataFile}

	case models.FormatMarkdown:
		mdRes, err := formatter.WriteMarkdownExport(j.Playlist, filepath.Join(opts.OutputDir, quest.ID))
		if err != nil {
			result.Error = fmt.Errorf("markdown export failed: %w", err)
			return result
		}
		result.Files = mdRes.Files

	case models.FormatText:
		path, err := formatter.WriteTextExport(j.Playlist, filepath.Join(opts.OutputDir, quest.ID+"_tracks.txt"))
		if err != nil {
			result.Error = fmt.Errorf("text export failed: %w", err)
			return result
		}
		result.Files = []string{path}

	default:
		path, err := formatter.WriteJSONExport(j.Playlist, filepath.Join(opts.OutputDir, quest.ID+".json"))
		if err != nil {
			result.Error = fmt.Errorf("JSON export failed: %w", err)
			return result
		}
		result.Files = []string{path}
	}

	result.Success = true
	return result
}

