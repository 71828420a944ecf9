package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"lingoflow/internal/config"
	"lingoflow/internal/dupcheck"
	"lingoflow/internal/history"
	"lingoflow/internal/logging"
	"lingoflow/internal/services"
	"lingoflow/internal/services/biliup"
	"lingoflow/internal/services/llm"
	"lingoflow/internal/services/videolingo"
	"lingoflow/internal/services/ytdlp"
)

// Discoverer finds candidate videos for a keyword.
type Discoverer interface {
	Search(ctx context.Context, keyword string, maxResults int) ([]ytdlp.Video, error)
}

// CoverFetcher downloads a candidate's thumbnail.
type CoverFetcher interface {
	FetchCover(ctx context.Context, videoURL, destDir string) (string, error)
}

// DuplicateJudge decides whether a candidate already exists on the target
// platform.
type DuplicateJudge interface {
	Check(ctx context.Context, title string) dupcheck.Verdict
}

// JobService drives remote translation/dubbing jobs.
type JobService interface {
	Submit(ctx context.Context, req videolingo.ProcessRequest) (string, error)
	Wait(ctx context.Context, taskID string, interval, timeout time.Duration, onProgress func(videolingo.ProgressUpdate)) (videolingo.TaskStatus, error)
	Download(ctx context.Context, taskID, kind, destPath string) error
	Delete(ctx context.Context, taskID string) bool
}

// MetadataGenerator produces publish metadata from a title and subtitles.
type MetadataGenerator interface {
	GenerateMetadata(ctx context.Context, originalTitle, subtitleText string) (llm.MetadataPack, error)
}

// Publisher uploads a finished video with retries.
type Publisher interface {
	UploadWithRetry(ctx context.Context, req biliup.Request) (biliup.Result, error)
}

// Dependencies carries the runner's collaborators.
type Dependencies struct {
	Discoverer Discoverer
	Judge      DuplicateJudge
	Jobs       JobService
	Metadata   MetadataGenerator
	Publisher  Publisher
	Covers     CoverFetcher
}

// Runner executes the pipeline: one keyword at a time, one candidate at a
// time. A candidate's failure never aborts the run; only cancellation and
// startup problems do.
type Runner struct {
	cfg       *config.Config
	logger    *slog.Logger
	ledger    *history.Ledger
	deps      Dependencies
	processed map[string]struct{}
	blacklist map[string]struct{}
	now       func() time.Time
}

// Option configures the runner.
type Option func(*Runner)

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// New constructs a runner. All dependencies except Covers are required.
func New(cfg *config.Config, logger *slog.Logger, ledger *history.Ledger, deps Dependencies, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if ledger == nil {
		return nil, errors.New("ledger required")
	}
	if deps.Discoverer == nil || deps.Judge == nil || deps.Jobs == nil || deps.Metadata == nil || deps.Publisher == nil {
		return nil, errors.New("discoverer, judge, jobs, metadata, and publisher dependencies required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	runner := &Runner{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		ledger:    ledger,
		deps:      deps,
		blacklist: lowerSet(cfg.YouTube.BlacklistChannels),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

// Run processes every configured keyword sequentially. The run lock lives
// beside the ledger so two runs never race on submissions.
func (r *Runner) Run(ctx context.Context) error {
	lock := flock.New(r.ledger.Path() + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "lock", "acquire run lock", err)
	}
	if !locked {
		return services.Wrap(services.ErrConfiguration, "pipeline", "lock", "another run holds the lock", nil)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	r.processed, err = r.ledger.Load()
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	r.logger.Info("pipeline starting",
		logging.Int("keywords", len(r.cfg.Keywords)),
		logging.Int("processed", len(r.processed)))

	for _, keyword := range r.cfg.Keywords {
		if err := ctx.Err(); err != nil {
			return err
		}
		kctx := services.WithKeyword(ctx, keyword)
		log := logging.WithContext(kctx, r.logger)
		log.Info("searching keyword")

		videos, err := r.deps.Discoverer.Search(kctx, keyword, r.cfg.YouTube.MaxResultsPerKeyword)
		if err != nil {
			log.Warn("keyword search failed", logging.Error(err))
			continue
		}
		for _, video := range videos {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.processCandidate(kctx, video); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				logging.WithContext(services.WithCandidateID(kctx, video.ID), r.logger).
					Error("candidate failed",
						logging.Error(err),
						logging.Bool("retryable", services.IsRetryable(err)))
			}
		}
	}
	r.logger.Info("pipeline finished")
	return nil
}

func (r *Runner) processCandidate(ctx context.Context, video ytdlp.Video) error {
	ctx = services.WithCandidateID(ctx, video.ID)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	log := logging.WithContext(ctx, r.logger)
	log.Info("candidate discovered", logging.String("title", video.Title))

	if video.ID != "" {
		if _, ok := r.processed[video.ID]; ok {
			log.Info("skipping, already processed")
			return nil
		}
	}
	if reason, skip := r.filterReason(video); skip {
		log.Info("skipping candidate", logging.String("reason", reason))
		return r.recordSkip(video, reason)
	}

	verdict := r.deps.Judge.Check(services.WithStep(ctx, "dupcheck"), video.Title)
	if verdict.Duplicate {
		if len(verdict.Matched) > 0 {
			log.Info("skipping duplicate",
				logging.String("matched_title", verdict.Matched[0].Title),
				logging.String("matched_url", verdict.Matched[0].URL))
		} else {
			log.Info("skipping duplicate by model verdict")
		}
		return r.recordDuplicate(video, verdict)
	}

	taskID, err := r.deps.Jobs.Submit(services.WithStep(ctx, "submit"), videolingo.ProcessRequest{
		URL:            video.URL,
		TargetLanguage: r.cfg.Processing.TargetLanguage,
		SourceLanguage: r.cfg.Processing.SourceLanguage,
		EnableDubbing:  r.cfg.Processing.EnableDubbing,
		BurnSubtitles:  r.cfg.Processing.BurnSubtitles,
		Resolution:     r.cfg.Processing.Resolution,
	})
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}
	log = log.With(logging.String(logging.FieldTaskID, taskID))
	log.Info("job submitted, waiting")

	status, err := r.waitForJob(services.WithStep(ctx, "poll"), taskID, log)
	if err != nil {
		r.cleanup(ctx, taskID, log)
		return fmt.Errorf("wait for job: %w", err)
	}
	if status.Status != videolingo.StatusCompleted {
		log.Warn("job did not complete",
			logging.String("status", status.Status),
			logging.String("message", status.Message))
		r.cleanup(ctx, taskID, log)
		return nil
	}

	err = r.publishTask(ctx, video, taskID, log)
	r.cleanup(ctx, taskID, log)
	return err
}

// publishTask covers everything after a completed job: artifact download,
// metadata generation, cover fetch, upload, and the terminal ledger record.
func (r *Runner) publishTask(ctx context.Context, video ytdlp.Video, taskID string, log *slog.Logger) error {
	workDir := filepath.Join(r.cfg.Paths.UploadsCache, taskID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	dctx := services.WithStep(ctx, "download")
	subtitlePath := filepath.Join(workDir, "trans.srt")
	if err := r.deps.Jobs.Download(dctx, taskID, videolingo.ArtifactTransSRT, subtitlePath); err != nil {
		return fmt.Errorf("download subtitles: %w", err)
	}
	kind, name := videolingo.ArtifactVideoSub, "output_sub.mp4"
	if r.cfg.Processing.EnableDubbing {
		kind, name = videolingo.ArtifactVideoDub, "output_dub.mp4"
	}
	videoPath := filepath.Join(workDir, name)
	if err := r.deps.Jobs.Download(dctx, taskID, kind, videoPath); err != nil {
		return fmt.Errorf("download video: %w", err)
	}

	subtitleText, err := os.ReadFile(subtitlePath)
	if err != nil {
		return fmt.Errorf("read subtitles: %w", err)
	}

	pack, err := r.deps.Metadata.GenerateMetadata(services.WithStep(ctx, "metadata"), video.Title, string(subtitleText))
	if err != nil {
		return fmt.Errorf("generate metadata: %w", err)
	}
	title, desc := r.renderMetadata(pack, video)

	coverPath := r.fetchCover(services.WithStep(ctx, "cover"), video, taskID, log)

	result, err := r.deps.Publisher.UploadWithRetry(services.WithStep(ctx, "upload"), biliup.Request{
		CoverPath: coverPath,
		Source:    video.URL,
		Title:     title,
		Desc:      desc,
		Tags:      pack.Tags,
		MediaPath: videoPath,
	})
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}
	if result.Succeeded {
		log.Info("upload succeeded", logging.Int("attempts", result.Attempts))
		return r.recordCompleted(video, taskID, title, desc, pack.Tags)
	}
	log.Warn("upload failed after retries",
		logging.Int("attempts", result.Attempts),
		logging.String("diagnostic", result.Diagnostic))
	return r.recordUploadFailed(video, taskID, result)
}

func (r *Runner) waitForJob(ctx context.Context, taskID string, log *slog.Logger) (videolingo.TaskStatus, error) {
	interval := time.Duration(r.cfg.Poll.IntervalSec) * time.Second
	timeout := time.Duration(r.cfg.Poll.TimeoutSec) * time.Second
	return r.deps.Jobs.Wait(ctx, taskID, interval, timeout, func(update videolingo.ProgressUpdate) {
		log.Info("job progress",
			logging.Int("percent", update.Percent),
			logging.String(logging.FieldStep, update.Step),
			logging.String("message", update.Message))
	})
}

func (r *Runner) fetchCover(ctx context.Context, video ytdlp.Video, taskID string, log *slog.Logger) string {
	if r.deps.Covers == nil {
		return ""
	}
	coverDir := filepath.Join(r.cfg.Paths.Covers, taskID)
	coverPath, err := r.deps.Covers.FetchCover(ctx, video.URL, coverDir)
	if err != nil {
		log.Warn("cover fetch failed, uploading without cover", logging.Error(err))
		return ""
	}
	return coverPath
}

func (r *Runner) cleanup(ctx context.Context, taskID string, log *slog.Logger) {
	if !r.cfg.Processing.CleanupRemote {
		return
	}
	if !r.deps.Jobs.Delete(services.WithStep(ctx, "cleanup"), taskID) {
		log.Warn("remote task cleanup failed")
	}
}

func (r *Runner) recordSkip(video ytdlp.Video, reason string) error {
	if video.ID == "" {
		return nil
	}
	record := history.Record{
		ID:     video.ID,
		URL:    video.URL,
		Status: history.StatusSkipped,
		Reason: reason,
	}
	switch reason {
	case history.ReasonDurationOutOfRange:
		record.Duration = video.Duration
	case history.ReasonBlacklistedChannel:
		record.Channel = video.Uploader
	case history.ReasonTooOld:
		record.UploadDate = video.UploadDate
	}
	return r.append(record)
}

func (r *Runner) recordDuplicate(video ytdlp.Video, verdict dupcheck.Verdict) error {
	if video.ID == "" {
		return nil
	}
	matched := make([]history.Match, 0, len(verdict.Matched))
	for _, m := range verdict.Matched {
		matched = append(matched, history.Match{Title: m.Title, URL: m.URL})
	}
	return r.append(history.Record{
		ID:     video.ID,
		URL:    video.URL,
		Status: history.StatusSkipped,
		Reason: history.ReasonDuplicate,
		Verdict: &history.Verdict{
			Duplicate:  verdict.Duplicate,
			Reason:     verdict.Reason,
			Matched:    matched,
			QueryTitle: verdict.QueryTitle,
		},
	})
}

func (r *Runner) recordCompleted(video ytdlp.Video, taskID, title, desc string, tags []string) error {
	return r.append(history.Record{
		ID:     video.ID,
		URL:    video.URL,
		Status: history.StatusCompleted,
		Title:  title,
		Tags:   tags,
		Desc:   desc,
		TaskID: taskID,
	})
}

func (r *Runner) recordUploadFailed(video ytdlp.Video, taskID string, result biliup.Result) error {
	if video.ID == "" {
		return nil
	}
	return r.append(history.Record{
		ID:       video.ID,
		URL:      video.URL,
		Status:   history.StatusUploadFailed,
		Reason:   result.Diagnostic,
		Attempts: result.Attempts,
		TaskID:   taskID,
	})
}

func (r *Runner) append(record history.Record) error {
	if err := r.ledger.Append(record); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	if record.ID != "" && history.MarksProcessed(record.Status) {
		r.processed[record.ID] = struct{}{}
	}
	return nil
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			set[strings.ToLower(value)] = struct{}{}
		}
	}
	return set
}
