package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"lingoflow/internal/config"
	"lingoflow/internal/dupcheck"
	"lingoflow/internal/history"
	"lingoflow/internal/services/biliup"
	"lingoflow/internal/services/llm"
	"lingoflow/internal/services/videolingo"
	"lingoflow/internal/services/ytdlp"
	"lingoflow/internal/testsupport"
)

type fakeDiscoverer struct {
	videos   map[string][]ytdlp.Video
	searches []string
	err      error
}

func (f *fakeDiscoverer) Search(_ context.Context, keyword string, _ int) ([]ytdlp.Video, error) {
	f.searches = append(f.searches, keyword)
	if f.err != nil {
		return nil, f.err
	}
	return f.videos[keyword], nil
}

type fakeJudge struct {
	verdict dupcheck.Verdict
	checked []string
}

func (f *fakeJudge) Check(_ context.Context, title string) dupcheck.Verdict {
	f.checked = append(f.checked, title)
	return f.verdict
}

type fakeJobs struct {
	taskID     string
	submitErr  error
	status     videolingo.TaskStatus
	submitted  []videolingo.ProcessRequest
	downloads  []string
	deletes    int
	subContent string
}

func (f *fakeJobs) Submit(_ context.Context, req videolingo.ProcessRequest) (string, error) {
	f.submitted = append(f.submitted, req)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.taskID, nil
}

func (f *fakeJobs) Wait(context.Context, string, time.Duration, time.Duration, func(videolingo.ProgressUpdate)) (videolingo.TaskStatus, error) {
	return f.status, nil
}

func (f *fakeJobs) Download(_ context.Context, _ string, kind, destPath string) error {
	f.downloads = append(f.downloads, kind)
	content := f.subContent
	if content == "" {
		content = "1\n00:00:01,000 --> 00:00:02,000\n字幕内容\n"
	}
	return os.WriteFile(destPath, []byte(content), 0o644)
}

func (f *fakeJobs) Delete(context.Context, string) bool {
	f.deletes++
	return true
}

type fakeMetadata struct {
	pack llm.MetadataPack
	err  error
}

func (f *fakeMetadata) GenerateMetadata(context.Context, string, string) (llm.MetadataPack, error) {
	return f.pack, f.err
}

type fakePublisher struct {
	result   biliup.Result
	err      error
	requests []biliup.Request
}

func (f *fakePublisher) UploadWithRetry(_ context.Context, req biliup.Request) (biliup.Result, error) {
	f.requests = append(f.requests, req)
	return f.result, f.err
}

type fakeCovers struct {
	path string
	err  error
}

func (f *fakeCovers) FetchCover(context.Context, string, string) (string, error) {
	return f.path, f.err
}

func testCandidate() ytdlp.Video {
	return ytdlp.Video{
		ID:         "v1",
		Title:      "Shark Attack",
		URL:        "https://www.youtube.com/watch?v=v1",
		Duration:   120,
		Uploader:   "ok",
		UploadDate: "20240101",
	}
}

type fixture struct {
	cfg       *config.Config
	ledger    *history.Ledger
	discover  *fakeDiscoverer
	judge     *fakeJudge
	jobs      *fakeJobs
	metadata  *fakeMetadata
	publisher *fakePublisher
	covers    *fakeCovers
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	ledger, err := history.New(cfg.HistoryFile)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		cfg:    cfg,
		ledger: ledger,
		discover: &fakeDiscoverer{videos: map[string][]ytdlp.Video{
			"shark": {testCandidate()},
		}},
		judge:     &fakeJudge{},
		jobs:      &fakeJobs{taskID: "t1", status: videolingo.TaskStatus{Status: videolingo.StatusCompleted, Progress: 100}},
		metadata:  &fakeMetadata{pack: llm.MetadataPack{Title: "鲨鱼袭击", Tags: []string{"鲨鱼", "纪录片"}, Desc: "简介"}},
		publisher: &fakePublisher{result: biliup.Result{Succeeded: true, Attempts: 1}},
		covers:    &fakeCovers{path: "/tmp/cover.jpg"},
	}
}

func (f *fixture) runner(t *testing.T, opts ...Option) *Runner {
	t.Helper()
	runner, err := New(f.cfg, nil, f.ledger, Dependencies{
		Discoverer: f.discover,
		Judge:      f.judge,
		Jobs:       f.jobs,
		Metadata:   f.metadata,
		Publisher:  f.publisher,
		Covers:     f.covers,
	}, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return runner
}

func TestRunHappyPathRecordsCompleted(t *testing.T) {
	f := newFixture(t)
	if err := f.runner(t).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(f.jobs.submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(f.jobs.submitted))
	}
	if got := f.jobs.submitted[0].URL; got != "https://www.youtube.com/watch?v=v1" {
		t.Fatalf("submitted wrong url %q", got)
	}
	if len(f.publisher.requests) != 1 {
		t.Fatalf("expected one upload, got %d", len(f.publisher.requests))
	}
	upload := f.publisher.requests[0]
	if upload.Title != "[中字翻译] 鲨鱼袭击" {
		t.Fatalf("unexpected templated title %q", upload.Title)
	}
	if !strings.Contains(upload.Desc, "Shark Attack") || !strings.Contains(upload.Desc, "https://www.youtube.com/watch?v=v1") {
		t.Fatalf("description missing original title or url: %q", upload.Desc)
	}
	if f.jobs.deletes != 1 {
		t.Fatalf("expected one remote cleanup, got %d", f.jobs.deletes)
	}

	records, err := f.ledger.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Status != history.StatusCompleted || records[0].ID != "v1" {
		t.Fatalf("unexpected records %+v", records)
	}
	processed, err := f.ledger.Load()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := processed["v1"]; !ok {
		t.Fatal("completed candidate missing from processed set on reload")
	}
}

func TestRunJobFailureLeavesNoRecordAndCleansUpOnce(t *testing.T) {
	f := newFixture(t)
	f.jobs.status = videolingo.TaskStatus{Status: videolingo.StatusFailed, Message: "boom"}
	if err := f.runner(t).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	records, err := f.ledger.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatalf("job failure must not write records, got %+v", records)
	}
	if f.jobs.deletes != 1 {
		t.Fatalf("expected exactly one cleanup call, got %d", f.jobs.deletes)
	}
	if len(f.publisher.requests) != 0 {
		t.Fatal("failed job must not reach the publisher")
	}

	// Next run retries the candidate.
	f.jobs.status = videolingo.TaskStatus{Status: videolingo.StatusCompleted}
	if err := f.runner(t).Run(context.Background()); err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if len(f.jobs.submitted) != 2 {
		t.Fatalf("expected resubmission on next run, got %d submissions", len(f.jobs.submitted))
	}
}

func TestRunSkipsAlreadyProcessedBeforeOtherFilters(t *testing.T) {
	f := newFixture(t)
	if err := f.ledger.Append(history.Record{ID: "v1", Status: history.StatusCompleted}); err != nil {
		t.Fatal(err)
	}
	// Would fail the duration filter if it were evaluated.
	videos := f.discover.videos["shark"]
	videos[0].Duration = 5
	f.discover.videos["shark"] = videos

	if err := f.runner(t).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	records, err := f.ledger.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("already-processed skip must not append records, got %+v", records)
	}
	if len(f.judge.checked) != 0 || len(f.jobs.submitted) != 0 {
		t.Fatal("already-processed candidate must not reach judge or job service")
	}
}

func TestRunFilterRecordsSkip(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ytdlp.Video)
		reason string
	}{
		{"duration", func(v *ytdlp.Video) { v.Duration = 5 }, history.ReasonDurationOutOfRange},
		{"blacklist", func(v *ytdlp.Video) { v.Uploader = "Spammy" }, history.ReasonBlacklistedChannel},
		{"too old", func(v *ytdlp.Video) { v.UploadDate = "19990101" }, history.ReasonTooOld},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, testsupport.WithBlacklist("spammy"))
			video := testCandidate()
			tc.mutate(&video)
			f.discover.videos["shark"] = []ytdlp.Video{video}

			if err := f.runner(t).Run(context.Background()); err != nil {
				t.Fatalf("Run returned error: %v", err)
			}
			records, err := f.ledger.Records()
			if err != nil {
				t.Fatal(err)
			}
			if len(records) != 1 || records[0].Status != history.StatusSkipped || records[0].Reason != tc.reason {
				t.Fatalf("unexpected records %+v", records)
			}
			if len(f.jobs.submitted) != 0 {
				t.Fatal("filtered candidate must not be submitted")
			}
		})
	}
}

func TestRunUnknownDurationPassesFilter(t *testing.T) {
	f := newFixture(t)
	video := testCandidate()
	video.Duration = 0
	f.discover.videos["shark"] = []ytdlp.Video{video}

	if err := f.runner(t).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(f.jobs.submitted) != 1 {
		t.Fatal("unknown duration should pass the duration filter")
	}
}

func TestRunMalformedUploadDatePasses(t *testing.T) {
	f := newFixture(t)
	video := testCandidate()
	video.UploadDate = "not-a-date"
	f.discover.videos["shark"] = []ytdlp.Video{video}

	if err := f.runner(t).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(f.jobs.submitted) != 1 {
		t.Fatal("malformed upload date should pass the recency filter")
	}
}

func TestRunDuplicateVerdictRecordsSkip(t *testing.T) {
	f := newFixture(t)
	f.judge.verdict = dupcheck.Verdict{
		Duplicate:  true,
		Reason:     "same footage",
		Matched:    []llm.DuplicateCandidate{{Title: "鲨鱼袭击合集", URL: "https://www.bilibili.com/video/BV1"}},
		QueryTitle: "鲨鱼袭击",
	}
	if err := f.runner(t).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	records, err := f.ledger.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Reason != history.ReasonDuplicate {
		t.Fatalf("unexpected records %+v", records)
	}
	if records[0].Verdict == nil || !records[0].Verdict.Duplicate || records[0].Verdict.QueryTitle != "鲨鱼袭击" {
		t.Fatalf("verdict not persisted: %+v", records[0].Verdict)
	}
	if len(f.jobs.submitted) != 0 {
		t.Fatal("duplicate must not be submitted")
	}
	processed, err := f.ledger.Load()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := processed["v1"]; !ok {
		t.Fatal("duplicate skip should mark the candidate processed")
	}
}

func TestRunUploadFailureRecordsRetryEligible(t *testing.T) {
	f := newFixture(t)
	f.publisher.result = biliup.Result{Succeeded: false, Attempts: 3, Diagnostic: "exit code 1"}
	f.publisher.err = errors.New("exit code 1")

	if err := f.runner(t).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	records, err := f.ledger.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Status != history.StatusUploadFailed {
		t.Fatalf("unexpected records %+v", records)
	}
	if records[0].Attempts != 3 || !strings.Contains(records[0].Reason, "exit code 1") {
		t.Fatalf("failure detail missing: %+v", records[0])
	}
	if f.jobs.deletes != 1 {
		t.Fatalf("cleanup should still run, got %d", f.jobs.deletes)
	}
	processed, err := f.ledger.Load()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := processed["v1"]; ok {
		t.Fatal("upload failure must stay retry-eligible")
	}
}

func TestRunSubmitFailureContinuesRun(t *testing.T) {
	f := newFixture(t)
	f.discover.videos["shark"] = []ytdlp.Video{testCandidate(), {
		ID: "v2", Title: "Second", URL: "https://www.youtube.com/watch?v=v2", Duration: 60,
	}}
	f.jobs.submitErr = errors.New("503")

	if err := f.runner(t).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(f.jobs.submitted) != 2 {
		t.Fatalf("both candidates should be attempted, got %d", len(f.jobs.submitted))
	}
	records, err := f.ledger.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatalf("submit failures must not write records, got %+v", records)
	}
}

func TestRunCoverFailureUploadsWithoutCover(t *testing.T) {
	f := newFixture(t)
	f.covers.err = errors.New("no thumbnail")

	if err := f.runner(t).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(f.publisher.requests) != 1 {
		t.Fatal("upload should proceed without a cover")
	}
	if f.publisher.requests[0].CoverPath != "" {
		t.Fatalf("expected empty cover path, got %q", f.publisher.requests[0].CoverPath)
	}
}

func TestRunVisitsEveryKeyword(t *testing.T) {
	f := newFixture(t, testsupport.WithKeywords("shark", "octopus"))
	f.discover.videos = map[string][]ytdlp.Video{}

	if err := f.runner(t).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(f.discover.searches) != 2 || f.discover.searches[0] != "shark" || f.discover.searches[1] != "octopus" {
		t.Fatalf("unexpected searches %v", f.discover.searches)
	}
}

func TestRunKeywordSearchFailureContinues(t *testing.T) {
	f := newFixture(t, testsupport.WithKeywords("shark", "octopus"))
	f.discover.err = errors.New("network down")

	if err := f.runner(t).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(f.discover.searches) != 2 {
		t.Fatalf("failed keyword must not abort the run, searched %v", f.discover.searches)
	}
}

func TestRunCancellationStopsPromptly(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.runner(t).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(f.discover.searches) != 0 {
		t.Fatal("cancelled run must not search")
	}
}

func TestRunSecondInstanceBlockedByLock(t *testing.T) {
	f := newFixture(t)
	lockPath := f.cfg.HistoryFile + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		t.Fatal(err)
	}
	held := flock.New(lockPath)
	locked, err := held.TryLock()
	if err != nil || !locked {
		t.Fatalf("could not pre-acquire lock: locked=%v err=%v", locked, err)
	}
	defer func() {
		_ = held.Unlock()
	}()

	if err := f.runner(t).Run(context.Background()); err == nil {
		t.Fatal("expected lock contention error")
	}
}
