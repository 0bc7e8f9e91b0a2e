package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc"

	"github.com/icctweb/team-registration/internal/domain/blobstore"
	"github.com/icctweb/team-registration/internal/platform/resilience"
)

const defaultUploadWorkers = 4

// PlayerUploads carries the documents of one roster slot. Slot numbers
// start at 1 and drive the stored object names.
type PlayerUploads struct {
	Slot  int
	Files map[string][]byte
}

// UploadPlan groups everything a registration wants stored under the
// team's pending folder. Empty file contents are treated as absent
// optional documents and skipped.
type UploadPlan struct {
	TeamFiles map[string][]byte
	Players   []PlayerUploads
}

// UploadResult maps logical field names to stored object URLs.
type UploadResult struct {
	TeamFileURLs   map[string]string
	PlayerFileURLs []map[string]string
}

// UploadOrchestrator writes a registration's documents to the blob
// store under pending/{teamID}/. Team files go up sequentially, player
// documents fan out over a bounded worker pool. On any failure it
// removes everything already written under the team's prefix before
// returning, so a failed registration leaves no orphaned objects.
type UploadOrchestrator struct {
	store       blobstore.Store
	retryPolicy resilience.RetryPolicy
	workers     int
	logger      *slog.Logger
}

func NewUploadOrchestrator(store blobstore.Store, retryPolicy resilience.RetryPolicy, workers int, logger *slog.Logger) *UploadOrchestrator {
	if workers <= 0 {
		workers = defaultUploadWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadOrchestrator{
		store:       store,
		retryPolicy: resilience.NormalizeRetryPolicy(retryPolicy, resilience.DefaultUploadRetry()),
		workers:     workers,
		logger:      logger,
	}
}

func (o *UploadOrchestrator) UploadAll(ctx context.Context, teamID string, plan UploadPlan) (UploadResult, error) {
	ctx, span := startUsecaseSpan(ctx, "UploadOrchestrator.UploadAll")
	defer span.End()

	result := UploadResult{
		TeamFileURLs:   make(map[string]string, len(plan.TeamFiles)),
		PlayerFileURLs: make([]map[string]string, len(plan.Players)),
	}

	uploaded := make([]string, 0, len(plan.TeamFiles)+len(plan.Players)*2)

	for _, field := range sortedFields(plan.TeamFiles) {
		content := plan.TeamFiles[field]
		if len(content) == 0 {
			continue
		}
		path := blobstore.PendingPath(teamID, field)
		url, err := o.uploadOne(ctx, path, content)
		if err != nil {
			o.compensate(ctx, teamID, uploaded)
			return UploadResult{}, fmt.Errorf("%w: %s: %v", ErrFileUpload, field, err)
		}
		uploaded = append(uploaded, path)
		result.TeamFileURLs[field] = url
	}

	playerURLs, playerPaths, err := o.uploadPlayerFiles(ctx, teamID, plan.Players)
	uploaded = append(uploaded, playerPaths...)
	if err != nil {
		o.compensate(ctx, teamID, uploaded)
		return UploadResult{}, err
	}
	result.PlayerFileURLs = playerURLs

	return result, nil
}

func (o *UploadOrchestrator) uploadPlayerFiles(ctx context.Context, teamID string, players []PlayerUploads) ([]map[string]string, []string, error) {
	urls := make([]map[string]string, len(players))

	type task struct {
		index int
		field string
		path  string
		body  []byte
	}
	var tasks []task
	for i, p := range players {
		urls[i] = make(map[string]string, len(p.Files))
		for _, field := range sortedFields(p.Files) {
			content := p.Files[field]
			if len(content) == 0 {
				continue
			}
			object := fmt.Sprintf("player_%02d_%s", p.Slot, field)
			tasks = append(tasks, task{
				index: i,
				field: field,
				path:  blobstore.PendingPath(teamID, object),
				body:  content,
			})
		}
	}
	if len(tasks) == 0 {
		return urls, nil, nil
	}

	workerCount := o.workers
	if workerCount > len(tasks) {
		workerCount = len(tasks)
	}
	pool, err := ants.NewPool(workerCount)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: create upload pool: %v", ErrFileUpload, err)
	}
	defer pool.Release()

	var (
		mu       sync.Mutex
		paths    []string
		firstErr error
	)
	var workers sync.WaitGroup
	for _, tk := range tasks {
		tk := tk
		workers.Add(1)
		if submitErr := pool.Submit(func() {
			defer workers.Done()

			mu.Lock()
			failed := firstErr != nil
			mu.Unlock()
			if failed {
				return
			}

			url, upErr := o.uploadOne(ctx, tk.path, tk.body)

			mu.Lock()
			defer mu.Unlock()
			if upErr != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("%w: %s: %v", ErrFileUpload, tk.field, upErr)
				}
				return
			}
			paths = append(paths, tk.path)
			urls[tk.index][tk.field] = url
		}); submitErr != nil {
			workers.Done()
			workers.Wait()
			return nil, paths, fmt.Errorf("%w: submit upload task: %v", ErrFileUpload, submitErr)
		}
	}
	workers.Wait()

	if firstErr != nil {
		return nil, paths, firstErr
	}
	return urls, paths, nil
}

func (o *UploadOrchestrator) uploadOne(ctx context.Context, path string, content []byte) (string, error) {
	return resilience.Do(ctx, o.retryPolicy, resilience.IsTransient, func(ctx context.Context) (string, error) {
		return o.store.Upload(ctx, path, content)
	})
}

// compensate removes whatever was written under the team's pending
// prefix. It runs on a context detached from the caller's so a blown
// deadline does not strand the cleanup, and failures are logged rather
// than returned.
func (o *UploadOrchestrator) compensate(ctx context.Context, teamID string, uploadedPaths []string) {
	cleanupCtx := context.WithoutCancel(ctx)

	prefix := blobstore.PendingPrefix(teamID)
	err := o.store.DeleteByPrefix(cleanupCtx, prefix)
	if err == nil {
		o.logger.InfoContext(cleanupCtx, "rolled back pending uploads", "prefix", prefix)
		return
	}
	o.logger.WarnContext(cleanupCtx, "prefix rollback failed, deleting individually", "prefix", prefix, "error", err)

	var wg conc.WaitGroup
	for _, path := range uploadedPaths {
		path := path
		wg.Go(func() {
			if err := o.store.Delete(cleanupCtx, path); err != nil {
				o.logger.WarnContext(cleanupCtx, "rollback delete failed", "path", path, "error", err)
			}
		})
	}
	wg.Wait()
}

func sortedFields(files map[string][]byte) []string {
	fields := make([]string, 0, len(files))
	for field := range files {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
