package main

import (
	"context"
	"errors"
	"image"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Raziel619/upscalarr/upscale"
)

type testPool struct {
	pool   *PoolWorker
	db     *Sqlite
	queue  *Queue
	jobs   []Job
	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

func startTestPool(t *testing.T, config Config, jobs ...Job) *testPool {
	t.Helper()
	return startTestPoolWithLoader(t, upscale.BicubicLoader{}, config, jobs...)
}

func startTestPoolWithLoader(t *testing.T, loader upscale.ModelLoader, config Config, jobs ...Job) *testPool {
	t.Helper()

	if err := verifyConfig(&config); err != nil {
		t.Fatalf("verify config: %v", err)
	}

	db := newTestSqlite(t)
	for i := range jobs {
		if err := prepareJob(&jobs[i], config.OutputMarker); err != nil {
			t.Fatalf("prepare job: %v", err)
		}
		if _, err := db.InsertJob(&jobs[i]); err != nil {
			t.Fatalf("insert job: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	queue := NewQueue(jobs, nil)
	upscaler := upscale.New(loader, discardLogger(), config.UpscaleOptions())

	var wg sync.WaitGroup
	pool := NewPoolWorker(ctx, discardLogger(), queue, db, nil, upscaler, &config, &wg)
	pool.StartWorkers()
	go pool.RunDispatcher()

	tp := &testPool{pool: pool, db: db, queue: queue, jobs: jobs, cancel: cancel, wg: &wg}
	t.Cleanup(tp.stop)
	return tp
}

func (tp *testPool) stop() {
	tp.cancel()
	tp.wg.Wait()
}

// waitIdle polls until no job is pending in the database
func (tp *testPool) waitIdle(t *testing.T) {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		pending, err := tp.db.GetJobs()
		if err != nil {
			t.Fatalf("get jobs: %v", err)
		}
		if len(pending) == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}

	t.Fatal("jobs were not processed in time")
}

func TestPoolProcessesJobs(t *testing.T) {
	first := writeImage(t, "first.jpg", 6, 4)
	second := writeImage(t, "second.jpg", 3, 3)

	tp := startTestPool(t, Config{Workers: 2},
		Job{Path: first, Mode: ModeX2},
		Job{Path: second, Mode: ModeX8},
	)
	tp.waitIdle(t)
	tp.stop()

	width, height := imageDimensions(t, upscale.OutputPath(first, "_u"))
	if width != 12 || height != 8 {
		t.Errorf("first output is %dx%d, want 12x8", width, height)
	}

	width, height = imageDimensions(t, upscale.OutputPath(second, "_u"))
	if width != 24 || height != 24 {
		t.Errorf("second output is %dx%d, want 24x24", width, height)
	}

	failed, err := tp.db.GetFailedJobs()
	if err != nil || len(failed) != 0 {
		t.Fatalf("no job should fail: %+v, %v", failed, err)
	}

	for _, info := range tp.pool.GetWorkerInfos() {
		if info.Active || info.Job != nil {
			t.Errorf("worker %d should be idle: %+v", info.ID, info)
		}
	}
}

func TestPoolFailsPermanentErrors(t *testing.T) {
	tall := writeImage(t, "tall.jpg", 2, 30)

	tp := startTestPool(t, Config{},
		Job{Path: tall, Mode: ModeX2, SideCheck: 10},
		Job{Path: tall + ".missing.jpg", Mode: ModeX4},
	)
	tp.waitIdle(t)
	tp.stop()

	failed, err := tp.db.GetFailedJobs()
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(failed) != 2 {
		t.Fatalf("got %d failed jobs, want 2", len(failed))
	}

	for _, f := range failed {
		if f.Job.Retries != 0 {
			t.Errorf("permanent errors should not be retried, job %d has %d retries", f.Job.ID, f.Job.Retries)
		}
	}

	if _, err := os.Stat(upscale.OutputPath(tall, "_u")); !os.IsNotExist(err) {
		t.Errorf("oversized input should not produce output, stat err = %v", err)
	}
}

func TestPoolCopiesSkippedFiles(t *testing.T) {
	huge := writeImage(t, "huge.png", 5600, 2)
	copyOnSkip := true

	tp := startTestPool(t, Config{CopyFileToDestinationOnSkip: &copyOnSkip},
		Job{Path: huge, Mode: Mode8K},
	)
	tp.waitIdle(t)
	tp.stop()

	width, height := imageDimensions(t, upscale.OutputPath(huge, "_u"))
	if width != 5600 || height != 2 {
		t.Fatalf("copied output is %dx%d, want the input size", width, height)
	}
}

// flakyLoader fails every load with an error worth retrying
type flakyLoader struct {
	mu    sync.Mutex
	calls int
}

func (l *flakyLoader) Load(scale int) (upscale.Upsampler, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return nil, errors.New("device busy")
}

func (l *flakyLoader) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func TestPoolRetriesThenFails(t *testing.T) {
	input := writeImage(t, "photo.jpg", 4, 4)
	loader := &flakyLoader{}

	tp := startTestPoolWithLoader(t, loader, Config{RetryLimit: 2},
		Job{Path: input, Mode: ModeX2},
	)
	tp.waitIdle(t)
	tp.stop()

	if calls := loader.Calls(); calls != 3 {
		t.Fatalf("job ran %d times, want the first run plus 2 retries", calls)
	}

	job, err := tp.db.GetJob(tp.jobs[0].ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Retries != 2 || !job.Failed || job.Done {
		t.Fatalf("unexpected job state %+v", job)
	}

	failed, err := tp.db.GetFailedJobs()
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Job.ID != job.ID || failed[0].Error == "" {
		t.Fatalf("unexpected failed jobs %+v", failed)
	}

	if tp.queue.Len() != 0 {
		t.Fatalf("failed job should not stay queued, queue has %d jobs", tp.queue.Len())
	}
}

// blockingLoader holds the first upsample until release is closed
type blockingLoader struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (l *blockingLoader) Load(scale int) (upscale.Upsampler, error) {
	model, err := upscale.BicubicLoader{}.Load(scale)
	if err != nil {
		return nil, err
	}
	return &blockingModel{Upsampler: model, loader: l}, nil
}

type blockingModel struct {
	upscale.Upsampler
	loader *blockingLoader
}

func (m *blockingModel) Upsample(img image.Image) (image.Image, error) {
	m.loader.once.Do(func() { close(m.loader.started) })
	<-m.loader.release
	return m.Upsampler.Upsample(img)
}

func TestPoolShutdownKeepsJobPending(t *testing.T) {
	input := writeImage(t, "photo.jpg", 4, 4)
	loader := &blockingLoader{started: make(chan struct{}), release: make(chan struct{})}
	released := false
	defer func() {
		if !released {
			close(loader.release)
		}
	}()

	tp := startTestPoolWithLoader(t, loader, Config{},
		Job{Path: input, Mode: ModeX2},
	)

	select {
	case <-loader.started:
	case <-time.After(10 * time.Second):
		t.Fatal("job did not start in time")
	}

	tp.cancel()
	close(loader.release)
	released = true
	tp.wg.Wait()

	pending, err := tp.db.GetJobs()
	if err != nil {
		t.Fatalf("get jobs: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != tp.jobs[0].ID {
		t.Fatalf("interrupted job should stay pending, got %+v", pending)
	}

	failed, err := tp.db.GetFailedJobs()
	if err != nil || len(failed) != 0 {
		t.Fatalf("interrupted job should not fail: %+v, %v", failed, err)
	}
}

func TestPoolSkipCopyFailureKeepsInputPath(t *testing.T) {
	huge := writeImage(t, "huge.png", 5600, 2)
	copyOnSkip := true

	// A directory where the copy should go makes CopyFile fail
	if err := os.Mkdir(upscale.OutputPath(huge, "_u"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	tp := startTestPool(t, Config{CopyFileToDestinationOnSkip: &copyOnSkip},
		Job{Path: huge, Mode: Mode8K},
	)
	tp.waitIdle(t)
	tp.stop()

	job, err := tp.db.GetJob(tp.jobs[0].ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if !job.Done || job.OutputPath != huge {
		t.Fatalf("job should be done with the input as output, got %+v", job)
	}
}

func TestPoolSkipWithoutCopyKeepsInputPath(t *testing.T) {
	huge := writeImage(t, "huge.png", 5600, 2)

	tp := startTestPool(t, Config{}, Job{Path: huge, Mode: Mode8K})
	tp.waitIdle(t)
	tp.stop()

	job, err := tp.db.GetJob(tp.jobs[0].ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if !job.Done || job.OutputPath != huge {
		t.Fatalf("job should be done with the input as output, got %+v", job)
	}

	if _, err := os.Stat(upscale.OutputPath(huge, "_u")); !os.IsNotExist(err) {
		t.Fatalf("nothing should be written without copyFileToDestinationOnSkip, stat err = %v", err)
	}
}
