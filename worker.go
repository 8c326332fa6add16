package main

import (
	"sync"

	"github.com/Raziel619/upscalarr/upscale"
	"github.com/sirupsen/logrus"
)

type Worker struct {
	id         int
	logger     *logrus.Entry
	poolWorker *PoolWorker
	sync.RWMutex

	workerInfo WorkerInfo
}

type WorkerInfo struct {
	ID       int     `json:"id"`
	Active   bool    `json:"active"`
	Step     string  `json:"step"`
	Progress float64 `json:"progress"`
	Job      *Job    `json:"job"`
}

func NewWorker(id int, logger *logrus.Entry, poolWorker *PoolWorker) *Worker {
	return &Worker{
		id:         id,
		logger:     logger.WithField("worker", id),
		poolWorker: poolWorker,
		workerInfo: WorkerInfo{ID: id},
	}
}

func (w *Worker) start() {
	defer w.poolWorker.waitGroup.Done()

	for job := range w.poolWorker.workChannel {
		current := job
		w.Lock()
		w.workerInfo.Active = true
		w.workerInfo.Job = &current
		w.workerInfo.Step = ""
		w.workerInfo.Progress = 0
		w.Unlock()
		w.sendUpdate()

		w.doWork(&job)

		w.Lock()
		w.workerInfo.Active = false
		w.workerInfo.Job = nil
		w.Unlock()
		w.sendUpdate()

		if w.poolWorker.ctx.Err() != nil {
			w.logger.Debug("Ctx error is: ", w.poolWorker.ctx.Err())
			return
		}
	}
}

func (w *Worker) doWork(job *Job) {
	logger := w.logger.WithField("traceId", job.TraceID)
	logger.WithFields(StructFields(job)).Info("Processing job")
	w.updateStep(string(job.Mode))

	u := w.poolWorker.upscaler.WithLogger(logger).WithProgress(func(done int64, total int64) {
		if total > 0 {
			w.updateProgress(float64(done) / float64(total) * 100)
		}
	})

	outputPath, err := runJob(w.poolWorker.ctx, u, job)
	if w.poolWorker.ctx.Err() != nil {
		// Job stays pending in the database and is picked up on next start
		logger.Info("Job interrupted by shutdown")
		return
	}

	if err != nil {
		w.handleJobError(job, err, logger)
		return
	}

	if outputPath == job.Path {
		w.handleSkip(job, logger)
	} else {
		job.OutputPath = outputPath
	}

	if err := w.poolWorker.sqlite.MarkJobAsDone(job); err != nil {
		logger.Error("Failed to mark job as done: ", err)
		return
	}

	w.updateProgress(100)
	logger.WithField("output", job.OutputPath).Info("Finished processing job")
}

// handleSkip copies the input to the output path when the dispatcher had nothing to do
func (w *Worker) handleSkip(job *Job, logger *logrus.Entry) {
	if !*w.poolWorker.config.CopyFileToDestinationOnSkip {
		job.OutputPath = job.Path
		return
	}

	ok, err := IsSamePath(job.Path, job.OutputPath)
	if err != nil {
		logger.Error("Failed to match same path: ", err)
		job.OutputPath = job.Path
		return
	}

	if ok {
		logger.Warn("Can't copy file with same path as output path")
		job.OutputPath = job.Path
		return
	}

	logger.WithField("srcPath", job.Path).
		WithField("destPath", job.OutputPath).
		Debug("Copying file to destination since it has been skipped")
	if err := CopyFile(job.Path, job.OutputPath); err != nil {
		logger.Error("Failed to copy file to destination: ", err)
		job.OutputPath = job.Path
		return
	}

	logger.Info("File copied sucessfully")
}

func (w *Worker) handleJobError(job *Job, jobErr error, logger *logrus.Entry) {
	logger.WithFields(StructFields(job)).Error("Error processing job: ", jobErr)
	output := upscale.CommandOutput(jobErr)
	if output != "" {
		logger.Debug("Process output: ", output)
	}

	if isPermanent(jobErr) {
		w.failJob(job, output, jobErr, logger)
		return
	}

	retries, err := w.poolWorker.sqlite.GetJobRetries(job)
	if err != nil {
		logger.Error("Failed to get retries: ", err)
		return
	}

	if retries >= w.poolWorker.config.RetryLimit {
		w.failJob(job, output, jobErr, logger)
		return
	}

	retries++
	if err := w.poolWorker.sqlite.UpdateJobRetries(job, retries); err != nil {
		logger.Error("Failed to update job retries: ", err)
		return
	}

	w.poolWorker.queue.Enqueue(*job)
	logger.WithField("retries", retries).Info("Requeue job (back of the queue and retrying)")
}

func (w *Worker) failJob(job *Job, output string, failError error, logger *logrus.Entry) {
	logger.Info("Job failed, removing it from queue")
	if err := w.poolWorker.sqlite.FailJob(job, output, failError.Error()); err != nil {
		logger.Error("Failed to fail the job: ", err)
	}
}

func (w *Worker) updateStep(step string) {
	w.Lock()
	w.workerInfo.Step = step
	w.workerInfo.Progress = 0
	w.Unlock()

	w.sendUpdate()
}

func (w *Worker) updateProgress(progress float64) {
	w.Lock()
	w.workerInfo.Progress = progress
	w.Unlock()

	w.sendUpdate()
}

func (w *Worker) sendUpdate() {
	packet := WsWorkerProgress{
		WsBaseMessage: WsBaseMessage{
			Type: "worker_progress",
		},
		WorkerInfo: w.GetInfo(),
	}

	w.poolWorker.hub.BroadcastMessage(packet)
}

func (w *Worker) GetInfo() WorkerInfo {
	w.RLock() // Shared lock for reading
	defer w.RUnlock()

	info := w.workerInfo
	if info.Job != nil {
		job := *info.Job
		info.Job = &job
	}
	return info
}
