package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/Raziel619/upscalarr/upscale"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	logger *logrus.Entry
	config *Config
	queue  *Queue
	sqlite *Sqlite
	hub    *Hub
	pool   *PoolWorker
}

func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(s.logger))

	r.GET("/ping", ping)
	r.GET("/jobs", s.listJobs)
	r.POST("/jobs", s.addJob)
	r.GET("/jobs/:id", s.getJob)
	r.DELETE("/jobs/:id", s.deleteJob)
	r.GET("/jobs/failed", s.listFailedJobs)
	r.GET("/workers", s.listWorkers)
	if s.hub != nil {
		r.GET("/ws", s.hub.HandleConnections)
	}

	return r
}

func ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

func (s *Server) listJobs(c *gin.Context) {
	c.JSON(http.StatusOK, s.queue.GetJobs())
}

func (s *Server) addJob(c *gin.Context) {
	var job Job
	if err := c.ShouldBindJSON(&job); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := prepareJob(&job, s.config.OutputMarker); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := s.sqlite.InsertJob(&job); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save job"})
		return
	}

	s.logger.WithFields(StructFields(job)).Debug("Job added")
	s.queue.Enqueue(job)
	c.JSON(http.StatusCreated, job)
}

func (s *Server) getJob(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := s.sqlite.GetJob(id)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("job %d not found", id)})
		return
	}

	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

func (s *Server) deleteJob(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, ok := s.queue.RemoveByID(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("job %d is not queued", id)})
		return
	}

	if err := s.sqlite.DeleteJobByID(nil, id); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete job"})
		return
	}

	s.logger.WithField("id", id).Debug("Job deleted")
	c.JSON(http.StatusOK, job)
}

func (s *Server) listFailedJobs(c *gin.Context) {
	jobs, err := s.sqlite.GetFailedJobs()
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list failed jobs"})
		return
	}

	c.JSON(http.StatusOK, jobs)
}

func (s *Server) listWorkers(c *gin.Context) {
	if s.pool == nil {
		c.JSON(http.StatusOK, []WorkerInfo{})
		return
	}

	c.JSON(http.StatusOK, s.pool.GetWorkerInfos())
}

type serveCommand struct{}

func (cmd *serveCommand) Execute(args []string) error {
	config, err := GetConfig(globalOptions.ConfigPath)
	if err != nil {
		return err
	}

	if err := InitLogFile(config.LogPath); err != nil {
		return err
	}

	logger, err := CreateLogger("main")
	if err != nil {
		return err
	}

	sqlite, err := NewSqlite(config.DatabasePath)
	if err != nil {
		return err
	}
	defer sqlite.Close()

	if err := sqlite.RunMigrations(); err != nil {
		return err
	}

	jobs, err := sqlite.GetJobs()
	if err != nil {
		return err
	}

	wsLogger, err := CreateLogger("ws")
	if err != nil {
		return err
	}

	hub := NewHub(wsLogger)
	go hub.Run()
	defer hub.Stop()

	upscaleLogger, err := CreateLogger("upscale")
	if err != nil {
		return err
	}

	workerLogger, err := CreateLogger("worker")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue := NewQueue(jobs, hub)
	upscaler := upscale.New(config.ModelLoader(), upscaleLogger, config.UpscaleOptions())

	var waitGroup sync.WaitGroup
	pool := NewPoolWorker(ctx, workerLogger, queue, sqlite, hub, upscaler, &config, &waitGroup)
	pool.StartWorkers()
	go pool.RunDispatcher()

	server := &Server{
		logger: logger,
		config: &config,
		queue:  queue,
		sqlite: sqlite,
		hub:    hub,
		pool:   pool,
	}

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.BindAddress, config.Port),
		Handler: NewRouter(server),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s with %d workers, %d jobs pending", httpServer.Addr, config.Workers, len(jobs))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down, waiting for workers")
	case err = <-serveErr:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("Http server shutdown: ", shutdownErr)
	}

	waitGroup.Wait()
	logger.Info("Stopped")
	return err
}
