package main

import (
	"context"
	"sync"
	"time"

	"github.com/Raziel619/upscalarr/upscale"
	"github.com/sirupsen/logrus"
)

type PoolWorker struct {
	ctx         context.Context
	logger      *logrus.Entry
	queue       *Queue
	sqlite      *Sqlite
	hub         *Hub
	upscaler    *upscale.Upscaler
	config      *Config
	waitGroup   *sync.WaitGroup
	workChannel chan Job
	workers     []*Worker
}

func NewPoolWorker(ctx context.Context, logger *logrus.Entry, queue *Queue, sqlite *Sqlite,
	hub *Hub, upscaler *upscale.Upscaler, config *Config, waitGroup *sync.WaitGroup) *PoolWorker {
	p := &PoolWorker{
		ctx:         ctx,
		logger:      logger,
		queue:       queue,
		sqlite:      sqlite,
		hub:         hub,
		upscaler:    upscaler,
		config:      config,
		waitGroup:   waitGroup,
		workChannel: make(chan Job),
	}

	for i := 0; i < config.Workers; i++ {
		p.workers = append(p.workers, NewWorker(i, logger, p))
	}

	return p
}

// StartWorkers must be called once before RunDispatcher
func (p *PoolWorker) StartWorkers() {
	for _, worker := range p.workers {
		p.waitGroup.Add(1)
		go worker.start()
	}
}

// RunDispatcher feeds queued jobs to idle workers until ctx is canceled
func (p *PoolWorker) RunDispatcher() {
	defer close(p.workChannel)
	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		job, ok := p.queue.Dequeue()
		if !ok {
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		select {
		case p.workChannel <- job:
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *PoolWorker) GetWorkerInfos() []WorkerInfo {
	infos := make([]WorkerInfo, 0, len(p.workers))
	for _, worker := range p.workers {
		infos = append(infos, worker.GetInfo())
	}
	return infos
}
