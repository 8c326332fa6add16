package main

import (
	"sync"
)

type Queue struct {
	jobs []Job
	hub  *Hub
	lock sync.Mutex
}

func NewQueue(jobs []Job, hub *Hub) *Queue {
	return &Queue{
		jobs: jobs,
		hub:  hub,
	}
}

func (q *Queue) GetJobs() []Job {
	q.lock.Lock()
	defer q.lock.Unlock()

	jobs := make([]Job, len(q.jobs))
	copy(jobs, q.jobs)
	return jobs
}

func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return len(q.jobs)
}

func (q *Queue) Enqueue(item Job) {
	q.lock.Lock()
	defer q.lock.Unlock()

	q.jobs = append(q.jobs, item)
	q.sendUpdate()
}

func (q *Queue) Peek() (Job, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if len(q.jobs) == 0 {
		return Job{}, false
	}

	return q.jobs[0], true
}

func (q *Queue) Dequeue() (Job, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if len(q.jobs) == 0 {
		return Job{}, false
	}

	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.sendUpdate()
	return job, true
}

func (q *Queue) RemoveByID(id int64) (Job, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	job, index := q.findByIDInternal(id)
	if index == -1 {
		return Job{}, false
	}

	q.jobs = append(q.jobs[:index], q.jobs[index+1:]...)
	q.sendUpdate()
	return job, true
}

func (q *Queue) FindByID(id int64) (Job, int) {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.findByIDInternal(id)
}

func (q *Queue) findByIDInternal(id int64) (Job, int) {
	for i, item := range q.jobs {
		if item.ID == id {
			return item, i
		}
	}

	return Job{}, -1
}

// sendUpdate must be called with the lock held
func (q *Queue) sendUpdate() {
	jobs := make([]Job, len(q.jobs))
	copy(jobs, q.jobs)

	packet := WsQueueUpdate{
		WsBaseMessage: WsBaseMessage{
			Type: "queue_update",
		},
		Jobs: jobs,
	}

	q.hub.BroadcastMessage(packet)
}
