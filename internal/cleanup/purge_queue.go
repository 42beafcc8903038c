// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package cleanup

import "sync"

// In practice, we should rarely have more than a couple of jobs queued (in
// most cases the caller Wait()s after queueing one).
const purgeJobsChLen = 10000

type purgeJob struct {
	plan Plan
	in   ScanInputs
}

// PurgeQueue services scheduled deletions on a background goroutine. When
// ScanInputs.ScheduleOnly is set and the resolver's Purge field points at
// the queue, ObsoleteFileResolver.Execute enqueues its plan here instead of
// performing the I/O inline, keeping filesystem latency off the calling
// thread. The queue must be Close()d.
type PurgeQueue struct {
	resolver *ObsoleteFileResolver

	// jobsCh is used as the purge job queue.
	jobsCh chan purgeJob
	// waitGroup is used to wait for the background goroutine to exit.
	waitGroup sync.WaitGroup

	mu struct {
		sync.Mutex
		queuedJobs        int
		completedJobs     int
		completedJobsCond sync.Cond
	}
}

// OpenPurgeQueue creates a PurgeQueue servicing r and starts its background
// goroutine.
func OpenPurgeQueue(r *ObsoleteFileResolver) *PurgeQueue {
	q := &PurgeQueue{
		resolver: r,
		jobsCh:   make(chan purgeJob, purgeJobsChLen),
	}
	q.mu.completedJobsCond.L = &q.mu.Mutex
	q.waitGroup.Add(1)
	go q.mainLoop()
	return q
}

// Enqueue adds a purge job to the queue. If the queue is full the job is
// executed inline rather than dropped.
func (q *PurgeQueue) Enqueue(plan Plan, in ScanInputs) {
	q.mu.Lock()
	select {
	case q.jobsCh <- purgeJob{plan: plan, in: in}:
		q.mu.queuedJobs++
		q.mu.Unlock()
	default:
		q.mu.Unlock()
		if q.resolver.Logger != nil {
			q.resolver.Logger.Infof("cleanup: purge queue full; executing inline")
		}
		q.resolver.executeSync(plan, in)
	}
}

// Wait blocks until all queued jobs have completed.
func (q *PurgeQueue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.mu.queuedJobs > q.mu.completedJobs {
		q.mu.completedJobsCond.Wait()
	}
}

// Close stops the background goroutine, waiting until all queued jobs are
// completed.
func (q *PurgeQueue) Close() {
	close(q.jobsCh)
	q.waitGroup.Wait()
}

func (q *PurgeQueue) mainLoop() {
	defer q.waitGroup.Done()
	for job := range q.jobsCh {
		q.resolver.executeSync(job.plan, job.in)
		q.mu.Lock()
		q.mu.completedJobs++
		q.mu.completedJobsCond.Broadcast()
		q.mu.Unlock()
	}
}
