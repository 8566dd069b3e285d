package main

import (
	"time"

	"github.com/google/uuid"
)

type JobState int

const (
	JobDetected JobState = iota
	JobTransferring
	JobConfirmed
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobDetected:
		return "detected"
	case JobTransferring:
		return "transferring"
	case JobConfirmed:
		return "confirmed"
	case JobFailed:
		return "failed"
	}
	return "unknown"
}

// Job is a single transfer attempt. It lives only for the duration of one
// call into a Transferer and is never persisted.
type Job struct {
	ID        string
	File      string
	State     JobState
	StartedAt time.Time
	Bytes     int64
	Err       error
}

func newJob(file string) *Job {
	return &Job{
		ID:    uuid.NewString(),
		File:  file,
		State: JobDetected,
	}
}

func (j *Job) start() {
	j.State = JobTransferring
	j.StartedAt = time.Now()
}

func (j *Job) finish(err error) {
	j.Err = err
	if err != nil {
		j.State = JobFailed
		return
	}
	j.State = JobConfirmed
}
