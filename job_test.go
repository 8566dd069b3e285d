package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobLifecycle(t *testing.T) {
	job := newJob("./a.bin")
	assert.Equal(t, JobDetected, job.State)

	job.start()
	assert.Equal(t, JobTransferring, job.State)
	assert.False(t, job.StartedAt.IsZero())

	job.finish(nil)
	assert.Equal(t, JobConfirmed, job.State)
	assert.Equal(t, "confirmed", job.State.String())

	failed := newJob("./b.bin")
	failed.start()
	failed.finish(errBoom)
	assert.Equal(t, JobFailed, failed.State)
	assert.ErrorIs(t, failed.Err, errBoom)

	assert.NotEqual(t, job.ID, failed.ID)
}
