package tasks

import (
	"context"

	"github.com/lysyi3m/tweetshelf/app/media"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to manage background maintenance.
// Example usage:
//
//	scheduler := NewScheduler(workerCount)
//	scheduler.AddPeriodic("sweep_media", "@daily", func() TaskInterface { return NewSweepMediaTask(...) })
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	AddPeriodic(name, spec string, factory func() TaskInterface) error
}

// MediaStore is the part of the media mirror the maintenance tasks use.
type MediaStore interface {
	RunAll(ctx context.Context, urls []string) []string
	IsLocal(ref string) bool
	List() ([]media.Entry, error)
	Remove(ref string) error
}

var _ MediaStore = (*media.Mirror)(nil)
