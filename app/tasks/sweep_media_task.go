package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/tweetshelf/app/database"
)

const DefaultSweepGrace = time.Hour

// SweepMediaTask deletes media files no post references. Files younger than
// the grace period are left alone so in-flight saves keep their downloads.
type SweepMediaTask struct {
	Task
	postRepo database.PostRepository
	mirror   MediaStore
	grace    time.Duration
	now      func() time.Time
}

func NewSweepMediaTask(postRepo database.PostRepository, mirror MediaStore, grace time.Duration) *SweepMediaTask {
	return &SweepMediaTask{
		Task:     NewTask(TaskTypeSweepMedia, "media"),
		postRepo: postRepo,
		mirror:   mirror,
		grace:    grace,
		now:      time.Now,
	}
}

func (t *SweepMediaTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	refs, err := t.postRepo.AllMediaURLs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load media references: %w", err)
	}

	referenced := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		referenced[ref] = struct{}{}
	}

	entries, err := t.mirror.List()
	if err != nil {
		return fmt.Errorf("failed to list media: %w", err)
	}

	cutoff := t.now().Add(-t.grace)
	removed := 0
	errorCount := 0

	for _, entry := range entries {
		if entry.ModTime.After(cutoff) {
			continue
		}
		if _, ok := referenced[entry.Ref]; ok && !entry.Partial {
			continue
		}

		if err := t.mirror.Remove(entry.Ref); err != nil {
			slog.Warn("Failed to remove unreferenced media", "name", entry.Name, "error", err)
			errorCount++
			continue
		}

		slog.Debug("Unreferenced media removed", "name", entry.Name, "partial", entry.Partial)
		removed++
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"files", len(entries),
		"removed", removed,
		"errors", errorCount)

	return nil
}
