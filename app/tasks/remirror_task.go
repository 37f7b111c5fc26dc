package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/tweetshelf/app/database"
)

// RemirrorTask retries mirroring for posts that still point at remote media.
type RemirrorTask struct {
	Task
	postRepo database.PostRepository
	mirror   MediaStore
}

func NewRemirrorTask(postRepo database.PostRepository, mirror MediaStore) *RemirrorTask {
	return &RemirrorTask{
		Task:     NewTask(TaskTypeRemirrorMedia, "all"),
		postRepo: postRepo,
		mirror:   mirror,
	}
}

func (t *RemirrorTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	posts, err := t.postRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list posts: %w", err)
	}

	checked := 0
	updated := 0
	errorCount := 0

	for _, post := range posts {
		if !t.hasRemote(post.MediaURLs) {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		checked++
		refs := t.mirror.RunAll(ctx, post.MediaURLs)

		mirrored := 0
		for i := range refs {
			if refs[i] != post.MediaURLs[i] {
				mirrored++
			}
		}
		if mirrored == 0 {
			continue
		}

		if err := t.postRepo.UpdateMediaURLs(ctx, post.ID, refs); err != nil {
			slog.Error("Failed to update media references", "post_id", post.ID, "error", err)
			errorCount++
			continue
		}

		slog.Debug("Media re-mirrored", "post_id", post.ID, "mirrored", mirrored)
		updated++
	}

	slog.Info("Task completed",
		"type", t.GetType(),
		"duration", t.GetDuration(),
		"checked", checked,
		"updated", updated,
		"errors", errorCount)

	return nil
}

func (t *RemirrorTask) hasRemote(refs []string) bool {
	for _, ref := range refs {
		if !t.mirror.IsLocal(ref) {
			return true
		}
	}
	return false
}
