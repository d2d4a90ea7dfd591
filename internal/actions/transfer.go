package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/amaumene/torboxarr/internal/metrics"
	"github.com/amaumene/torboxarr/internal/models"
	"github.com/amaumene/torboxarr/internal/status"
	"github.com/sirupsen/logrus"
)

// Transfer copies or moves the files of a plan to their targets
type Transfer struct {
	recorder *status.Recorder
	logger   *logrus.Logger
}

// NewTransfer creates a transfer stage
func NewTransfer(recorder *status.Recorder, logger *logrus.Logger) *Transfer {
	return &Transfer{recorder: recorder, logger: logger}
}

// Run transfers every placement according to the category action. An
// existing target is left alone; under Move the staged source is removed.
func (t *Transfer) Run(ctx context.Context, plan Plan) error {
	mode := plan.Category.Action
	if mode == models.ActionNothing {
		return nil
	}

	for _, p := range plan.Files {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := os.Stat(p.Target); err == nil {
			t.recorder.Warn(status.Entry{Source: "actions", Download: plan.Download},
				fmt.Sprintf("Target %s already exists", p.Target))
			if mode == models.ActionMove {
				if err := os.Remove(p.Source); err != nil && !errors.Is(err, os.ErrNotExist) {
					t.logger.WithError(err).WithField("source", p.Source).Warn("Failed to remove source of existing target")
				}
			}
			metrics.FilesTransferred.WithLabelValues(string(mode), "exists").Inc()
			continue
		}

		t.recorder.ActionProgress(plan.Download, fmt.Sprintf("%s %s to %s", verb(mode), p.Source, p.Target))

		var err error
		if mode == models.ActionMove {
			err = moveFile(p.Source, p.Target)
		} else {
			err = copyFile(p.Source, p.Target)
		}
		if err != nil {
			metrics.FilesTransferred.WithLabelValues(string(mode), "error").Inc()
			return fmt.Errorf("failed to transfer %s: %w", p.Source, err)
		}

		metrics.FilesTransferred.WithLabelValues(string(mode), "ok").Inc()
		t.recorder.ActionProgress(plan.Download, fmt.Sprintf("%s done", filepath.Base(p.Target)))
	}

	return nil
}

func verb(mode models.ActionKind) string {
	if mode == models.ActionMove {
		return "Moving"
	}
	return "Copying"
}

// moveFile renames src to dst, falling back to copy and delete across devices
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile writes to a temporary name first so a partial copy never looks like a finished target
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	tmp := dst + ".part"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
