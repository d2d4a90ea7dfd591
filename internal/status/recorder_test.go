package status

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/amaumene/torboxarr/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderPersistsEntriesAndStatus(t *testing.T) {
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "status.db"))
	require.NoError(t, err)
	defer db.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	rec := NewRecorder(db, logger)

	item := &models.DownloadItem{Name: "Movie.2020.1080p"}
	require.NoError(t, db.CreateDownload(item))

	rec.ActionStart(item, "starting")
	rec.ActionError(item, "boom")
	rec.Warn(Entry{Source: "arr"}, "unattached")

	stored, err := db.GetDownload(item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinishError, stored.LocalStatus)

	logs, err := db.GetLogsByDownload(item.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.LogInfo, logs[0].Level)
	assert.Equal(t, "actions", logs[0].Source)
	assert.Equal(t, models.LogError, logs[1].Level)
	assert.Equal(t, "boom", logs[1].Message)
}

func TestDeduplicatedRecorderPersistsRepeatsOnce(t *testing.T) {
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "status.db"))
	require.NoError(t, err)
	defer db.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	rec := NewRecorder(db, logger).Deduplicated(time.Hour)

	item := &models.DownloadItem{Name: "Stuck"}
	other := &models.DownloadItem{Name: "Other"}
	require.NoError(t, db.CreateDownload(item))
	require.NoError(t, db.CreateDownload(other))

	for i := 0; i < 3; i++ {
		rec.Error(Entry{Source: "actions", Download: item}, "Source file /dl/a.bin is missing")
		rec.Error(Entry{Source: "actions", Download: other}, "Source file /dl/a.bin is missing")
	}
	rec.Warn(Entry{Source: "actions", Download: item}, "Source file /dl/a.bin is missing")

	logs, err := db.GetLogsByDownload(item.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 2, "one entry per level and message")
	logs, err = db.GetLogsByDownload(other.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	rec.Forget(item.ID)
	rec.Error(Entry{Source: "actions", Download: item}, "Source file /dl/a.bin is missing")
	logs, err = db.GetLogsByDownload(item.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}
