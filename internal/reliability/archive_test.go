package reliability

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qrepeater/internal/events"
	"github.com/aristath/qrepeater/internal/modules/sweep"
)

type memUploader struct {
	objects map[string][]byte
	meta    map[string]map[string]string
	sizes   map[string]int64
	err     error
}

func newMemUploader() *memUploader {
	return &memUploader{
		objects: make(map[string][]byte),
		meta:    make(map[string]map[string]string),
		sizes:   make(map[string]int64),
	}
}

func (u *memUploader) Bucket() string { return "test-bucket" }

func (u *memUploader) Upload(_ context.Context, obj Object) error {
	if u.err != nil {
		return u.err
	}
	raw, err := io.ReadAll(obj.Body)
	if err != nil {
		return err
	}
	u.objects[obj.Key] = raw
	u.meta[obj.Key] = obj.Metadata
	u.sizes[obj.Key] = obj.Size
	return nil
}

type memSweeps map[string]*sweep.Sweep

func (m memSweeps) Get(_ context.Context, id string) (*sweep.Sweep, error) {
	s, ok := m[id]
	if !ok {
		return nil, sweep.ErrNotFound
	}
	return s, nil
}

func storedSweep() *sweep.Sweep {
	done := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &sweep.Sweep{
		ID:          "sw-1",
		CreatedAt:   done.Add(-time.Minute),
		CompletedAt: &done,
		Plan:        sweep.DefaultPlan(sweep.KindLinkLength),
		Status:      sweep.StatusCompleted,
		Points: []sweep.Point{
			{Index: 0, Value: 50, Variant: sweep.VariantSymmetric, Seed: 7, FinalFidelity: 0.6, TimeMean: 0.01, MetricValue: 0.01},
			{Index: 1, Value: 100, Variant: sweep.VariantSymmetric, Seed: 8, FinalFidelity: 0.6, TimeMean: 0.05, MetricValue: 0.05},
		},
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "sweeps/abc.json.gz", Key("abc"))
}

func TestArchiveService_Export(t *testing.T) {
	uploader := newMemUploader()
	bus := events.NewBus(zerolog.Nop())
	sub, cancel := bus.Subscribe(events.ArchiveUploaded)
	defer cancel()

	svc := NewArchiveService(memSweeps{"sw-1": storedSweep()}, uploader, bus, zerolog.Nop())
	require.NoError(t, svc.Export(context.Background(), "sw-1"))

	raw, ok := uploader.objects["sweeps/sw-1.json.gz"]
	require.True(t, ok)
	assert.Equal(t, int64(len(raw)), uploader.sizes["sweeps/sw-1.json.gz"])

	gz, err := gzip.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	doc, err := io.ReadAll(gz)
	require.NoError(t, err)

	var archive Archive
	require.NoError(t, json.Unmarshal(doc, &archive))
	assert.Equal(t, ArchiveFormatVersion, archive.FormatVersion)
	require.NotNil(t, archive.Sweep)
	assert.Equal(t, "sw-1", archive.Sweep.ID)
	assert.Len(t, archive.Sweep.Points, 2)
	assert.Equal(t, 100.0, archive.Sweep.Points[1].Value)

	sum := sha256.Sum256(doc)
	meta := uploader.meta["sweeps/sw-1.json.gz"]
	assert.Equal(t, hex.EncodeToString(sum[:]), meta["sha256"])
	assert.Equal(t, "completed", meta["status"])
	assert.Equal(t, "link_length", meta["kind"])

	select {
	case ev := <-sub:
		data, ok := ev.Data.(*events.ArchiveUploadedData)
		require.True(t, ok)
		assert.Equal(t, "sw-1", data.SweepID)
		assert.Equal(t, "test-bucket", data.Bucket)
		assert.Equal(t, "sweeps/sw-1.json.gz", data.Key)
	case <-time.After(time.Second):
		t.Fatal("no archive event")
	}
}

func TestArchiveService_ExportUnknownSweep(t *testing.T) {
	uploader := newMemUploader()
	svc := NewArchiveService(memSweeps{}, uploader, nil, zerolog.Nop())

	err := svc.Export(context.Background(), "missing")
	assert.True(t, errors.Is(err, sweep.ErrNotFound))
	assert.Empty(t, uploader.objects)
}

func TestArchiveService_UploadFailure(t *testing.T) {
	uploader := newMemUploader()
	uploader.err = errors.New("connection reset")
	svc := NewArchiveService(memSweeps{"sw-1": storedSweep()}, uploader, nil, zerolog.Nop())

	err := svc.Export(context.Background(), "sw-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweeps/sw-1.json.gz")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestNewS3Uploader(t *testing.T) {
	t.Run("requires bucket", func(t *testing.T) {
		_, err := NewS3Uploader(context.Background(), S3Config{})
		assert.Error(t, err)
	})

	t.Run("static credentials and custom endpoint", func(t *testing.T) {
		u, err := NewS3Uploader(context.Background(), S3Config{
			Endpoint:  "https://account.r2.cloudflarestorage.com",
			Bucket:    "results",
			AccessKey: "key",
			SecretKey: "secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "results", u.Bucket())
	})
}
