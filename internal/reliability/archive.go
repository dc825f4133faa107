// Package reliability exports finished sweeps to object storage.
package reliability

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/qrepeater/internal/events"
	"github.com/aristath/qrepeater/internal/modules/sweep"
)

// ArchiveFormatVersion is written into every archive document.
const ArchiveFormatVersion = 1

// Object is one upload.
type Object struct {
	Key             string
	Body            io.Reader
	Size            int64
	ContentType     string
	ContentEncoding string
	Metadata        map[string]string
}

// Uploader stores objects in a bucket.
type Uploader interface {
	Upload(ctx context.Context, obj Object) error
	Bucket() string
}

// SweepStore is the read side of the sweep repository.
type SweepStore interface {
	Get(ctx context.Context, id string) (*sweep.Sweep, error)
}

// Archive is the document stored for one sweep.
type Archive struct {
	FormatVersion int          `json:"format_version"`
	ExportedAt    time.Time    `json:"exported_at"`
	Sweep         *sweep.Sweep `json:"sweep"`
}

// ArchiveService uploads sweeps as gzipped JSON documents under
// sweeps/<id>.json.gz.
type ArchiveService struct {
	sweeps   SweepStore
	uploader Uploader
	bus      *events.Bus
	log      zerolog.Logger
}

// NewArchiveService creates a new archive service
func NewArchiveService(sweeps SweepStore, uploader Uploader, bus *events.Bus, log zerolog.Logger) *ArchiveService {
	return &ArchiveService{
		sweeps:   sweeps,
		uploader: uploader,
		bus:      bus,
		log:      log.With().Str("service", "archive").Logger(),
	}
}

// Key returns the object key of a sweep archive
func Key(sweepID string) string {
	return "sweeps/" + sweepID + ".json.gz"
}

// Export uploads the stored sweep sweepID. Exporting again overwrites the
// previous archive.
func (s *ArchiveService) Export(ctx context.Context, sweepID string) error {
	startTime := time.Now()

	sw, err := s.sweeps.Get(ctx, sweepID)
	if err != nil {
		return err
	}

	doc, err := json.Marshal(Archive{
		FormatVersion: ArchiveFormatVersion,
		ExportedAt:    time.Now().UTC(),
		Sweep:         sw,
	})
	if err != nil {
		return fmt.Errorf("failed to encode sweep %s: %w", sweepID, err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(doc); err != nil {
		return fmt.Errorf("failed to compress sweep %s: %w", sweepID, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to compress sweep %s: %w", sweepID, err)
	}

	sum := sha256.Sum256(doc)
	key := Key(sweepID)
	size := int64(buf.Len())

	err = s.uploader.Upload(ctx, Object{
		Key:             key,
		Body:            &buf,
		Size:            size,
		ContentType:     "application/json",
		ContentEncoding: "gzip",
		Metadata: map[string]string{
			"sha256": hex.EncodeToString(sum[:]),
			"status": string(sw.Status),
			"kind":   string(sw.Plan.Kind),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	s.bus.Emit("archive", &events.ArchiveUploadedData{
		SweepID: sweepID,
		Bucket:  s.uploader.Bucket(),
		Key:     key,
		Bytes:   size,
	})

	s.log.Info().
		Str("sweep_id", sweepID).
		Str("key", key).
		Int64("bytes", size).
		Dur("duration", time.Since(startTime)).
		Msg("Sweep archived")
	return nil
}
