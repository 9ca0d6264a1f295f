package recorder

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	pushdb "pushgate/internal/push/database"
	"pushgate/internal/push/model"
)

// DefaultPreviewLimit bounds the stored alert content preview.
const DefaultPreviewLimit = 1000

// Recorder appends audit rows for every (identifier, rule) observation.
// Appends are best-effort: a failed write is logged and swallowed so that
// recording can never block routing.
type Recorder interface {
	Append(ctx context.Context, instance, ruleName, rawPayload string, extracted []string) *model.AlertRecord
}

// NewRecord builds the audit row with a bounded preview of the payload.
func NewRecord(instance, ruleName, rawPayload string, extracted []string, previewLimit int) *model.AlertRecord {
	if previewLimit <= 0 {
		previewLimit = DefaultPreviewLimit
	}
	preview := rawPayload
	if len(preview) > previewLimit {
		// back off to a rune boundary so CJK payloads never get split mid-rune
		cut := previewLimit
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}
	return &model.AlertRecord{
		ID:              uuid.NewString(),
		Instance:        instance,
		RuleName:        ruleName,
		Content:         preview,
		RawData:         rawPayload,
		ExtractedValues: append([]string(nil), extracted...),
		AlertTime:       time.Now(),
		Processed:       true,
	}
}

// PgRecorder persists records through RecordRepo.
type PgRecorder struct {
	repo         *pushdb.RecordRepo
	previewLimit int
}

func NewPgRecorder(repo *pushdb.RecordRepo, previewLimit int) *PgRecorder {
	return &PgRecorder{repo: repo, previewLimit: previewLimit}
}

func (r *PgRecorder) Append(ctx context.Context, instance, ruleName, rawPayload string, extracted []string) *model.AlertRecord {
	rec := NewRecord(instance, ruleName, rawPayload, extracted, r.previewLimit)
	if err := r.repo.InsertRecord(ctx, rec); err != nil {
		log.Error().Err(err).Str("instance", instance).Str("rule", ruleName).Msg("alert record write failed, continuing")
	}
	return rec
}

// MemoryRecorder keeps records in a slice, for tests and DB-less runs.
type MemoryRecorder struct {
	mu           sync.Mutex
	records      []model.AlertRecord
	previewLimit int
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{previewLimit: DefaultPreviewLimit}
}

func (r *MemoryRecorder) Append(_ context.Context, instance, ruleName, rawPayload string, extracted []string) *model.AlertRecord {
	rec := NewRecord(instance, ruleName, rawPayload, extracted, r.previewLimit)
	r.mu.Lock()
	r.records = append(r.records, *rec)
	r.mu.Unlock()
	return rec
}

func (r *MemoryRecorder) Records() []model.AlertRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.AlertRecord(nil), r.records...)
}
