package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

const auditTable = "sys_audit"

// CompressionAlgo records how AuditEntry.Changes was stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// Change sets above this size go to changes_compressed instead of the JSONB column.
const compressAbove = 10 << 10

// AuditEntry is one change to a stock item: who, which request, which columns.
type AuditEntry struct {
	ID                id.ID              `db:"id" json:"id"`
	EntityType        string             `db:"entity_type" json:"entityType"`
	EntityID          id.ID              `db:"entity_id" json:"entityId"`
	Action            domain.AuditAction `db:"action" json:"action"`
	Actor             string             `db:"actor" json:"actor"`
	RequestID         string             `db:"request_id" json:"requestId,omitempty"`
	Changes           json.RawMessage    `db:"changes" json:"changes"`
	ChangesCompressed []byte             `db:"changes_compressed" json:"-"`
	CompressionAlgo   CompressionAlgo    `db:"compression_algo" json:"-"`
	CreatedAt         time.Time          `db:"created_at" json:"createdAt"`
}

var auditColumns = ExtractDBColumns[AuditEntry]()

// FieldChange is the before and after value of one column.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

var _ domain.Auditor = (*AuditService)(nil)

// AuditService implements domain.Auditor on sys_audit. Entries join the
// caller's transaction when there is one.
type AuditService struct {
	txm *TxManager
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewAuditService(txm *TxManager) (*AuditService, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &AuditService{txm: txm, enc: enc, dec: dec}, nil
}

// Record diffs the db columns of before and after (either may be nil) and
// stores the result. Nothing is written when no column changed.
func (s *AuditService) Record(ctx context.Context, entityType string, entityID id.ID, action domain.AuditAction, before, after any) error {
	changes := Diff(StructToMap(before), StructToMap(after))
	if len(changes) == 0 {
		return nil
	}
	raw, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	return s.Log(ctx, AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    raw,
	})
}

// Log writes entry. Missing id, actor, request id and time come from ctx and the clock.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.Actor == "" {
		entry.Actor = appctx.GetActorSubject(ctx)
	}
	if entry.RequestID == "" {
		entry.RequestID = appctx.GetRequestID(ctx)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.deflate(&entry)

	sql, args, err := Builder().Insert(auditTable).SetMap(StructToMap(entry)).ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}
	if _, err := s.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History lists the newest entries of one entity, changes decompressed.
func (s *AuditService) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	sql, args, err := Builder().Select(auditColumns...).From(auditTable).
		Where(squirrel.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit query: %w", err)
	}

	entries := []AuditEntry{}
	if err := pgxscan.Select(ctx, s.txm.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	for i := range entries {
		if err := s.inflate(&entries[i]); err != nil {
			return nil, fmt.Errorf("audit entry %s: %w", entries[i].ID, err)
		}
	}
	return entries, nil
}

func (s *AuditService) deflate(e *AuditEntry) {
	e.CompressionAlgo = CompressionNone
	if len(e.Changes) <= compressAbove {
		return
	}
	e.ChangesCompressed = s.enc.EncodeAll(e.Changes, nil)
	e.Changes = nil
	e.CompressionAlgo = CompressionZstd
}

func (s *AuditService) inflate(e *AuditEntry) error {
	if e.CompressionAlgo != CompressionZstd || len(e.ChangesCompressed) == 0 {
		return nil
	}
	raw, err := s.dec.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	e.Changes, e.ChangesCompressed = raw, nil
	return nil
}

// Diff reports every column whose printed value differs between the two
// states. A column missing on one side shows as nil there.
func Diff(before, after map[string]any) map[string]FieldChange {
	changes := map[string]FieldChange{}
	for col, newVal := range after {
		oldVal, ok := before[col]
		if !ok || fmt.Sprint(oldVal) != fmt.Sprint(newVal) {
			changes[col] = FieldChange{Old: oldVal, New: newVal}
		}
	}
	for col, oldVal := range before {
		if _, ok := after[col]; !ok {
			changes[col] = FieldChange{Old: oldVal}
		}
	}
	return changes
}
