package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/fpl-data-pipeline/internal/domain/rawdata"
)

// Unchanged payloads (same hash) are left untouched.
const upsertRawPayloadQuery = `INSERT INTO raw_data_payloads (source, entity_type, entity_key, payload, payload_hash)
VALUES (:source, :entity_type, :entity_key, :payload, :payload_hash)
ON CONFLICT (source, entity_type, entity_key)
DO UPDATE SET
    payload = EXCLUDED.payload,
    payload_hash = EXCLUDED.payload_hash,
    ingested_at = NOW()
WHERE raw_data_payloads.payload_hash IS DISTINCT FROM EXCLUDED.payload_hash`

type RawDataRepository struct {
	db *sqlx.DB
}

func NewRawDataRepository(db *sqlx.DB) *RawDataRepository {
	return &RawDataRepository{db: db}
}

func (r *RawDataRepository) UpsertMany(ctx context.Context, items []rawdata.Payload) error {
	models := toRawPayloadModels(items)
	if len(models) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert raw payloads: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, model := range models {
		if _, err := tx.NamedExecContext(ctx, upsertRawPayloadQuery, model); err != nil {
			return fmt.Errorf("upsert raw payload entity=%s key=%s: %w", model.EntityType, model.EntityKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert raw payloads tx: %w", err)
	}
	return nil
}

type rawDataPayloadModel struct {
	Source      string `db:"source"`
	EntityType  string `db:"entity_type"`
	EntityKey   string `db:"entity_key"`
	Payload     string `db:"payload"`
	PayloadHash string `db:"payload_hash"`
}

// toRawPayloadModels drops payloads without a key or body and keeps the last
// payload per (source, entity_type, entity_key), in first-seen order.
func toRawPayloadModels(items []rawdata.Payload) []rawDataPayloadModel {
	out := make([]rawDataPayloadModel, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.Source == "" || item.EntityType == "" || item.EntityKey == "" || item.PayloadJSON == "" {
			continue
		}
		model := rawDataPayloadModel{
			Source:      item.Source,
			EntityType:  item.EntityType,
			EntityKey:   item.EntityKey,
			Payload:     item.PayloadJSON,
			PayloadHash: item.PayloadHash,
		}
		if model.PayloadHash == "" {
			model.PayloadHash = rawdata.Hash([]byte(item.PayloadJSON))
		}

		key := item.Source + "\x00" + item.EntityType + "\x00" + item.EntityKey
		if idx, ok := index[key]; ok {
			out[idx] = model
			continue
		}
		index[key] = len(out)
		out = append(out, model)
	}
	return out
}
