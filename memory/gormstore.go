package memory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Modern-Method/Ethos/internal/database"
	"github.com/Modern-Method/Ethos/types"
)

// GormStore is the relational-database-backed Store implementation,
// covering Session, SessionEvent, EpisodicTrace, SemanticFact,
// MemoryVector and WorkflowMemory over Postgres or SQLite.
type GormStore struct {
	pool   *database.PoolManager
	logger *zap.Logger
}

// NewGormStore wraps an already-configured pool.
func NewGormStore(pool *database.PoolManager, logger *zap.Logger) *GormStore {
	return &GormStore{pool: pool, logger: logger.With(zap.String("component", "store"))}
}

func storeErr(msg string, cause error) *types.Error {
	return types.NewError(types.ErrStore, msg).WithCause(cause).WithRetryable(true)
}

func (s *GormStore) TouchSession(ctx context.Context, sessionKey, agentID, channelTag string) error {
	now := time.Now().UTC()
	var existing Session
	err := s.pool.DB().WithContext(ctx).Where("session_key = ?", sessionKey).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		sess := &Session{
			ID:           uuid.New(),
			SessionKey:   sessionKey,
			AgentID:      agentID,
			ChannelTag:   channelTag,
			StartedAt:    now,
			LastActiveAt: now,
			MessageCount: 1,
		}
		if err := s.pool.DB().WithContext(ctx).Create(sess).Error; err != nil {
			return storeErr("create session", err)
		}
		return nil
	}
	if err != nil {
		return storeErr("lookup session", err)
	}
	existing.LastActiveAt = now
	existing.MessageCount++
	if err := s.pool.DB().WithContext(ctx).Save(&existing).Error; err != nil {
		return storeErr("update session", err)
	}
	return nil
}

func (s *GormStore) InsertEventAndVector(ctx context.Context, event *SessionEvent, vector *MemoryVector) (uuid.UUID, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if vector.ID == uuid.Nil {
		vector.ID = uuid.New()
	}
	vector.SourceID = event.ID

	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		if err := tx.Create(vector).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, storeErr("insert event and vector", err)
	}
	return vector.ID, nil
}

func (s *GormStore) GetVector(ctx context.Context, id uuid.UUID) (*MemoryVector, error) {
	var v MemoryVector
	err := s.pool.DB().WithContext(ctx).First(&v, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrNotFound, "vector not found").WithCause(err)
	}
	if err != nil {
		return nil, storeErr("get vector", err)
	}
	return &v, nil
}

func (s *GormStore) SetVectorEmbedding(ctx context.Context, id uuid.UUID, embedding Embedding, model string) (bool, error) {
	var updated bool
	err := s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		var v MemoryVector
		if err := tx.First(&v, "id = ?", id).Error; err != nil {
			return err
		}
		if v.Embedding != nil {
			return nil // already embedded: embed_by_id is idempotent
		}
		v.Embedding = &embedding
		v.Dimension = len(embedding)
		v.Model = model
		if err := tx.Save(&v).Error; err != nil {
			return err
		}
		updated = true
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, types.NewError(types.ErrNotFound, "vector not found").WithCause(err)
	}
	if err != nil {
		return false, storeErr("set vector embedding", err)
	}
	return updated, nil
}

func (s *GormStore) SearchableVectors(ctx context.Context, sourceTypes []SourceType, limit int) ([]*MemoryVector, error) {
	q := s.pool.DB().WithContext(ctx).
		Where("pruned = ? AND embedding IS NOT NULL", false)
	if len(sourceTypes) > 0 {
		q = q.Where("source_type IN ?", sourceTypes)
	}
	var rows []*MemoryVector
	if err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, storeErr("searchable vectors", err)
	}
	return rows, nil
}

func (s *GormStore) GetVectorBySource(ctx context.Context, sourceType SourceType, sourceID uuid.UUID) (*MemoryVector, error) {
	var v MemoryVector
	err := s.pool.DB().WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get vector by source", err)
	}
	return &v, nil
}

func (s *GormStore) InsertEpisode(ctx context.Context, ep *EpisodicTrace) error {
	if ep.ID == uuid.Nil {
		ep.ID = uuid.New()
	}
	if err := s.pool.DB().WithContext(ctx).Create(ep).Error; err != nil {
		return storeErr("insert episode", err)
	}
	return nil
}

// candidateScanSQL and candidateScanArgs mirror CandidateScanPredicate
// (extraction.go) as a SQL WHERE fragment, so the LIMIT in
// UnconsolidatedCandidates applies to the already-qualifying set instead
// of to the oldest-N unconsolidated rows regardless of whether they
// qualify — otherwise a backlog of non-qualifying rows past the limit
// starves newer qualifying episodes out of the candidate set forever.
func candidateScanSQL() (string, []any) {
	phrases := make([]string, 0, len(decisionPhrases)+len(preferencePhrases)+len(explicitMarkers))
	phrases = append(phrases, decisionPhrases...)
	phrases = append(phrases, preferencePhrases...)
	phrases = append(phrases, explicitMarkers...)

	clauses := []string{"importance >= ?", "retrieval_count >= ?"}
	args := []any{candidateCutoffImportance, 5}
	for _, p := range phrases {
		clauses = append(clauses, "LOWER(content) LIKE ?")
		args = append(args, "%"+strings.ToLower(p)+"%")
	}
	return strings.Join(clauses, " OR "), args
}

func (s *GormStore) UnconsolidatedCandidates(ctx context.Context, limit int) ([]*EpisodicTrace, error) {
	sql, args := candidateScanSQL()
	var rows []*EpisodicTrace
	err := s.pool.DB().WithContext(ctx).
		Where("consolidated_at IS NULL AND pruned = ?", false).
		Where(sql, args...).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, storeErr("unconsolidated candidates", err)
	}
	return rows, nil
}

func (s *GormStore) MarkConsolidated(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	err := s.pool.DB().WithContext(ctx).Model(&EpisodicTrace{}).
		Where("id = ?", id).
		Update("consolidated_at", now).Error
	if err != nil {
		return storeErr("mark consolidated", err)
	}
	return nil
}

func (s *GormStore) GetEpisode(ctx context.Context, id uuid.UUID) (*EpisodicTrace, error) {
	var ep EpisodicTrace
	err := s.pool.DB().WithContext(ctx).First(&ep, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrNotFound, "episode not found").WithCause(err)
	}
	if err != nil {
		return nil, storeErr("get episode", err)
	}
	return &ep, nil
}

func (s *GormStore) ActiveFactsBySubjectPredicate(ctx context.Context, subject, predicate string) ([]*SemanticFact, error) {
	var rows []*SemanticFact
	err := s.pool.DB().WithContext(ctx).
		Where("subject = ? AND predicate = ? AND pruned = ? AND superseded_by IS NULL", subject, predicate, false).
		Find(&rows).Error
	if err != nil {
		return nil, storeErr("active facts by subject/predicate", err)
	}
	return rows, nil
}

func (s *GormStore) InsertFact(ctx context.Context, fact *SemanticFact) error {
	if fact.ID == uuid.Nil {
		fact.ID = uuid.New()
	}
	if err := s.pool.DB().WithContext(ctx).Create(fact).Error; err != nil {
		return storeErr("insert fact", err)
	}
	return nil
}

func (s *GormStore) UpdateFact(ctx context.Context, fact *SemanticFact) error {
	if err := s.pool.DB().WithContext(ctx).Save(fact).Error; err != nil {
		return storeErr("update fact", err)
	}
	return nil
}

func (s *GormStore) GetFact(ctx context.Context, id uuid.UUID) (*SemanticFact, error) {
	var f SemanticFact
	err := s.pool.DB().WithContext(ctx).First(&f, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrNotFound, "fact not found").WithCause(err)
	}
	if err != nil {
		return nil, storeErr("get fact", err)
	}
	return &f, nil
}

func (s *GormStore) BatchVectors(ctx context.Context, offset, limit int) ([]*MemoryVector, error) {
	var rows []*MemoryVector
	err := s.pool.DB().WithContext(ctx).
		Where("pruned = ?", false).
		Order("id").
		Offset(offset).Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, storeErr("batch vectors", err)
	}
	return rows, nil
}

func (s *GormStore) BatchEpisodes(ctx context.Context, offset, limit int) ([]*EpisodicTrace, error) {
	var rows []*EpisodicTrace
	err := s.pool.DB().WithContext(ctx).
		Where("pruned = ?", false).
		Order("id").
		Offset(offset).Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, storeErr("batch episodes", err)
	}
	return rows, nil
}

func (s *GormStore) BatchActiveFacts(ctx context.Context, offset, limit int) ([]*SemanticFact, error) {
	var rows []*SemanticFact
	err := s.pool.DB().WithContext(ctx).
		Where("pruned = ? AND superseded_by IS NULL", false).
		Order("id").
		Offset(offset).Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, storeErr("batch active facts", err)
	}
	return rows, nil
}

func (s *GormStore) UpdateVector(ctx context.Context, v *MemoryVector) error {
	if err := s.pool.DB().WithContext(ctx).Save(v).Error; err != nil {
		return storeErr("update vector", err)
	}
	return nil
}

func (s *GormStore) UpdateEpisode(ctx context.Context, ep *EpisodicTrace) error {
	if err := s.pool.DB().WithContext(ctx).Save(ep).Error; err != nil {
		return storeErr("update episode", err)
	}
	return nil
}

func (s *GormStore) RecentEventActivity(ctx context.Context, within time.Duration) (bool, error) {
	cutoff := time.Now().UTC().Add(-within)
	var count int64
	err := s.pool.DB().WithContext(ctx).Model(&SessionEvent{}).
		Where("created_at >= ?", cutoff).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, storeErr("recent event activity", err)
	}
	return count > 0, nil
}

func (s *GormStore) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.DB().WithContext(ctx).Model(&SessionEvent{}).Count(&count).Error; err != nil {
		return 0, storeErr("count events", err)
	}
	return count, nil
}

func (s *GormStore) CountVectors(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.DB().WithContext(ctx).Model(&MemoryVector{}).
		Where("source_type = ?", SourceRaw).
		Count(&count).Error; err != nil {
		return 0, storeErr("count vectors", err)
	}
	return count, nil
}

func (s *GormStore) GetWorkflowMemory(ctx context.Context, sessionKey, key string) (*WorkflowMemory, error) {
	var wf WorkflowMemory
	err := s.pool.DB().WithContext(ctx).
		Where("session_key = ? AND key = ?", sessionKey, key).
		First(&wf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrNotFound, "workflow memory not found").WithCause(err)
	}
	if err != nil {
		return nil, storeErr("get workflow memory", err)
	}
	return &wf, nil
}

func (s *GormStore) SetWorkflowMemory(ctx context.Context, sessionKey, key string, value map[string]any) (*WorkflowMemory, error) {
	var wf WorkflowMemory
	err := s.pool.DB().WithContext(ctx).
		Where("session_key = ? AND key = ?", sessionKey, key).
		First(&wf).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		wf = WorkflowMemory{ID: uuid.New(), SessionKey: sessionKey, Key: key, Value: datatypes.JSONMap(value)}
		if err := s.pool.DB().WithContext(ctx).Create(&wf).Error; err != nil {
			return nil, storeErr("create workflow memory", err)
		}
	case err != nil:
		return nil, storeErr("get workflow memory", err)
	default:
		if err := s.pool.DB().WithContext(ctx).Model(&wf).Update("value", datatypes.JSONMap(value)).Error; err != nil {
			return nil, storeErr("update workflow memory", err)
		}
		wf.Value = datatypes.JSONMap(value)
	}
	return &wf, nil
}

func (s *GormStore) Close() error {
	return s.pool.Close()
}

// AutoMigrateAll is used by the sqlite-backed test path where a
// migration runner is overkill; Postgres/production deployments use
// internal/migration instead.
func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&Session{},
		&SessionEvent{},
		&EpisodicTrace{},
		&SemanticFact{},
		&MemoryVector{},
		&WorkflowMemory{},
	)
}

var _ Store = (*GormStore)(nil)
