package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JustJay7/ojv-scraper/internal/scraper"
	"github.com/JustJay7/ojv-scraper/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrCommitFailed means no part of an upsert batch was persisted.
	ErrCommitFailed = errors.New("upsert transaction failed")
	ErrNotFound     = errors.New("case not found")
)

// mutableColumns are rewritten on every sighting of an existing rol.
var mutableColumns = []string{
	"caratulado",
	"tribunal",
	"fecha_ingreso",
	"estado",
	"competencia",
	"historial_movimientos",
	"fecha_actualizacion",
}

// UpsertResult counts what one batch did.
type UpsertResult struct {
	Created int `json:"causas_nuevas"`
	Updated int `json:"causas_actualizadas"`
	Skipped int `json:"causas_omitidas"`
}

// Store reconciles scraped cases into the causas table.
type Store struct {
	db     *gorm.DB
	logger *logger.Logger
	now    func() time.Time
}

func NewStore(db *gorm.DB, log *logger.Logger) *Store {
	return &Store{db: db, logger: log, now: time.Now}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Upsert writes every case in one transaction. Records that fail on their
// own are rolled back to a savepoint and skipped; the batch only fails when
// the transaction itself cannot be committed, in which case nothing is kept.
func (s *Store) Upsert(ctx context.Context, cases []scraper.Case) (UpsertResult, error) {
	var result UpsertResult
	if len(cases) == 0 {
		return result, nil
	}

	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, c := range cases {
			rol := c.Key()
			if rol == "" {
				s.logger.Warn("Skipping case without identifier", "index", i, "competencia", c.Competencia)
				result.Skipped++
				continue
			}

			savepoint := fmt.Sprintf("causa_%d", i)
			if err := tx.SavePoint(savepoint).Error; err != nil {
				return err
			}

			created, err := upsertOne(tx, recordFrom(c, now))
			if err != nil {
				s.logger.Error("Failed to store case", "rol", rol, "error", err)
				if err := tx.RollbackTo(savepoint).Error; err != nil {
					return err
				}
				result.Skipped++
				continue
			}

			if created {
				result.Created++
			} else {
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return UpsertResult{}, fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}

	s.logger.Info("Cases stored",
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped,
	)
	return result, nil
}

// upsertOne reports whether the rol was new. A concurrent insert of the same
// rol lands on the unique index and turns into an update.
func upsertOne(tx *gorm.DB, record CaseRecord) (bool, error) {
	var existing CaseRecord
	err := tx.Select("id").Where("rol = ?", record.Rol).Take(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "rol"}},
			DoUpdates: clause.AssignmentColumns(mutableColumns),
		}).Create(&record).Error
		return true, err
	case err != nil:
		return false, err
	}

	err = tx.Model(&CaseRecord{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
		"caratulado":            record.Caratulado,
		"tribunal":              record.Tribunal,
		"fecha_ingreso":         record.FechaIngreso,
		"estado":                record.Estado,
		"competencia":           record.Competencia,
		"historial_movimientos": record.HistorialMovimientos,
		"fecha_actualizacion":   record.FechaActualizacion,
	}).Error
	return false, err
}

func recordFrom(c scraper.Case, now time.Time) CaseRecord {
	history := MovementHistory(c.Movements())
	if history == nil {
		history = MovementHistory{}
	}
	return CaseRecord{
		Rol:                  c.Key(),
		Caratulado:           c.Caratulado,
		Tribunal:             c.Tribunal,
		FechaIngreso:         c.FechaIngreso,
		Estado:               c.Status(),
		Competencia:          string(c.Competencia),
		HistorialMovimientos: history,
		FechaCreacion:        now,
		FechaActualizacion:   now,
	}
}

// CaseFilter narrows List. Zero values match everything.
type CaseFilter struct {
	Competencia string
	Estado      string
	RolContains string
	Page        int
	Limit       int
}

// List returns one page of cases, most recently updated first, and the
// total number of matches.
func (s *Store) List(ctx context.Context, f CaseFilter) ([]CaseRecord, int64, error) {
	q := s.db.WithContext(ctx).Model(&CaseRecord{})
	if f.Competencia != "" {
		q = q.Where("competencia = ?", f.Competencia)
	}
	if f.Estado != "" {
		q = q.Where("estado = ?", f.Estado)
	}
	if f.RolContains != "" {
		q = q.Where("rol LIKE ?", "%"+f.RolContains+"%")
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		q = q.Offset((page - 1) * f.Limit).Limit(f.Limit)
	}

	var records []CaseRecord
	if err := q.Order("fecha_actualizacion DESC").Order("id").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *Store) Get(ctx context.Context, rol string) (*CaseRecord, error) {
	var record CaseRecord
	err := s.db.WithContext(ctx).Where("rol = ?", rol).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Stats summarizes the table for the status endpoint.
type Stats struct {
	Total               int64            `json:"total_causas"`
	PorCompetencia      map[string]int64 `json:"causas_por_competencia"`
	UltimaActualizacion *time.Time       `json:"ultima_actualizacion"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	db := s.db.WithContext(ctx)
	stats := Stats{PorCompetencia: map[string]int64{}}

	if err := db.Model(&CaseRecord{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	var groups []struct {
		Competencia string
		Total       int64
	}
	if err := db.Model(&CaseRecord{}).
		Select("competencia, COUNT(*) AS total").
		Group("competencia").
		Scan(&groups).Error; err != nil {
		return stats, err
	}
	for _, g := range groups {
		stats.PorCompetencia[g.Competencia] = g.Total
	}

	var latest CaseRecord
	err := db.Select("fecha_actualizacion").Order("fecha_actualizacion DESC").Take(&latest).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return stats, err
	default:
		stats.UltimaActualizacion = &latest.FechaActualizacion
	}
	return stats, nil
}

// LogScrape records a served scrape request. Failures are logged, not returned.
func (s *Store) LogScrape(ctx context.Context, entry *ScrapeLog) {
	if entry.QueryTime.IsZero() {
		entry.QueryTime = s.now()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		s.logger.Error("Failed to write scrape log", "kind", entry.Kind, "error", err)
	}
}

// RecentLogs returns the newest scrape log entries.
func (s *Store) RecentLogs(ctx context.Context, limit int) ([]ScrapeLog, error) {
	var logs []ScrapeLog
	err := s.db.WithContext(ctx).Order("query_time DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
