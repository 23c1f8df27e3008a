package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/JustJay7/ojv-scraper/internal/scraper"
	"github.com/JustJay7/ojv-scraper/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 = time.Date(2024, 3, 2, 12, 30, 0, 0, time.UTC)
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return openTestStore(t, ":memory:")
}

func openTestStore(t *testing.T, dsn string) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is its own database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, Migrate(db))
	s := NewStore(db, logger.Nop())
	s.now = func() time.Time { return t0 }
	return s
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		DriverName:           "postgres",
		Conn:                 db,
		PreferSimpleProtocol: true,
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	s := NewStore(gormDB, logger.Nop())
	s.now = func() time.Time { return t0 }
	return s, mock
}

func civilCase(rit, caratulado string) scraper.Case {
	return scraper.Case{CaseSummary: scraper.CaseSummary{
		Rit:            rit,
		Tribunal:       "1º Juzgado Civil de Santiago",
		Caratulado:     caratulado,
		FechaIngreso:   "01/03/2023",
		EstadoCuaderno: "Tramitación",
		Competencia:    scraper.Civil,
	}}
}

func countCases(t *testing.T, s *Store) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.db.Model(&CaseRecord{}).Count(&n).Error)
	return n
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.Upsert(ctx, []scraper.Case{civilCase("C-1-2023", "A/B"), civilCase("C-2-2023", "C/D")})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Created: 2}, res)

	s.now = func() time.Time { return t1 }
	res, err = s.Upsert(ctx, []scraper.Case{civilCase("C-1-2023", "A/B RECTIFICADO")})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Updated: 1}, res)

	got, err := s.Get(ctx, "C-1-2023")
	require.NoError(t, err)
	assert.Equal(t, "A/B RECTIFICADO", got.Caratulado)
	assert.Equal(t, "Tramitación", got.Estado)
	assert.Equal(t, "civil", got.Competencia)
	assert.True(t, got.FechaCreacion.Equal(t0), "creation time must not move")
	assert.True(t, got.FechaActualizacion.Equal(t1))

	other, err := s.Get(ctx, "C-2-2023")
	require.NoError(t, err)
	assert.True(t, other.FechaActualizacion.Equal(t0))
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	batch := []scraper.Case{civilCase("C-1-2023", "A/B"), civilCase("C-2-2023", "C/D")}

	_, err := s.Upsert(ctx, batch)
	require.NoError(t, err)
	res, err := s.Upsert(ctx, batch)
	require.NoError(t, err)

	assert.Equal(t, UpsertResult{Updated: 2}, res)
	assert.Equal(t, int64(2), countCases(t, s))
}

func TestUpsertKeysAndSkips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	withBoth := civilCase("C-9-2023", "X/Y")
	withBoth.Rol = "9-2023"
	family := scraper.Case{CaseSummary: scraper.CaseSummary{Rol: "F-5-2021", Estado: "Terminada", Competencia: scraper.Family}}
	anonymous := scraper.Case{CaseSummary: scraper.CaseSummary{Caratulado: "SIN ROL"}}

	res, err := s.Upsert(ctx, []scraper.Case{withBoth, family, anonymous})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Created: 2, Skipped: 1}, res)

	_, err = s.Get(ctx, "C-9-2023")
	assert.NoError(t, err)
	_, err = s.Get(ctx, "9-2023")
	assert.ErrorIs(t, err, ErrNotFound)

	fam, err := s.Get(ctx, "F-5-2021")
	require.NoError(t, err)
	assert.Equal(t, "Terminada", fam.Estado)
}

func TestUpsertStoresMovementHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := civilCase("C-3-2023", "A/B")
	c.Merge(&scraper.CaseDetail{HistorialMovimientos: []scraper.Movement{
		{Fecha: "01/03/2023", Descripcion: "Ingreso demanda", Tipo: "Escrito"},
	}})
	_, err := s.Upsert(ctx, []scraper.Case{c, civilCase("C-4-2023", "C/D")})
	require.NoError(t, err)

	got, err := s.Get(ctx, "C-3-2023")
	require.NoError(t, err)
	assert.Equal(t, MovementHistory{{Fecha: "01/03/2023", Descripcion: "Ingreso demanda", Tipo: "Escrito"}}, got.HistorialMovimientos)

	bare, err := s.Get(ctx, "C-4-2023")
	require.NoError(t, err)
	assert.NotNil(t, bare.HistorialMovimientos)
	assert.Empty(t, bare.HistorialMovimientos)
}

func TestUpsertSkipsFailingRecord(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.db.Callback().Create().Before("gorm:create").Register("test:reject", func(tx *gorm.DB) {
		if r, ok := tx.Statement.Dest.(*CaseRecord); ok && r.Rol == "C-bad" {
			tx.AddError(errors.New("rejected"))
		}
	}))

	res, err := s.Upsert(context.Background(), []scraper.Case{
		civilCase("C-1-2023", "A/B"),
		civilCase("C-bad", "X"),
		civilCase("C-2-2023", "C/D"),
	})

	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Created: 2, Skipped: 1}, res)
	assert.Equal(t, int64(2), countCases(t, s))
}

func TestUpsertCancelledBatchPersistsNothing(t *testing.T) {
	// A rollback may discard the connection, so this needs a file.
	s := openTestStore(t, filepath.Join(t.TempDir(), "ojv.db"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.db.Callback().Create().After("gorm:create").Register("test:cancel", func(*gorm.DB) {
		cancel()
	}))

	res, err := s.Upsert(ctx, []scraper.Case{civilCase("C-1-2023", "A/B"), civilCase("C-2-2023", "C/D")})

	assert.ErrorIs(t, err, ErrCommitFailed)
	assert.Equal(t, UpsertResult{}, res)
	assert.Zero(t, countCases(t, s))
}

func TestUpsertCommitFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SAVEPOINT causa_0`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT "id" FROM "causas"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`INSERT INTO "causas"`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit().WillReturnError(errors.New("could not serialize access"))

	res, err := s.Upsert(context.Background(), []scraper.Case{civilCase("C-1-2023", "A/B")})

	assert.ErrorIs(t, err, ErrCommitFailed)
	assert.Contains(t, err.Error(), "could not serialize access")
	assert.Equal(t, UpsertResult{}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertUpdatesExistingRowOnPostgres(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SAVEPOINT causa_0`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT "id" FROM "causas"`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectExec(`UPDATE "causas" SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := s.Upsert(context.Background(), []scraper.Case{civilCase("C-1-2023", "A/B")})

	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Updated: 1}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertConcurrentSameRol(t *testing.T) {
	s := newTestStore(t)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []UpsertResult
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Upsert(context.Background(), []scraper.Case{civilCase("C-1-2023", "A/B")})
			assert.NoError(t, err)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), countCases(t, s))
	var created, updated int
	for _, r := range results {
		created += r.Created
		updated += r.Updated
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, updated)
}

func TestUpsertEmptyBatch(t *testing.T) {
	s, mock := newMockStore(t)

	res, err := s.Upsert(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, UpsertResult{}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListFiltersAndPages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	labor := scraper.Case{CaseSummary: scraper.CaseSummary{Rit: "T-1-2024", EstadoCausa: "Terminada", Competencia: scraper.Labor}}
	_, err := s.Upsert(ctx, []scraper.Case{civilCase("C-1-2023", "A"), civilCase("C-2-2023", "B"), civilCase("C-3-2023", "C"), labor})
	require.NoError(t, err)

	all, total, err := s.List(ctx, CaseFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, all, 4)

	page, total, err := s.List(ctx, CaseFilter{Competencia: "civil", Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 1)
	assert.Equal(t, "C-3-2023", page[0].Rol)

	byRol, _, err := s.List(ctx, CaseFilter{RolContains: "2-20"})
	require.NoError(t, err)
	require.Len(t, byRol, 1)
	assert.Equal(t, "C-2-2023", byRol[0].Rol)

	closed, total, err := s.List(ctx, CaseFilter{Estado: "Terminada"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "laboral", closed[0].Competencia)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Nil(t, empty.UltimaActualizacion)

	_, err = s.Upsert(ctx, []scraper.Case{civilCase("C-1-2023", "A"), civilCase("C-2-2023", "B")})
	require.NoError(t, err)
	s.now = func() time.Time { return t1 }
	_, err = s.Upsert(ctx, []scraper.Case{{CaseSummary: scraper.CaseSummary{Rol: "F-1-2020", Competencia: scraper.Family}}})
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, map[string]int64{"civil": 2, "familia": 1}, stats.PorCompetencia)
	require.NotNil(t, stats.UltimaActualizacion)
	assert.True(t, stats.UltimaActualizacion.Equal(t1))
}

func TestLogScrape(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.LogScrape(ctx, &ScrapeLog{Kind: "buscar", Roles: "1-2023", Competencies: "civil", Results: 2, Success: true})
	s.now = func() time.Time { return t1 }
	s.LogScrape(ctx, &ScrapeLog{Kind: "masivo", Roles: "1-2023,2-2023", Success: false, ErrorMessage: "portal caído"})

	logs, err := s.RecentLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "masivo", logs[0].Kind)
	assert.Equal(t, 2, logs[1].Results)
}

func TestMovementHistoryScan(t *testing.T) {
	var h MovementHistory
	require.NoError(t, h.Scan(`[{"fecha":"01/01/2024","descripcion":"a","tipo":"b"}]`))
	assert.Len(t, h, 1)

	require.NoError(t, h.Scan(nil))
	assert.Empty(t, h)

	require.NoError(t, h.Scan([]byte("")))
	assert.NotNil(t, h)

	assert.Error(t, h.Scan(42))

	v, err := MovementHistory(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}
