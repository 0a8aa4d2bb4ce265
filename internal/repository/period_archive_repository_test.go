package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dz-manifest-api/internal/models"
)

func newSQLRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func closedPeriod() models.Period {
	closed := time.Date(2024, 6, 30, 18, 0, 0, 0, time.UTC)
	return models.Period{
		ID:       "2024-06",
		Start:    time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		End:      &closed,
		ClosedAt: &closed,
		FinalBalances: map[string]models.InstructorTotals{
			"i2": {InstructorName: "Bo", Balance: 90, Earnings: 80, Jumps: 2},
			"i1": {InstructorName: "Ana", Balance: 120, Earnings: 100, Jumps: 3},
		},
	}
}

func TestPeriodArchiveRepositoryArchive(t *testing.T) {
	db, mock, cleanup := newSQLRepoMock(t)
	defer cleanup()

	repo := NewPeriodArchiveRepository(db)
	period := closedPeriod()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO period_archives")).
		WithArgs("2024-06", "i1", "Ana", 120.0, 100.0, 3, *period.ClosedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO period_archives")).
		WithArgs("2024-06", "i2", "Bo", 90.0, 80.0, 2, *period.ClosedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Archive(context.Background(), period))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodArchiveRepositoryRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newSQLRepoMock(t)
	defer cleanup()

	repo := NewPeriodArchiveRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO period_archives")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Archive(context.Background(), closedPeriod())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instructor i1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodArchiveRepositoryRejectsOpenPeriod(t *testing.T) {
	db, _, cleanup := newSQLRepoMock(t)
	defer cleanup()

	period := closedPeriod()
	period.ClosedAt = nil
	assert.Error(t, NewPeriodArchiveRepository(db).Archive(context.Background(), period))
}

func TestPeriodArchiveRepositoryListByPeriod(t *testing.T) {
	db, mock, cleanup := newSQLRepoMock(t)
	defer cleanup()

	closed := time.Date(2024, 6, 30, 18, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"period_id", "instructor_id", "instructor_name", "balance", "earnings", "jumps", "closed_at"}).
		AddRow("2024-06", "i1", "Ana", 120.0, 100.0, 3, closed)
	mock.ExpectQuery(regexp.QuoteMeta("FROM period_archives WHERE period_id = $1")).
		WithArgs("2024-06").
		WillReturnRows(rows)

	list, err := NewPeriodArchiveRepository(db).ListByPeriod(context.Background(), "2024-06")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Ana", list[0].InstructorName)
	assert.Equal(t, 3, list[0].Jumps)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newSQLRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	log := &models.AuditLog{Action: models.AuditActionCommand, Resource: "load", NewValues: []byte(`{"kind":"assign"}`)}
	require.NoError(t, NewAuditRepository(db).CreateAuditLog(context.Background(), log))
	assert.NotEmpty(t, log.ID)
	assert.False(t, log.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
