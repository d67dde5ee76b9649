package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgres_OwnedDialog(t *testing.T) {
	t.Parallel()
	ownedQuery := regexp.QuoteMeta(`SELECT 1 FROM dialogs WHERE id = $1 AND user_id = $2`)

	t.Run("owned", func(t *testing.T) {
		t.Parallel()
		s, mock := newMockStore(t)
		mock.ExpectQuery(ownedQuery).
			WithArgs("d1", "u1").
			WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

		assert.NoError(t, s.OwnedDialog(context.Background(), "d1", "u1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("absent or foreign", func(t *testing.T) {
		t.Parallel()
		s, mock := newMockStore(t)
		mock.ExpectQuery(ownedQuery).
			WithArgs("d1", "u2").
			WillReturnError(sql.ErrNoRows)

		err := s.OwnedDialog(context.Background(), "d1", "u2")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("backend failure is not not-found", func(t *testing.T) {
		t.Parallel()
		s, mock := newMockStore(t)
		mock.ExpectQuery(ownedQuery).
			WithArgs("d1", "u1").
			WillReturnError(errors.New("connection reset"))

		err := s.OwnedDialog(context.Background(), "d1", "u1")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrNotFound))
	})
}

func TestPostgres_Search(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "content", "case_number", "similarity"}).
		AddRow("a", "первый", "А40-123/2021", 0.81).
		AddRow("b", "второй", "", 0.63)
	mock.ExpectQuery(`SELECT id, content, COALESCE\(case_number, ''\), 1 - \(embedding <=> \$1\) AS similarity`).
		WithArgs(sqlmock.AnyArg(), 0.5, 6).
		WillReturnRows(rows)

	got, err := s.Search(context.Background(), []float32{0.6, 0.8}, 0.5, 6)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "А40-123/2021", got[0].CaseNumber)
	assert.InDelta(t, 0.81, got[0].Similarity, 1e-6)
	assert.Equal(t, "", got[1].CaseNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SearchQueryOrdersWithTieBreak(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	mock.ExpectQuery(`ORDER\s+BY embedding <=> \$1 ASC, created_at ASC, id ASC\s+LIMIT\s+\$3`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content", "case_number", "similarity"}))

	got, err := s.Search(context.Background(), []float32{1}, 0.5, 6)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SearchFiltersOnIndexedDistance(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)

	// The HNSW index serves predicates on the bare distance operator.
	mock.ExpectQuery(`WHERE\s+embedding IS NOT NULL\s+AND\s+embedding <=> \$1 <= 1 - \$2::float8\s+ORDER`).
		WithArgs(sqlmock.AnyArg(), 0.5, 6).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content", "case_number", "similarity"}))

	_, err := s.Search(context.Background(), []float32{1}, 0.5, 6)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SearchError(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	mock.ExpectQuery(`FROM\s+case_chunks`).WillReturnError(errors.New("relation does not exist"))

	_, err := s.Search(context.Background(), []float32{1}, 0.5, 6)
	assert.Error(t, err)
}

func TestPostgres_PendingAndSetEmbedding(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, content FROM case_chunks WHERE embedding IS NULL ORDER BY created_at ASC, id ASC LIMIT $1`)).
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content"}).AddRow("a", "x").AddRow("b", "y"))

	pending, err := s.PendingChunks(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, []PendingChunk{{ID: "a", Content: "x"}, {ID: "b", Content: "y"}}, pending)

	update := regexp.QuoteMeta(`UPDATE case_chunks SET embedding = $1 WHERE id = $2`)
	mock.ExpectExec(update).WithArgs(sqlmock.AnyArg(), "a").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(update).WithArgs(sqlmock.AnyArg(), "gone").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, s.SetEmbedding(ctx, "a", []float32{1, 0}))
	assert.ErrorIs(t, s.SetEmbedding(ctx, "gone", []float32{1, 0}), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateDialog(t *testing.T) {
	t.Parallel()
	s, mock := newMockStore(t)
	now := time.Now()
	insert := regexp.QuoteMeta(`INSERT INTO dialogs (id, user_id, title) VALUES ($1, $2, $3) RETURNING created_at, updated_at`)

	mock.ExpectQuery(insert).
		WithArgs(sqlmock.AnyArg(), "owner", DefaultDialogTitle).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	d, err := s.CreateDialog(context.Background(), "owner", "")
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, DefaultDialogTitle, d.Title)
	assert.Equal(t, now, d.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Ping(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := NewPostgresStore(db)

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, s.Ping(context.Background()))
}
