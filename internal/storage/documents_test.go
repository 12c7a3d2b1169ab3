package storage

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocument struct {
	Name string `json:"name"`
}

func TestPut_UpsertsDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewForTesting(db)

	mock.ExpectExec("INSERT INTO session_documents").
		WithArgs("sess-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.Put(context.Background(), IndexSession, "sess-1", fakeDocument{Name: "hello"})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_ReturnsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewForTesting(db)

	mock.ExpectQuery("SELECT document FROM session_documents").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	var target fakeDocument
	err = store.Get(context.Background(), IndexSession, "missing", &target)

	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_DecodesDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewForTesting(db)

	rows := sqlmock.NewRows([]string{"document"}).AddRow(`{"name":"hello"}`)
	mock.ExpectQuery("SELECT document FROM session_documents").
		WithArgs("sess-1").
		WillReturnRows(rows)

	var target fakeDocument
	err = store.Get(context.Background(), IndexSession, "sess-1", &target)

	assert.NoError(t, err)
	assert.Equal(t, "hello", target.Name)
}

func TestDelete_RemovesRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewForTesting(db)

	mock.ExpectExec("DELETE FROM profile_documents").
		WithArgs("prof-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = store.Delete(context.Background(), IndexProfile, "prof-1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByTraits_DecodesMatchingRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewForTesting(db)

	rows := sqlmock.NewRows([]string{"document"}).
		AddRow(`{"id":"p1","traits":{"email":"a@b.com"}}`).
		AddRow(`{"id":"p2","traits":{"email":"a@b.com"}}`)
	mock.ExpectQuery("SELECT document FROM profile_documents").
		WithArgs(sqlmock.AnyArg(), "p0", 10).
		WillReturnRows(rows)

	docs, err := store.FindByTraits(context.Background(), IndexProfile, map[string]any{"email": "a@b.com"}, "p0", 10)

	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByTraits_PropagatesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewForTesting(db)

	mock.ExpectQuery("SELECT document FROM profile_documents").
		WillReturnError(sql.ErrConnDone)

	_, err = store.FindByTraits(context.Background(), IndexProfile, map[string]any{"email": "a@b.com"}, "p0", 10)
	assert.Error(t, err)
}

func TestRefresh_IsANoOp(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewForTesting(db)

	assert.NoError(t, store.Refresh(context.Background(), IndexSession))
}
