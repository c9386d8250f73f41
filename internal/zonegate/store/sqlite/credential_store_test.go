package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbpkg "github.com/accessdeck/zonegate/internal/db"
	"github.com/accessdeck/zonegate/internal/zonegate/store/sqlite"
	"github.com/accessdeck/zonegate/internal/zonegate/types"
)

func newMockStore(t *testing.T) (*sqlite.CredentialStore, sqlmock.Sqlmock) {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err)

	writer := dbpkg.NewWriter(conn)
	t.Cleanup(func() {
		writer.Close()
		_ = conn.Close()
	})

	return sqlite.NewCredentialStore(conn, writer), mock
}

func TestCredentialStore_FindCard(t *testing.T) {
	s, mock := newMockStore(t)

	expires := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"card_id", "card_number", "facility_code", "status", "expires_at_ms", "member_id",
	}).AddRow("card-1", "AABBCCDD", 12, "ACTIVE", expires.UnixMilli(), "member-1")

	mock.ExpectQuery("SELECT card_id, card_number").
		WithArgs("AABBCCDD").
		WillReturnRows(rows)

	rec, ok, err := s.FindCard(context.Background(), "AABBCCDD")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "card-1", rec.CardID)
	assert.Equal(t, types.CardActive, rec.Status)
	assert.Equal(t, "member-1", rec.MemberID)
	require.NotNil(t, rec.ExpiresAt)
	assert.Equal(t, expires, rec.ExpiresAt.UTC())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialStore_FindCard_Unknown(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT card_id, card_number").
		WithArgs("FFFFFFFF").
		WillReturnError(sql.ErrNoRows)

	_, ok, err := s.FindCard(context.Background(), "FFFFFFFF")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialStore_Member_NullPlan(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"member_id", "gender", "plan_id", "active"}).
		AddRow("member-1", "FEMALE", nil, 1)

	mock.ExpectQuery("SELECT member_id, gender").
		WithArgs("member-1").
		WillReturnRows(rows)

	rec, ok, err := s.Member(context.Background(), "member-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.GenderFemale, rec.Gender)
	assert.Nil(t, rec.PlanID)
	assert.True(t, rec.Active)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialStore_TouchLastUsed(t *testing.T) {
	s, mock := newMockStore(t)

	used := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	ms := used.UnixMilli()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE cards").
		WithArgs(ms, ms, "card-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.TouchLastUsed(context.Background(), "card-1", used))
	require.NoError(t, mock.ExpectationsWereMet())
}
