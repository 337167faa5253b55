package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bluecarbon-mrv/portal/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccountInput(t *testing.T) {
	input, err := newAccountInput(" Worker@Example.org ", "long-enough", "buyer", " B. Roy ")
	require.NoError(t, err)
	assert.Equal(t, "worker@example.org", input.email)
	assert.Equal(t, types.RoleBuyer, input.role)
	assert.Equal(t, "B. Roy", input.fullName)

	_, err = newAccountInput("not-an-email", "long-enough", "buyer", "")
	assert.ErrorContains(t, err, "invalid email")

	_, err = newAccountInput("a@b.co", "short", "buyer", "")
	assert.ErrorContains(t, err, "at least 8")

	_, err = newAccountInput("a@b.co", "long-enough", "superuser", "")
	assert.ErrorContains(t, err, "unknown role")
}

func TestProvisionAccount(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	input := accountInput{email: "worker@example.org", role: types.RoleFieldWorker, fullName: "A. Sen"}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO identities`).
		WithArgs(sqlmock.AnyArg(), "worker@example.org", "hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO profiles`).
		WithArgs(sqlmock.AnyArg(), types.RoleFieldWorker, "A. Sen", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	account, err := provisionAccount(context.Background(), conn, input, "hash")
	require.NoError(t, err)
	assert.NotEmpty(t, account.ID)
	assert.Equal(t, "worker@example.org", account.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisionAccount_ProfileFailureRollsBackIdentity(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	input := accountInput{email: "worker@example.org", role: types.RoleFieldWorker}
	failure := errors.New("pq: connection reset")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO identities`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO profiles`).
		WillReturnError(failure)
	mock.ExpectRollback()

	_, err = provisionAccount(context.Background(), conn, input, "hash")
	assert.ErrorIs(t, err, failure)
	assert.ErrorContains(t, err, "create profile")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProvisionAccount_DuplicateEmail(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO identities`).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err = provisionAccount(context.Background(), conn, accountInput{email: "worker@example.org"}, "hash")
	assert.ErrorContains(t, err, "already exists")
	assert.NoError(t, mock.ExpectationsWereMet())
}
