package visit

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/house-deals/internal/apperr"
)

type stubLookup struct {
	ok  bool
	err error
}

func (s stubLookup) HasCompletedVisit(context.Context, string, string) (bool, error) {
	return s.ok, s.err
}

func TestGateCheck(t *testing.T) {
	tests := []struct {
		name    string
		lookup  stubLookup
		wantErr bool
	}{
		{"completed visit passes", stubLookup{ok: true}, false},
		{"no visit blocks", stubLookup{ok: false}, true},
		{"lookup error blocks", stubLookup{err: errors.New("connection reset")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewGate(tt.lookup).Check(context.Background(), "p1", "buyer")
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, apperr.Precondition, apperr.KindOf(err))
		})
	}
}

func TestGateFailsClosedOnDatabaseError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("p1", "buyer", string(Completed)).
		WillReturnError(errors.New("database is locked"))

	gate := NewGate(NewRepository(mockDB))
	err = gate.Check(context.Background(), "p1", "buyer")

	require.Error(t, err)
	assert.Equal(t, apperr.Precondition, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGatePassesWithMockedVisit(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("p1", "buyer", string(Completed)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	assert.NoError(t, NewGate(NewRepository(mockDB)).Check(context.Background(), "p1", "buyer"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
