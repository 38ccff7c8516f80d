package store

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorhub/apiserver/types"
)

func TestTranslateError(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})
	assert.ErrorIs(t, translateError(unique), ErrConflict)

	badUUID := &pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "foo"`}
	assert.ErrorIs(t, translateError(badUUID), ErrNotFound)

	fk := &pq.Error{Code: "23503"}
	assert.Same(t, fk, translateError(fk))

	plain := errors.New("boom")
	assert.Equal(t, plain, translateError(plain))
	assert.NoError(t, translateError(nil))
}

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{id: uuid.NewString(), want: true},
		{id: "", want: false},
		{id: "foo", want: false},
		{id: "undefined", want: false},
		{id: "12345", want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, validID(tt.id), tt.id)
	}
}

// fakeRow feeds fixed column values to a scan function.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

func profileRow(times string) fakeRow {
	now := time.Now().UTC()
	return fakeRow{values: []any{
		"p1", "t1", "Math", "", "", int64(100), []byte(times), 4.5, 2, now, now,
	}}
}

func TestScanProfile(t *testing.T) {
	profile, err := scanProfile(profileRow(`["morning","weekend"]`))
	require.NoError(t, err)
	assert.Equal(t, []types.TimeSlot{types.TimeSlotMorning, types.TimeSlotWeekend}, profile.AvailableTimes)

	profile, err = scanProfile(profileRow(`[]`))
	require.NoError(t, err)
	assert.Equal(t, []types.TimeSlot{}, profile.AvailableTimes)

	_, err = scanProfile(profileRow(`{not json`))
	assert.ErrorContains(t, err, "available_times")

	_, err = scanProfile(fakeRow{err: &pq.Error{Code: "22P02"}})
	assert.ErrorIs(t, err, ErrNotFound)
}
