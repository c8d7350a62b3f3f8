package grpc

import (
	"errors"
	"testing"
	"time"

	"github.com/spacetask/spacetask/internal/common"
	"github.com/spacetask/spacetask/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestReader_Strings(t *testing.T) {
	r := newReader(mustStruct(t, map[string]any{"a": "x", "blank": "  ", "null": nil, "num": 3}))

	assert.Equal(t, "x", r.str("a"))
	assert.Equal(t, "", r.str("missing"))
	assert.Nil(t, r.optString("null"))
	assert.Equal(t, "x", r.requiredString("a"))
	require.NoError(t, r.Err())

	r.requiredString("blank")
	require.ErrorIs(t, r.Err(), common.ErrValidation)
	assert.Contains(t, r.Err().Error(), "blank is required")

	r.optString("num")
	assert.Contains(t, r.Err().Error(), "blank is required", "first failure is kept")
}

func TestReader_Numbers(t *testing.T) {
	r := newReader(mustStruct(t, map[string]any{"lat": 40.5, "n": 7, "frac": 2.5, "huge": 1e17}))

	assert.Equal(t, 40.5, r.number("lat"))
	assert.Equal(t, int64(7), *r.optInt("n"))
	assert.Equal(t, 25, r.intOr("missing", 25))
	assert.Nil(t, r.optNumber("missing"))
	require.NoError(t, r.Err())

	tests := []struct {
		name string
		read func(r *reader)
		msg  string
	}{
		{"fraction", func(r *reader) { r.optInt("frac") }, "frac must be an integer"},
		{"beyond exact range", func(r *reader) { r.optInt("huge") }, "huge must be an integer"},
		{"required", func(r *reader) { r.number("missing") }, "missing is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newReader(mustStruct(t, map[string]any{"frac": 2.5, "huge": 1e17}))
			tt.read(r)
			require.ErrorIs(t, r.Err(), common.ErrValidation)
			assert.Contains(t, r.Err().Error(), tt.msg)
		})
	}

	r = newReader(mustStruct(t, map[string]any{"lat": "north"}))
	r.number("lat")
	assert.Contains(t, r.Err().Error(), "lat must be a number")
}

func TestReader_Only(t *testing.T) {
	r := newReader(mustStruct(t, map[string]any{"task_id": "t1", "zeta": 1, "alpha": 2}))
	r.only("task_id")
	require.Error(t, r.Err())
	assert.True(t, errors.Is(r.Err(), common.ErrValidation))
	assert.Contains(t, r.Err().Error(), "unknown fields: alpha, zeta")

	r = newReader(mustStruct(t, map[string]any{"task_id": "t1"}))
	r.only(taskPatchFields...)
	assert.NoError(t, r.Err())
}

func TestReader_NilRequest(t *testing.T) {
	r := newReader(nil)
	assert.Equal(t, "", r.str("a"))
	assert.NoError(t, r.Err())
}

func TestEncoders(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	name := "Pier"
	task := &models.Task{ID: "t1", LocationName: &name, Status: models.TaskStatusCancelled, CreatedAt: time.Date(2025, 1, 1, 1, 0, 0, 5, loc)}

	m := taskMap(task)
	assert.Equal(t, "Pier", m["location_name"])
	assert.Equal(t, "cancelled", m["status"])
	assert.Equal(t, "2025-01-01T00:00:00.000000005Z", m["created_at"])

	_, err := reply(map[string]any{"task": m})
	assert.NoError(t, err)

	s := settlementMap(&models.Settlement{Bounty: 50, BaseReward: 10})
	assert.Equal(t, int64(60), s["transferred"])

	assert.Equal(t, []any{}, listOf([]*models.Task(nil), taskMap))
}

func TestReader_ID(t *testing.T) {
	const id = "0b9a6c1e-5f2d-4c38-9a71-2f0e8d4b6a13"

	r := newReader(mustStruct(t, map[string]any{"task_id": id}))
	assert.Equal(t, id, r.id("task_id"))
	assert.NoError(t, r.Err())

	for _, bad := range []any{"42", "t1", "", 42} {
		r = newReader(mustStruct(t, map[string]any{"task_id": bad}))
		assert.Empty(t, r.id("task_id"))
		assert.ErrorIs(t, r.Err(), common.ErrValidation, bad)
	}

	r = newReader(mustStruct(t, map[string]any{}))
	assert.Empty(t, r.optID("user_id"))
	assert.NoError(t, r.Err())

	r = newReader(mustStruct(t, map[string]any{"user_id": "42"}))
	assert.Empty(t, r.optID("user_id"))
	assert.EqualError(t, r.Err(), "validation error: user_id must be a uuid")
}
