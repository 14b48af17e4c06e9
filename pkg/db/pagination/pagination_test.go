package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	id int64
	ts time.Time
}

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	token, err := EncodeCursor(Cursor{ID: 42, Timestamp: ts})
	require.NoError(t, err)

	decoded, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), decoded.ID)
	assert.True(t, ts.Equal(decoded.Timestamp))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("!!not-base64!!")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	empty, err := DecodeCursor("")
	assert.NoError(t, err)
	assert.Nil(t, empty)
}

func TestBuildPage(t *testing.T) {
	now := time.Now().UTC()
	rows := []*row{{1, now}, {2, now}, {3, now}}
	extract := func(r *row) Cursor { return Cursor{ID: r.id, Timestamp: r.ts} }

	page, info, err := BuildPage(rows, 2, extract)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.True(t, info.HasMore)
	assert.NotEmpty(t, info.NextCursor)

	page, info, err = BuildPage(rows, 3, extract)
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextCursor)
}
