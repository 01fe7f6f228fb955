//go:build integration

package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideogameMappingRoundTrip(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	mapping := map[int64]string{
		999801: "Test Fighter",
		999802: "Test Fighter 2",
	}

	err := db.Videogames.UpsertMapping(ctx, mapping)
	require.NoError(t, err)

	loaded, err := db.Videogames.LoadMapping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Test Fighter", loaded[999801])
	assert.Equal(t, "Test Fighter 2", loaded[999802])

	ids, err := db.Videogames.LoadIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, int64(999801))
	assert.Contains(t, ids, int64(999802))

	_, err = db.Pool.Exec(ctx, `DELETE FROM videogame_mapping WHERE id IN ($1, $2)`, int64(999801), int64(999802))
	require.NoError(t, err)
}
