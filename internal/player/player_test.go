package player

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/937bb/937cms-sub001/pkg/database/dbtest"
)

func TestRepo_LoadAll(t *testing.T) {
	db := dbtest.Open(t)
	refs := dbtest.SeedPlayers(t, db, "youku", "m3u8", "YouKu")

	m, err := NewRepo(db).LoadAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, m, 3)
	for _, p := range refs {
		assert.Equal(t, p.ID, m[p.Key], p.Key)
	}
}

func TestRepo_LoadAll_Empty(t *testing.T) {
	db := dbtest.Open(t)

	m, err := NewRepo(db).LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestResolver(t *testing.T) {
	r := NewResolver(map[string]int64{"youku": 3, "m3u8": 7})

	assert.Equal(t, int64(3), r.Resolve("youku"))
	assert.Equal(t, int64(7), r.Resolve("m3u8"))
	assert.Equal(t, OrphanID, r.Resolve("YOUKU"), "lookup is case-sensitive")
	assert.Equal(t, OrphanID, r.Resolve("retired"))
	assert.Equal(t, OrphanID, r.Resolve(""))
	assert.Equal(t, 2, r.Len())

	var nilResolver *Resolver
	assert.Equal(t, OrphanID, nilResolver.Resolve("youku"))
}

func TestResolver_CopiesInput(t *testing.T) {
	src := map[string]int64{"youku": 3}
	r := NewResolver(src)
	src["youku"] = 99

	assert.Equal(t, int64(3), r.Resolve("youku"))
}
