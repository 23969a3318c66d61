// Package dbtest builds throwaway sqlite databases with the legacy CMS tables
// and the normalized tables migrated, for use in tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/937bb/937cms-sub001/pkg/database"
	"github.com/937bb/937cms-sub001/pkg/models"
)

const legacySchema = `
CREATE TABLE IF NOT EXISTS bb_vod (
	vod_id INTEGER PRIMARY KEY AUTOINCREMENT,
	vod_name TEXT NOT NULL DEFAULT '',
	vod_play_from TEXT,
	vod_play_url TEXT
);
CREATE TABLE IF NOT EXISTS bb_player (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	from_key TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	status INTEGER NOT NULL DEFAULT 1,
	sort INTEGER NOT NULL DEFAULT 0
);
`

// Open returns a migrated sqlite database in t.TempDir.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	db := OpenEmpty(t)
	_, err := database.Migrate(context.Background(), db, database.SQLite)
	require.NoError(t, err)
	return db
}

// OpenEmpty returns a sqlite database that has the legacy tables but no
// migrations applied.
func OpenEmpty(t testing.TB) *sql.DB {
	t.Helper()
	return OpenAt(t, filepath.Join(t.TempDir(), "test.db"))
}

// OpenAt is OpenEmpty for a caller-chosen file, for tests that hand the path
// to another process or command.
func OpenAt(t testing.TB, path string) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Dialect: database.SQLite,
		DSN:     path,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(legacySchema)
	require.NoError(t, err)
	return db
}

// SeedPlayers inserts registry rows and returns them with their ids.
func SeedPlayers(t testing.TB, db *sql.DB, keys ...string) []models.PlayerRef {
	t.Helper()

	out := make([]models.PlayerRef, 0, len(keys))
	for _, k := range keys {
		res, err := db.Exec(`INSERT INTO bb_player (from_key, display_name) VALUES (?, ?)`, k, k)
		require.NoError(t, err)
		id, err := res.LastInsertId()
		require.NoError(t, err)
		out = append(out, models.PlayerRef{Key: k, ID: id})
	}
	return out
}

// SeedVideo inserts one legacy video and returns its id.
func SeedVideo(t testing.TB, db *sql.DB, playFrom, playURL string) int64 {
	t.Helper()

	res, err := db.Exec(
		`INSERT INTO bb_vod (vod_name, vod_play_from, vod_play_url) VALUES (?, ?, ?)`,
		"video", playFrom, playURL,
	)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

// SeedVideos inserts n videos. The i-th video (0-based) gets i%3+1 episodes
// on player "p1" and a second, orphaned "retired" source when i is even.
func SeedVideos(t testing.TB, db *sql.DB, n int) {
	t.Helper()

	tx, err := db.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO bb_vod (vod_name, vod_play_from, vod_play_url) VALUES (?, ?, ?)`)
	require.NoError(t, err)
	defer stmt.Close()

	for i := 0; i < n; i++ {
		from, url := SampleFields(i)
		_, err := stmt.Exec(fmt.Sprintf("video %d", i), from, url)
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())
}

// SampleFields is the legacy encoding SeedVideos writes for index i.
func SampleFields(i int) (playFrom, playURL string) {
	eps := ""
	for j := 0; j < i%3+1; j++ {
		if j > 0 {
			eps += "#"
		}
		eps += fmt.Sprintf("EP%02d$https://cdn.example.com/%d/%d.m3u8", j+1, i, j+1)
	}
	if i%2 == 0 {
		return "p1$$$retired", eps + "$$$HD$https://old.example.com/" + fmt.Sprint(i)
	}
	return "p1", eps
}
