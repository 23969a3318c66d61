package episode

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/937bb/937cms-sub001/pkg/database"
	"github.com/937bb/937cms-sub001/pkg/models"
)

// MaxEpisodesPerInsert caps the rows of one multi-row INSERT so a single
// oversized group stays under every driver's bind-parameter limit.
const MaxEpisodesPerInsert = 500

const episodeColumns = 8

// Writer receives the rows produced for one legacy video.
type Writer interface {
	InsertSource(ctx context.Context, s models.Source) (int64, error)
	InsertEpisodes(ctx context.Context, eps []models.Episode) error
}

// PageTx is the page-scoped transaction a sync run writes through.
type PageTx interface {
	Writer
	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error
	Commit() error
	Rollback() error
}

// Repo owns bb_vod_source and bb_vod_episode.
type Repo struct {
	DB      *sql.DB
	Dialect database.Dialect
}

func NewRepo(db *sql.DB, d database.Dialect) *Repo {
	return &Repo{DB: db, Dialect: d}
}

// EnsureSchema applies pending migrations and reports how many ran.
func (r *Repo) EnsureSchema(ctx context.Context) (int, error) {
	return database.Migrate(ctx, r.DB, r.Dialect)
}

// Truncate empties episodes first, then sources.
func (r *Repo) Truncate(ctx context.Context) error {
	for _, table := range []string{database.TableEpisode, database.TableSource} {
		for _, stmt := range r.Dialect.TruncateStatements(table) {
			if _, err := r.DB.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("truncate %s: %w", table, err)
			}
		}
	}
	return nil
}

func (r *Repo) Begin(ctx context.Context) (PageTx, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{tx: tx, dialect: r.Dialect}, nil
}

// Tx writes sources and episodes inside one database transaction.
type Tx struct {
	tx      *sql.Tx
	dialect database.Dialect
}

func (t *Tx) InsertSource(ctx context.Context, s models.Source) (int64, error) {
	id, err := t.dialect.InsertReturningID(ctx, t.tx, `
		INSERT INTO bb_vod_source (vod_id, player_id, player_name, sort, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.VideoID, s.PlayerID, s.PlayerName, s.Sort, s.CreatedAt.Unix(), s.UpdatedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert source for video %d: %w", s.VideoID, err)
	}
	return id, nil
}

// InsertEpisodes writes eps with multi-row INSERTs of at most
// MaxEpisodesPerInsert rows each.
func (t *Tx) InsertEpisodes(ctx context.Context, eps []models.Episode) error {
	for start := 0; start < len(eps); start += MaxEpisodesPerInsert {
		chunk := eps[start:min(start+MaxEpisodesPerInsert, len(eps))]

		args := make([]any, 0, len(chunk)*episodeColumns)
		for _, e := range chunk {
			args = append(args,
				e.VideoID, e.SourceID, e.EpisodeNum, e.Title, e.URL, e.Sort,
				e.CreatedAt.Unix(), e.UpdatedAt.Unix(),
			)
		}

		q := `INSERT INTO bb_vod_episode (vod_id, source_id, episode_num, title, url, sort, created_at, updated_at) VALUES ` +
			database.ValuesList(len(chunk), episodeColumns)
		if _, err := t.tx.ExecContext(ctx, t.dialect.Rebind(q), args...); err != nil {
			return fmt.Errorf("insert %d episodes for source %d: %w", len(chunk), chunk[0].SourceID, err)
		}
	}
	return nil
}

func (t *Tx) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name)
	return err
}

func (t *Tx) RollbackTo(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name)
	return err
}

func (t *Tx) Release(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (t *Tx) Rollback() error { return t.tx.Rollback() }
