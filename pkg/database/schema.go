package database

var migrationTableDDL = map[Dialect]string{
	MySQL: `CREATE TABLE IF NOT EXISTS bb_migration (
		id int unsigned NOT NULL AUTO_INCREMENT,
		version varchar(32) NOT NULL,
		name varchar(128) NOT NULL,
		executed_at int unsigned NOT NULL DEFAULT 0,
		PRIMARY KEY (id),
		UNIQUE KEY uk_version (version)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	Postgres: `CREATE TABLE IF NOT EXISTS bb_migration (
		id SERIAL PRIMARY KEY,
		version VARCHAR(32) NOT NULL UNIQUE,
		name VARCHAR(128) NOT NULL,
		executed_at BIGINT NOT NULL DEFAULT 0
	)`,
	SQLite: `CREATE TABLE IF NOT EXISTS bb_migration (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		executed_at INTEGER NOT NULL DEFAULT 0
	)`,
}

// 010 creates the normalized playback tables. Episodes reference sources by
// id only; there is no enforced foreign key so both tables can be truncated.
var addEpisodeTables = Migration{
	Version: "010",
	Name:    "add_episode_tables",
	Statements: map[Dialect][]string{
		MySQL: {
			`CREATE TABLE IF NOT EXISTS bb_vod_source (
				id int unsigned NOT NULL AUTO_INCREMENT,
				vod_id int unsigned NOT NULL,
				player_id int unsigned NOT NULL DEFAULT 0,
				player_name varchar(64) NOT NULL DEFAULT '',
				sort int NOT NULL DEFAULT 0,
				created_at int unsigned NOT NULL DEFAULT 0,
				updated_at int unsigned NOT NULL DEFAULT 0,
				PRIMARY KEY (id),
				KEY idx_vod_sort (vod_id, sort),
				KEY idx_player (player_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS bb_vod_episode (
				id int unsigned NOT NULL AUTO_INCREMENT,
				vod_id int unsigned NOT NULL,
				source_id int unsigned NOT NULL,
				episode_num int unsigned NOT NULL DEFAULT 1,
				title varchar(255) NOT NULL DEFAULT '',
				url text NOT NULL,
				sort int NOT NULL DEFAULT 0,
				created_at int unsigned NOT NULL DEFAULT 0,
				updated_at int unsigned NOT NULL DEFAULT 0,
				PRIMARY KEY (id),
				KEY idx_source_sort (source_id, sort),
				KEY idx_vod (vod_id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		},
		Postgres: {
			`CREATE TABLE IF NOT EXISTS bb_vod_source (
				id BIGSERIAL PRIMARY KEY,
				vod_id BIGINT NOT NULL,
				player_id BIGINT NOT NULL DEFAULT 0,
				player_name VARCHAR(64) NOT NULL DEFAULT '',
				sort INTEGER NOT NULL DEFAULT 0,
				created_at BIGINT NOT NULL DEFAULT 0,
				updated_at BIGINT NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_vod_source_vod_sort ON bb_vod_source (vod_id, sort)`,
			`CREATE INDEX IF NOT EXISTS idx_vod_source_player ON bb_vod_source (player_id)`,
			`CREATE TABLE IF NOT EXISTS bb_vod_episode (
				id BIGSERIAL PRIMARY KEY,
				vod_id BIGINT NOT NULL,
				source_id BIGINT NOT NULL,
				episode_num INTEGER NOT NULL DEFAULT 1,
				title VARCHAR(255) NOT NULL DEFAULT '',
				url TEXT NOT NULL,
				sort INTEGER NOT NULL DEFAULT 0,
				created_at BIGINT NOT NULL DEFAULT 0,
				updated_at BIGINT NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_vod_episode_source_sort ON bb_vod_episode (source_id, sort)`,
			`CREATE INDEX IF NOT EXISTS idx_vod_episode_vod ON bb_vod_episode (vod_id)`,
		},
		SQLite: {
			`CREATE TABLE IF NOT EXISTS bb_vod_source (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				vod_id INTEGER NOT NULL,
				player_id INTEGER NOT NULL DEFAULT 0,
				player_name TEXT NOT NULL DEFAULT '',
				sort INTEGER NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL DEFAULT 0,
				updated_at INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_vod_source_vod_sort ON bb_vod_source (vod_id, sort)`,
			`CREATE INDEX IF NOT EXISTS idx_vod_source_player ON bb_vod_source (player_id)`,
			`CREATE TABLE IF NOT EXISTS bb_vod_episode (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				vod_id INTEGER NOT NULL,
				source_id INTEGER NOT NULL,
				episode_num INTEGER NOT NULL DEFAULT 1,
				title TEXT NOT NULL DEFAULT '',
				url TEXT NOT NULL,
				sort INTEGER NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL DEFAULT 0,
				updated_at INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_vod_episode_source_sort ON bb_vod_episode (source_id, sort)`,
			`CREATE INDEX IF NOT EXISTS idx_vod_episode_vod ON bb_vod_episode (vod_id)`,
		},
	},
}
