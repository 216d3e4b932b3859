package taskdb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE id_sequence(
			key TEXT PRIMARY KEY,
			next_id BIGINT NOT NULL
		);

		CREATE TABLE task_progress(
			task TEXT PRIMARY KEY,
			image_index BIGINT NOT NULL,
			updated_at INT
		);
	`))

	return migs
}
