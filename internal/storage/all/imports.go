// Package all registers every built-in storage backend (postgres, sqlite,
// mysql, mssql) with the storage factory. Import it for side effects.
package all

import (
	_ "socioprep/internal/storage/mssql"
	_ "socioprep/internal/storage/mysql"
	_ "socioprep/internal/storage/postgres"
	_ "socioprep/internal/storage/sqlite"
)
