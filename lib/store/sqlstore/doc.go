/*
Package sqlstore implements store.IStore on top of a relational database.

Every operation first asks the connection manager for a verified connection,
which opens the database on first use and reconnects after a failed liveness
probe. Statements are issued against the six logical tables of the db
package; each table has a key column "id" and a value column "value".

	s := sqlstore.NewSQLStore(db.Config{
		Enabled:          true,
		Driver:           "sqlite",
		ConnectionString: "/var/lib/dbkv/kv.db",
	}, stats.NewManager("dbkv"))
	defer s.Close()

	existed, err := s.Put(db.TablePwmMeta, "k1", "v1")

Every successful read and write is reported to the stats.Recorder. Failures
that mean the database is unreachable or a statement failed are kept as the
last error and reported by HealthCheck for one hour.
*/
package sqlstore
