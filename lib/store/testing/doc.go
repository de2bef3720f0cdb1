/*
Package testing provides a shared test suite for store.IStore implementations.

Usage:

	func TestSQLStore(t *testing.T) {
		storetesting.RunStoreTests(t, "sqlite", func() store.IStore {
			return sqlstore.NewSQLStore(db.Config{
				Enabled:          true,
				Driver:           "sqlite",
				ConnectionString: filepath.Join(t.TempDir(), "kv.db"),
			}, nil)
		})
	}

The factory must return an empty store on every call.
*/
package testing
