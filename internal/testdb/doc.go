// Package testdb provides utilities for tests that need a real Postgres
// database.
//
// Tests run inside a transaction that is rolled back when the test
// completes, so they can run in parallel against the same schema without
// cleanup:
//
//	func TestBroker(t *testing.T) {
//	    t.Parallel()
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        broker := postgres.NewJobBroker(tx)
//	        ...
//	    })
//	}
//
// Tests are skipped when neither DATABASE_URL nor GENSERVE_TEST_DB_URL is
// set.
package testdb
