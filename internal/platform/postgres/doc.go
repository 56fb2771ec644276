// Package postgres implements the job broker on PostgreSQL.
//
// Jobs live in the generation_jobs table. Workers claim the oldest
// claimable row with FOR UPDATE SKIP LOCKED, so any number of worker
// processes can share one database without double-claiming. The schema is
// embedded and applied with goose.
//
// All database access goes through the DBTX interface, which is satisfied
// by both *sql.DB and *sql.Tx.
package postgres
