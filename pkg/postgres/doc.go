// Package postgres persists the dispatch engine's durable state: transport
// accounts, contacts and their address records, pending intents, and the
// sent-email audit log.
//
// Account passwords never touch the database in clear text; they are
// sealed with pkg/secrets before the INSERT and unsealed on load. The
// Store implements the account source, address book, intent deleter, and
// sent logger interfaces the send pipeline consumes, so a single Store
// value wires the whole persistence side:
//
//	store := postgres.NewStore(pool, enc)
//	p := dispatch.NewPipeline(smtp.Factory(), store,
//		dispatch.WithIntentDeleter(store),
//		dispatch.WithSentLog(store),
//	)
//
// Schema management uses embedded goose migrations; call Migrate once at
// startup. The Janitor prunes consumed audit rows and abandoned intents on
// a cron schedule.
package postgres
