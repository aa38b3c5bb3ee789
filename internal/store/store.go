// Package store persists tournaments and their fixtures with sqlx.
//
// Every method takes a Querier so callers decide whether it runs on the
// pool or inside their transaction. Queries are written with ? placeholders
// and rebound for the connected driver.
package store

import "github.com/jmoiron/sqlx"

// Stores bundles the per-table stores over one database.
type Stores struct {
	Tournaments *TournamentStore
	Players     *PlayerStore
	Fixtures    *FixtureStore
	Matches     *MatchStore
}

func NewStores(db *sqlx.DB) *Stores {
	return &Stores{
		Tournaments: NewTournamentStore(db),
		Players:     NewPlayerStore(db),
		Fixtures:    NewFixtureStore(db),
		Matches:     NewMatchStore(db),
	}
}
