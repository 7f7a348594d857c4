package models

import "github.com/google/uuid"

// assignID fills an empty primary key so inserts work on drivers without gen_random_uuid().
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model, in dependency order, for AutoMigrate on sqlite.
func All() []any {
	return []any{&Customer{}, &Mandate{}, &Payment{}, &AuthToken{}}
}
