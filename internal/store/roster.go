package store

import (
	"context"
	"fmt"

	"guild_stats/internal/app"
)

// UsersCollection holds one document per known player, keyed by lord id
const UsersCollection = "users"

// LoadRoster reads the whole users collection
func LoadRoster(ctx context.Context, s DocumentStore) (map[string]app.RosterUser, error) {
	docs, err := s.GetAll(ctx, UsersCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}

	roster := make(map[string]app.RosterUser, len(docs))
	for id, doc := range docs {
		roster[id] = app.RosterUserFromDocument(id, doc)
	}
	return roster, nil
}

// FindUserByUID returns the roster entry linked to an account uid
func FindUserByUID(ctx context.Context, s DocumentStore, uid string) (*app.RosterUser, error) {
	docs, err := s.QueryEqual(ctx, UsersCollection, "uid", uid)
	if err != nil {
		return nil, fmt.Errorf("failed to look up uid: %w", err)
	}
	for id, doc := range docs {
		u := app.RosterUserFromDocument(id, doc)
		return &u, nil
	}
	return nil, fmt.Errorf("user with uid %s: %w", uid, ErrNotFound)
}
