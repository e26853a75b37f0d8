package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abbasifarasat36-dev/globaldragon/internal/store"
)

// get decodes the record at path into v and maps ErrNotFound to notFound.
func get(ctx context.Context, st store.Store, path string, v any, notFound error) error {
	err := store.Decode(ctx, st, path, v)
	if errors.Is(err, store.ErrNotFound) {
		return notFound
	}
	return err
}

// listAll decodes every child of collection.
func listAll[T any](ctx context.Context, st store.Store, collection string) ([]*T, error) {
	items, err := st.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(items))
	for key, raw := range items {
		v := new(T)
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, key, err)
		}
		out = append(out, v)
	}
	return out, nil
}
