package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const notifyChannel = "records"

// Postgres stores records in a single jsonb table (see migrations) and
// relays changes through LISTEN/NOTIFY.
type Postgres struct {
	db   *pgxpool.Pool
	subs *fanout

	listenOnce sync.Once
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db, subs: newFanout(), done: make(chan struct{})}
}

func (p *Postgres) Get(ctx context.Context, path string) (json.RawMessage, error) {
	key, err := Clean(path)
	if err != nil {
		return nil, err
	}
	var raw []byte
	err = p.db.QueryRow(ctx, `SELECT value FROM records WHERE path = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return raw, nil
}

func (p *Postgres) Set(ctx context.Context, path string, value any) error {
	key, err := Clean(path)
	if err != nil {
		return err
	}
	raw, err := toRecord(value)
	if err != nil {
		return err
	}
	if raw == nil {
		_, err = p.db.Exec(ctx,
			`DELETE FROM records WHERE path = $1 OR starts_with(path, $2)`, key, key+"/")
		if err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO records (path, parent, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, Parent(key), []byte(raw))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Update locks the row for the duration of fn.
func (p *Postgres) Update(ctx context.Context, path string, fn UpdateFunc) (json.RawMessage, error) {
	key, err := Clean(path)
	if err != nil {
		return nil, err
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var current []byte
	err = tx.QueryRow(ctx, `SELECT value FROM records WHERE path = $1 FOR UPDATE`, key).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	raw, err := toRecord(next)
	if err != nil {
		return nil, err
	}

	if raw == nil {
		if _, err := tx.Exec(ctx, `DELETE FROM records WHERE path = $1 OR starts_with(path, $2)`, key, key+"/"); err != nil {
			return nil, err
		}
	} else {
		_, err = tx.Exec(ctx, `
			INSERT INTO records (path, parent, value, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		`, key, Parent(key), []byte(raw))
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return raw, nil
}

func (p *Postgres) List(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	c, err := Clean(collection)
	if err != nil {
		return nil, err
	}
	rows, err := p.db.Query(ctx, `SELECT path, value FROM records WHERE parent = $1`, c)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c, err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var path string
		var raw []byte
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, err
		}
		out[Base(path)] = raw
	}
	return out, rows.Err()
}

func (p *Postgres) Subscribe(ctx context.Context, path string, fn Handler) (func(), error) {
	key, err := Clean(path)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errors.New("store: nil handler")
	}
	p.listenOnce.Do(func() {
		lctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		go p.listen(lctx)
	})
	return p.subs.add(key, fn), nil
}

// listen holds one pooled connection on LISTEN and reconnects with a short
// backoff when it drops.
func (p *Postgres) listen(ctx context.Context) {
	defer close(p.done)
	log := logger.With("component", "store.postgres")

	for ctx.Err() == nil {
		if err := p.listenConn(ctx); err != nil && ctx.Err() == nil {
			log.Warn("listen connection lost", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

func (p *Postgres) listenConn(ctx context.Context) error {
	conn, err := p.db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		p.dispatch(ctx, n.Payload)
	}
}

func (p *Postgres) dispatch(ctx context.Context, path string) {
	if len(p.subs.matching(path)) == 0 {
		return
	}
	raw, err := p.Get(ctx, path)
	if err != nil && !errors.Is(err, ErrNotFound) {
		logger.Warn("reload after notify failed", "path", path, "error", err)
		return
	}
	p.subs.publish(Event{Path: path, Value: raw})
}

func (p *Postgres) Close() error {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
	return nil
}
