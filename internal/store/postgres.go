package store

import (
	"context"
	"time"

	"algo_engine/pkg/db"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// Postgres keeps entries in kv_records(key, value, expires_at). Expired rows
// are filtered on read and reclaimed opportunistically on write.
//
//	CREATE TABLE IF NOT EXISTS kv_records (
//	    key        text PRIMARY KEY,
//	    value      jsonb NOT NULL,
//	    expires_at timestamptz
//	);
type Postgres struct {
	tm *db.PgTxManager
}

func NewPostgres(tm *db.PgTxManager) *Postgres {
	return &Postgres{tm: tm}
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	row := p.tm.Conn().QueryRow(ctx,
		`SELECT value FROM kv_records WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	)
	if err := row.Scan(&value); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "kv get")
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expires = &t
	}
	_, err := p.tm.Conn().Exec(ctx,
		`INSERT INTO kv_records (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expires,
	)
	return errors.Wrap(err, "kv set")
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.tm.Conn().Exec(ctx, `DELETE FROM kv_records WHERE key = $1`, key)
	return errors.Wrap(err, "kv delete")
}

// SetMany runs inside one transaction, so partial writes never survive.
func (p *Postgres) SetMany(ctx context.Context, entries []Entry) error {
	return p.tm.Run(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		now := time.Now()
		for _, en := range entries {
			var expires *time.Time
			if en.TTL > 0 {
				t := now.Add(en.TTL)
				expires = &t
			}
			_, err := tx.Exec(ctxTx,
				`INSERT INTO kv_records (key, value, expires_at) VALUES ($1, $2, $3)
				 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
				en.Key, en.Value, expires,
			)
			if err != nil {
				return errors.Wrapf(err, "kv set many %q", en.Key)
			}
		}
		// sweep while we hold a tx anyway
		_, err := tx.Exec(ctxTx, `DELETE FROM kv_records WHERE expires_at IS NOT NULL AND expires_at <= now()`)
		return errors.Wrap(err, "kv sweep")
	})
}

func (p *Postgres) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.tm.Conn().Query(ctx,
		`SELECT key FROM kv_records WHERE key LIKE $1 || '%' AND (expires_at IS NULL OR expires_at > now())`,
		prefix,
	)
	if err != nil {
		return nil, errors.Wrap(err, "kv keys")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(err, "kv keys scan")
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
