package state

import (
	"context"
	"time"

	"github.com/joeblew999/geodash/internal/db"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Options selects and configures a backend.
type Options struct {
	Backend   string // file, duckdb, redis or none
	Path      string
	RedisAddr string
	RedisPass string
}

// Open builds the configured Store.
func Open(ctx context.Context, opts Options) (Store, error) {
	log := zap.L().With(zap.String("component", "state"))

	switch opts.Backend {
	case "", "file":
		log.Info("state backend", zap.String("backend", "file"), zap.String("path", opts.Path))
		return NewFileStore(opts.Path), nil

	case "duckdb":
		conn, err := db.Open(db.Config{DataDir: opts.Path, DBName: "geodash"})
		if err != nil {
			return nil, eris.Wrap(err, "state: open duckdb")
		}
		log.Info("state backend", zap.String("backend", "duckdb"), zap.String("path", opts.Path))
		return NewDuckStore(conn), nil

	case "redis":
		client := OpenRedis(opts.RedisAddr, opts.RedisPass)
		if client == nil {
			return nil, eris.New("state: redis backend needs an address")
		}
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pctx).Err(); err != nil {
			client.Close()
			return nil, eris.Wrapf(err, "state: ping redis %s", opts.RedisAddr)
		}
		log.Info("state backend", zap.String("backend", "redis"), zap.String("addr", opts.RedisAddr))
		return NewRedisStore(client, "geodash:"), nil

	case "none":
		return Nop{}, nil
	}
	return nil, eris.Errorf("state: unknown backend %q", opts.Backend)
}
