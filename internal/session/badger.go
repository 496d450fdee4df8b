package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// BadgerConfig configures the on-disk store.
type BadgerConfig struct {
	// Path is ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	// GCDiscardRatio is the value-log garbage ratio that triggers a rewrite.
	GCDiscardRatio float64
}

// BadgerKV stores keys in BadgerDB and relies on entry TTLs for expiry.
type BadgerKV struct {
	db    *badger.DB
	ratio float64
	log   *zap.Logger
}

type badgerLogger struct{ log *zap.SugaredLogger }

func (l badgerLogger) Errorf(f string, a ...interface{})   { l.log.Errorf(f, a...) }
func (l badgerLogger) Warningf(f string, a ...interface{}) { l.log.Warnf(f, a...) }
func (l badgerLogger) Infof(f string, a ...interface{})    { l.log.Debugf(f, a...) }
func (l badgerLogger) Debugf(f string, a ...interface{})   { l.log.Debugf(f, a...) }

func OpenBadger(cfg BadgerConfig, log *zap.Logger) (*BadgerKV, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{log: log.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	ratio := cfg.GCDiscardRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}
	return &BadgerKV{db: db, ratio: ratio, log: log}, nil
}

func (b *BadgerKV) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get %s: %w", key, err)
	}
	return out, nil
}

func (b *BadgerKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("badger set %s: %w", key, err)
	}
	return nil
}

func (b *BadgerKV) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete %s: %w", key, err)
	}
	return nil
}

func (b *BadgerKV) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger keys %s: %w", prefix, err)
	}
	return keys, nil
}

// RunGC rewrites value-log files until badger reports nothing left to
// reclaim. Expired sessions only free disk space once this runs.
func (b *BadgerKV) RunGC(ctx context.Context) error {
	rounds := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := b.db.RunValueLogGC(b.ratio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) || errors.Is(err, badger.ErrGCInMemoryMode) {
			b.log.Debug("value log gc done", zap.Int("rounds", rounds))
			return nil
		}
		if err != nil {
			return fmt.Errorf("value log gc: %w", err)
		}
		rounds++
	}
}

func (b *BadgerKV) Close() error {
	return b.db.Close()
}
