package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/ppiankov/trustbutverify/internal/model"
)

// BadgerConfig configures the Badger-backed log
type BadgerConfig struct {
	Path       string
	InMemory   bool
	SyncWrites bool
	GCInterval time.Duration // Zero disables value log GC
	Logger     *slog.Logger
}

// BadgerLog stores records under keys record/<report>/<seq>
type BadgerLog struct {
	db     *badger.DB
	logger *slog.Logger

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadgerLog opens (or creates) a Badger database for records
func OpenBadgerLog(cfg BadgerConfig) (*BadgerLog, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger path is required for a persistent log")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create badger dir %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(cfg.SyncWrites)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l := &BadgerLog{db: db, logger: logger, stop: make(chan struct{}), done: make(chan struct{})}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		go l.runGC(cfg.GCInterval)
	} else {
		close(l.done)
	}
	return l, nil
}

func recordKey(report string, seq int) []byte {
	return []byte(fmt.Sprintf("record/%s/%08d", report, seq))
}

func recordPrefix(report string) []byte {
	return []byte("record/" + report + "/")
}

// Append stores rec in its own transaction and refuses to overwrite
func (l *BadgerLog) Append(ctx context.Context, report string, seq int, rec *model.VerificationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := *rec
	stored.Sequence = seq
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	key := recordKey(report, seq)
	err = l.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: %s", ErrDuplicate, key)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}

// Records iterates the report prefix; zero-padded keys sort in sequence order
func (l *BadgerLog) Records(ctx context.Context, report string) ([]model.VerificationRecord, error) {
	var records []model.VerificationRecord
	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := recordPrefix(report)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec model.VerificationRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return nil, ErrClosed
	}
	return records, err
}

// Close stops GC and closes the database
func (l *BadgerLog) Close() error {
	var err error
	l.once.Do(func() {
		close(l.stop)
		<-l.done
		err = l.db.Close()
	})
	return err
}

func (l *BadgerLog) runGC(interval time.Duration) {
	defer close(l.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			if err := l.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				l.logger.Warn("badger value log GC", "error", err)
			}
		}
	}
}
