// cmd/archiver/main.go is the asynchronous event archiver: it pops game feed
// events from the Redis queue and persists them to PostgreSQL in batches.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cardtable/uno-service/internal/cache"
	"github.com/cardtable/uno-service/internal/config"
	"github.com/cardtable/uno-service/internal/database"
)

// archiverConfig extends the service config with the batching knobs only the
// archiver cares about.
type archiverConfig struct {
	BatchSize  int           `env:"ARCHIVER_BATCH_SIZE" envDefault:"20"`
	FlushDelay time.Duration `env:"ARCHIVER_FLUSH_DELAY" envDefault:"500ms"`
}

// Archiver drains the event queue into the game_events table. Records are
// accumulated into a batch and flushed on size or on a timer, whichever
// comes first.
type Archiver struct {
	rdb        *redis.Client
	log        *logrus.Logger
	queueName  string
	batchSize  int
	flushDelay time.Duration

	batchMu sync.Mutex
	batch   []cache.EventRecord
}

func main() {
	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	var acfg archiverConfig
	if err := env.Parse(&acfg); err != nil {
		log.Fatalf("config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.RedisAddr == "" || cfg.DatabaseURL == "" {
		log.Fatal("the archiver needs both REDIS_ADDR and DATABASE_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Connect(ctx, cfg.DatabaseURL); err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.Close()
	if err := ensureEventSchema(ctx); err != nil {
		log.Fatalf("database schema: %v", err)
	}

	a := &Archiver{
		rdb:        redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB}),
		log:        log,
		queueName:  cfg.EventQueueName,
		batchSize:  acfg.BatchSize,
		flushDelay: acfg.FlushDelay,
		batch:      make([]cache.EventRecord, 0, acfg.BatchSize),
	}

	log.Infof("archiver started, draining %q", a.queueName)
	a.run(ctx)
	a.flush(context.Background())
	log.Info("archiver shutting down")
}

// run reads the queue until the context is cancelled, flushing the batch on
// the timer.
func (a *Archiver) run(ctx context.Context) {
	ticker := time.NewTicker(a.flushDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.flush(ctx)
		default:
			// BLPop with a short timeout keeps the loop responsive to
			// cancellation.
			res, err := a.rdb.BLPop(ctx, 3*time.Second, a.queueName).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || ctx.Err() != nil {
					continue
				}
				a.log.WithError(err).Error("blpop failed")
				time.Sleep(time.Second)
				continue
			}
			if len(res) < 2 {
				continue
			}

			var record cache.EventRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				a.log.WithError(err).Warn("dropping malformed event record")
				continue
			}
			a.append(ctx, record)
		}
	}
}

func (a *Archiver) append(ctx context.Context, record cache.EventRecord) {
	a.batchMu.Lock()
	a.batch = append(a.batch, record)
	full := len(a.batch) >= a.batchSize
	a.batchMu.Unlock()
	if full {
		a.flush(ctx)
	}
}

// flush inserts the accumulated batch in one statement per record inside a
// transaction. Failed batches are logged and dropped; the feed is advisory
// history, not game state.
func (a *Archiver) flush(ctx context.Context) {
	a.batchMu.Lock()
	if len(a.batch) == 0 {
		a.batchMu.Unlock()
		return
	}
	batch := a.batch
	a.batch = make([]cache.EventRecord, 0, a.batchSize)
	a.batchMu.Unlock()

	tx, err := database.DB.Begin(ctx)
	if err != nil {
		a.log.WithError(err).Errorf("begin failed, dropping %d events", len(batch))
		return
	}
	defer tx.Rollback(ctx)

	q := `
		INSERT INTO game_events (session_id, channel_key, event_type, actor_id, message, occurred_at)
		VALUES ($1, $2, $3, $4, $5, to_timestamp($6::double precision / 1000))
	`
	for _, r := range batch {
		if _, err := tx.Exec(ctx, q, r.SessionID, r.ChannelKey, r.EventType, r.ActorID, r.Message, r.Timestamp); err != nil {
			a.log.WithError(err).Errorf("insert failed, dropping %d events", len(batch))
			return
		}
	}
	if err := tx.Commit(ctx); err != nil {
		a.log.WithError(err).Error("commit failed")
		return
	}
	a.log.Debugf("archived %d events", len(batch))
}

func ensureEventSchema(ctx context.Context) error {
	q := `
		CREATE TABLE IF NOT EXISTS game_events (
			id          BIGSERIAL PRIMARY KEY,
			session_id  UUID NOT NULL,
			channel_key TEXT NOT NULL,
			event_type  TEXT NOT NULL,
			actor_id    TEXT NOT NULL,
			message     TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL
		)
	`
	_, err := database.DB.Exec(ctx, q)
	return err
}
