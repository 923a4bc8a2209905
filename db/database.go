package db

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"go-validator-pool-sync/logger"
	"go-validator-pool-sync/model"
	"go-validator-pool-sync/service"
)

const createSnapshots = `CREATE TABLE IF NOT EXISTS pool_snapshots (
	block_number         BIGINT  NOT NULL,
	staking_epoch        BIGINT  NOT NULL,
	staking_address      TEXT    NOT NULL,
	mining_address       TEXT    NOT NULL,
	is_active            BOOLEAN NOT NULL,
	is_to_be_elected     BOOLEAN NOT NULL,
	is_pending_validator BOOLEAN NOT NULL,
	is_current_validator BOOLEAN NOT NULL,
	candidate_stake      NUMERIC NOT NULL,
	total_stake          NUMERIC NOT NULL,
	banned_until         NUMERIC NOT NULL,
	ban_count            BIGINT  NOT NULL,
	is_available         BOOLEAN NOT NULL,
	number_of_acks       BIGINT  NOT NULL,
	PRIMARY KEY (block_number, staking_address)
)`

const insertSnapshot = `INSERT INTO pool_snapshots (block_number, staking_epoch, staking_address, mining_address,
	is_active, is_to_be_elected, is_pending_validator, is_current_validator,
	candidate_stake, total_stake, banned_until, ban_count, is_available, number_of_acks)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10::numeric, $11::numeric, $12, $13, $14)
ON CONFLICT (block_number, staking_address) DO NOTHING`

// Pool is the subset of *pgxpool.Pool the database uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Database struct {
	Pool Pool
}

func NewDatabase(pool Pool) *Database {
	return &Database{
		Pool: pool,
	}
}

// Connect opens a connection pool to url.
func Connect(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	connConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, errors.Wrap(err, "invalid database url")
	}
	connConfig.MaxConns = maxConns
	pool, err := pgxpool.ConnectConfig(ctx, connConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	return pool, nil
}

func (db *Database) CreateSchema(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, createSnapshots)
	return errors.Wrap(err, "failed to create pool_snapshots")
}

/*
This method stores one row per tracked pool of the context in the table
pool_snapshots, all rows in a single batch
*/
func (db *Database) InsertSnapshot(ctx context.Context, c *model.GlobalContext) error {
	if len(c.Pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range c.Pools {
		batch.Queue(insertSnapshot,
			int64(c.CurrentBlockNumber),
			int64(c.StakingEpoch),
			p.StakingAddress,
			p.MiningAddress,
			p.IsActive,
			p.IsToBeElected,
			p.IsPendingValidator,
			p.IsCurrentValidator,
			p.CandidateStake.String(),
			p.TotalStake.String(),
			p.BannedUntil.String(),
			int64(p.BanCount),
			p.IsAvailable,
			int64(p.NumberOfAcks),
		)
	}
	br := db.Pool.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return errors.Wrapf(err, "failed to store snapshot of block %d", c.CurrentBlockNumber)
		}
	}
	return errors.Wrap(br.Close(), "failed to store snapshot")
}

func (db *Database) DeleteSnapshots(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, "DELETE FROM pool_snapshots")
	return errors.Wrap(err, "failed to delete snapshots")
}

// Snapshotter returns the last committed context.
type Snapshotter interface {
	Snapshot() *model.GlobalContext
}

// Record stores the committed context after every completed pass until events
// is closed or ctx is done. A block is stored once. Failures are logged only.
func (db *Database) Record(ctx context.Context, events <-chan service.Event, src Snapshotter) {
	var last uint64
	stored := false
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind != service.PassFinished {
				continue
			}
			c := src.Snapshot()
			if stored && c.CurrentBlockNumber == last {
				continue
			}
			if err := db.InsertSnapshot(ctx, c); err != nil {
				logger.LogError(err)
				continue
			}
			last, stored = c.CurrentBlockNumber, true
			logger.LogInfo("stored snapshot",
				zap.Uint64("block", c.CurrentBlockNumber),
				zap.Int("pools", len(c.Pools)))
		}
	}
}
