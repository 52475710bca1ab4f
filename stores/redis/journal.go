package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"roomsync/core"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Each room's changes live in a list under "roomsync:changes:"+roomID,
// newest at the head.
const keyPrefix = "roomsync:changes:"

// DefaultMaxLen caps how many changes are kept per room.
const DefaultMaxLen = 1000

type redisJournal struct {
	rdb    *goredis.Client
	maxLen int64
}

func NewJournal(options *goredis.Options, maxLen int64) (*redisJournal, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	rdb := goredis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", options.Addr, err)
	}

	return &redisJournal{rdb: rdb, maxLen: maxLen}, nil
}

func roomKey(roomID string) string {
	return keyPrefix + roomID
}

func (db *redisJournal) Append(ctx context.Context, c core.Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}

	key := roomKey(c.Room)
	_, err = db.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, db.maxLen-1)
		return nil
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"room_id": c.Room,
			"version": c.Version,
		}).WithError(err).Error("Failed to journal change")
		return err
	}
	return nil
}

func (db *redisJournal) History(ctx context.Context, roomID string, limit int) ([]core.Change, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	values, err := db.rdb.LRange(ctx, roomKey(roomID), 0, stop).Result()
	if err != nil && err != goredis.Nil {
		return nil, err
	}

	changes := make([]core.Change, 0, len(values))
	for _, v := range values {
		var c core.Change
		if err := json.Unmarshal([]byte(v), &c); err != nil {
			logrus.WithField("room_id", roomID).WithError(err).Warn("Skipping corrupt journal entry")
			continue
		}
		changes = append(changes, c)
	}
	return changes, nil
}

func (db *redisJournal) Close() error {
	return db.rdb.Close()
}
