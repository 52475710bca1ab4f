package stores

import (
	"context"
	"os"
	"roomsync/core"
	"roomsync/journal"
	"roomsync/stores/aws"
	"roomsync/stores/filesystem"
	"roomsync/stores/redis"
	"roomsync/stores/sqlite"
	"strconv"

	goredis "github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// GetJournal picks the change journal from JOURNAL_TYPE. The journal is an
// audit trail only; nothing reads it back into the room store.
func GetJournal() core.Journal {
	journalType := os.Getenv("JOURNAL_TYPE")
	var j core.Journal
	var err error

	journalField := logrus.Fields{
		"journalType": journalType,
	}

	switch journalType {
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		if basePath == "" {
			basePath = "./data"
		}
		journalField["basePath"] = basePath
		j, err = filesystem.NewJournal(basePath)
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "roomsync.db"
		}
		journalField["dataSourceName"] = dataSourceName
		j, err = sqlite.NewJournal(dataSourceName)
	case "redis":
		addr := os.Getenv("REDIS_ADDR")
		if addr == "" {
			addr = "localhost:6379"
		}
		maxLen, _ := strconv.ParseInt(os.Getenv("REDIS_MAX_LEN"), 10, 64)
		journalField["addr"] = addr
		j, err = redis.NewJournal(&goredis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
		}, maxLen)
	case "s3":
		bucketName := os.Getenv("S3_BUCKET_NAME")
		if bucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 journal type")
		}
		journalField["bucketName"] = bucketName
		j, err = aws.NewJournal(context.Background(), bucketName)
	default:
		j = journal.Nop{}
		journalField["journalType"] = "none"
	}

	if err != nil {
		logrus.WithFields(journalField).WithError(err).Fatal("Failed to open journal")
	}
	logrus.WithFields(journalField).Info("Use journal")
	return j
}
