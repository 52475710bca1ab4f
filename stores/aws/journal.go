package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"roomsync/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// objectPutter is the part of *s3.Client the journal needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Journal struct {
	s3Client objectPutter
	bucket   string
}

// NewJournal loads the default AWS configuration and writes one object per
// change into bucketName.
func NewJournal(ctx context.Context, bucketName string) (*s3Journal, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &s3Journal{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}, nil
}

func objectKey(c core.Change) (string, error) {
	if c.Room == "" || c.Room == "." || c.Room == ".." || path.Base(c.Room) != c.Room {
		return "", fmt.Errorf("invalid room id %q", c.Room)
	}
	return fmt.Sprintf("rooms/%s/%020d-%s.json", c.Room, c.Version, c.ID), nil
}

func (s *s3Journal) Append(ctx context.Context, c core.Change) error {
	key, err := objectKey(c)
	if err != nil {
		return err
	}
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload change %s: %v", key, err)
	}

	logrus.WithFields(logrus.Fields{
		"bucket": s.bucket,
		"key":    key,
	}).Debug("Change journaled")
	return nil
}

func (s *s3Journal) Close() error {
	return nil
}
