package minio

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FairPlay-Intelligence/pkg/errors"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

const (
	// MaxPGNBytes caps a stored game. The HTTP layer rejects larger uploads
	// before they reach the store; this is the hard backstop.
	MaxPGNBytes = 16 << 20

	pgnContentType = "application/vnd.chess-pgn"
	keyPrefix      = "games/"
	keySuffix      = ".pgn"
)

// ObjectKey returns the bucket key holding one game's notation.
func ObjectKey(gameID common.ID) string {
	return keyPrefix + string(gameID) + keySuffix
}

// ObjectInfo describes one stored PGN object.
type ObjectInfo struct {
	Bucket       string
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// PGNStore persists and serves raw game notation.
type PGNStore interface {
	Put(ctx context.Context, gameID common.ID, pgn []byte) (*ObjectInfo, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type pgnStore struct {
	client *Client
	logger logging.Logger
}

// NewPGNStore builds a PGNStore on top of an established client.
func NewPGNStore(client *Client, log logging.Logger) PGNStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &pgnStore{client: client, logger: log.Named("pgn-store")}
}

func (s *pgnStore) Put(ctx context.Context, gameID common.ID, pgn []byte) (*ObjectInfo, error) {
	if gameID == "" {
		return nil, errors.New(errors.ErrCodeBadRequest, "game id is required")
	}
	if len(pgn) == 0 {
		return nil, errors.New(errors.ErrCodePGNEmpty, "pgn is empty")
	}
	if len(pgn) > MaxPGNBytes {
		return nil, errors.Newf(errors.ErrCodePGNTooLarge,
			"pgn of %d bytes exceeds the %d byte limit", len(pgn), MaxPGNBytes)
	}

	key := ObjectKey(gameID)
	info, err := s.client.api.PutObject(ctx, s.client.Bucket(), key,
		bytes.NewReader(pgn), int64(len(pgn)),
		minio.PutObjectOptions{ContentType: pgnContentType})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeObjectStoreFailed, "storing pgn "+key)
	}

	s.logger.Debug("pgn stored",
		logging.String("key", key),
		logging.Int64("size", info.Size))

	return &ObjectInfo{
		Bucket:      s.client.Bucket(),
		Key:         key,
		Size:        info.Size,
		ETag:        info.ETag,
		ContentType: pgnContentType,
	}, nil
}

func (s *pgnStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.api.GetObject(ctx, s.client.Bucket(), key, minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.Newf(errors.ErrCodeObjectNotFound, "pgn %s not found", key)
		}
		return nil, errors.Wrap(err, errors.ErrCodeObjectStoreFailed, "opening pgn "+key)
	}
	defer obj.Close()

	// minio opens objects lazily, so a missing key surfaces on first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.Newf(errors.ErrCodeObjectNotFound, "pgn %s not found", key)
		}
		return nil, errors.Wrap(err, errors.ErrCodeObjectStoreFailed, "reading pgn "+key)
	}
	return data, nil
}

func (s *pgnStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.api.StatObject(ctx, s.client.Bucket(), key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeObjectStoreFailed, "checking pgn "+key)
	}
	return true, nil
}

func (s *pgnStore) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	info, err := s.client.api.StatObject(ctx, s.client.Bucket(), key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.Newf(errors.ErrCodeObjectNotFound, "pgn %s not found", key)
		}
		return nil, errors.Wrap(err, errors.ErrCodeObjectStoreFailed, "inspecting pgn "+key)
	}
	return &ObjectInfo{
		Bucket:       s.client.Bucket(),
		Key:          key,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

func (s *pgnStore) Delete(ctx context.Context, key string) error {
	if err := s.client.api.RemoveObject(ctx, s.client.Bucket(), key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeObjectStoreFailed, "removing pgn "+key)
	}
	s.logger.Debug("pgn removed", logging.String("key", key))
	return nil
}

func (s *pgnStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = s.client.config.PresignExpiry
	}
	u, err := s.client.api.PresignedGetObject(ctx, s.client.Bucket(), key, expiry, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeObjectStoreFailed, "presigning pgn "+key)
	}
	return u.String(), nil
}

func isNotFound(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
