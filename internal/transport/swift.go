package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ncw/swift/v2"

	"courier/internal/config"
)

// Swift uploads files to an OpenStack Swift container. Files larger than the
// chunk size are written as dynamic large objects.
type Swift struct {
	conn      *swift.Connection
	container string
	chunkSize int64
	timeout   time.Duration
}

// NewSwift authenticates against the Swift API.
func NewSwift(ctx context.Context, cfg config.Swift, timeout time.Duration) (*Swift, error) {
	conn := &swift.Connection{
		UserName: cfg.Username,
		ApiKey:   cfg.APIKey,
		AuthUrl:  cfg.AuthURL,
		Domain:   cfg.Domain,
		Region:   cfg.Region,
	}
	if timeout > 0 {
		conn.Timeout = timeout
	}
	if err := conn.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("swift: authenticate: %w", err)
	}
	return &Swift{
		conn:      conn,
		container: strings.TrimSpace(cfg.Container),
		chunkSize: int64(cfg.ChunkSize.Bytes()),
		timeout:   timeout,
	}, nil
}

// Send uploads the file as a single object, or as segments once it exceeds
// the chunk size. A completed upload is 201; refusals carry Swift's status
// code without an error.
func (s *Swift) Send(ctx context.Context, localPath, remoteKey string) (int, error) {
	ctx, cancel := boundContext(ctx, s.timeout)
	defer cancel()

	file, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", localPath, err)
	}

	if s.chunkSize > 0 && info.Size() > s.chunkSize {
		dest, err := s.conn.DynamicLargeObjectCreate(ctx, &swift.LargeObjectOpts{
			Container:   s.container,
			ObjectName:  remoteKey,
			ChunkSize:   s.chunkSize,
			ContentType: "application/octet-stream",
		})
		if err != nil {
			return statusFromSwiftError(err)
		}
		if _, err := io.Copy(dest, file); err != nil {
			_ = dest.Close()
			return statusFromSwiftError(err)
		}
		if err := dest.Close(); err != nil {
			return statusFromSwiftError(err)
		}
		return StatusCreated, nil
	}

	if _, err := s.conn.ObjectPut(ctx, s.container, remoteKey, file, false, "", "application/octet-stream", nil); err != nil {
		return statusFromSwiftError(err)
	}
	return StatusCreated, nil
}

func statusFromSwiftError(err error) (int, error) {
	var swErr *swift.Error
	if errors.As(err, &swErr) && swErr.StatusCode >= 400 && swErr.StatusCode < 500 {
		return swErr.StatusCode, nil
	}
	return 0, fmt.Errorf("swift upload: %w", err)
}
