//go:build !unix

package store

import "context"

// fileLock is a no-op where flock(2) is unavailable; only the in-process
// mutex serializes access there.
type fileLock struct{}

func acquireFileLock(ctx context.Context, _ string) (*fileLock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &fileLock{}, nil
}

func (*fileLock) release() {}
