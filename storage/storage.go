// Package storage decides where downloaded results end up:
// an existing local folder or an s3://bucket/prefix location.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
)

var (
	// ErrNotDir is returned when a local output path is not an existing directory
	ErrNotDir = errors.New("output path must be an existing directory")

	// ErrInvalidTarget is returned for a malformed s3 url
	ErrInvalidTarget = errors.New("invalid output location")
)

// Sink receives the results of an analysis
type Sink interface {
	// Dir is the local directory to download results into
	Dir() string
	// Commit publishes files downloaded into Dir and returns their final locations
	Commit(ctx context.Context, paths []string) ([]string, error)
	Close() error
}

// Options are used when the target is in s3
type Options struct {
	Region string

	// AWSConfig replaces the configuration built from Region and the environment
	AWSConfig *aws.Config
}

// Open returns the sink for target, which is a local directory or an s3:// url
// nothing is contacted over the network
func Open(target string, opts Options) (Sink, error) {
	if strings.HasPrefix(target, s3Scheme+"://") {
		bucket, prefix, err := ParseS3URL(target)
		if err != nil {
			return nil, err
		}
		return NewS3Sink(bucket, prefix, opts)
	}
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %v", ErrNotDir, target)
	}
	return &LocalSink{dir: target}, nil
}

// LocalSink leaves results where they were downloaded
type LocalSink struct {
	dir string
}

// Dir ..
func (s *LocalSink) Dir() string { return s.dir }

// Commit ..
func (s *LocalSink) Commit(ctx context.Context, paths []string) ([]string, error) {
	return paths, nil
}

// Close ..
func (s *LocalSink) Close() error { return nil }
