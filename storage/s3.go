package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

const (
	s3Scheme = "s3"

	// optional json {"id": .., "secret": ..}, the default aws credential chain is used otherwise
	awsCredsEnvVar = "AWSCREDS"
)

type awsCredentials struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

// ParseS3URL splits s3://bucket/prefix
func ParseS3URL(raw string) (bucket, prefix string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if u.Scheme != s3Scheme || u.Host == "" {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidTarget, raw)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

func loadAWSConfig(region string) (*aws.Config, error) {
	conf := &aws.Config{}
	if region != "" {
		conf.Region = aws.String(region)
	}
	if secret := os.Getenv(awsCredsEnvVar); secret != "" {
		creds := &awsCredentials{}
		if err := json.Unmarshal([]byte(secret), creds); err != nil {
			return nil, fmt.Errorf("error unmarshalling %v: %w", awsCredsEnvVar, err)
		}
		conf.Credentials = credentials.NewStaticCredentials(creds.ID, creds.Secret, "")
	}
	return conf, nil
}

// S3Sink downloads into a temporary directory and uploads to a bucket on commit
type S3Sink struct {
	bucket   string
	prefix   string
	dir      string
	uploader *s3manager.Uploader
}

// NewS3Sink ..
func NewS3Sink(bucket, prefix string, opts Options) (*S3Sink, error) {
	conf := opts.AWSConfig
	if conf == nil {
		var err error
		if conf, err = loadAWSConfig(opts.Region); err != nil {
			return nil, err
		}
	}
	sess, err := session.NewSession(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws session: %w", err)
	}
	dir, err := ioutil.TempDir("", "islandcompare-")
	if err != nil {
		return nil, err
	}
	return &S3Sink{
		bucket:   bucket,
		prefix:   prefix,
		dir:      dir,
		uploader: s3manager.NewUploader(sess),
	}, nil
}

// Dir ..
func (s *S3Sink) Dir() string { return s.dir }

// Commit uploads every file under prefix and returns their s3 urls
func (s *S3Sink) Commit(ctx context.Context, paths []string) ([]string, error) {
	uris := make([]string, 0, len(paths))
	for _, p := range paths {
		key := path.Join(s.prefix, filepath.Base(p))
		if err := s.upload(ctx, p, key); err != nil {
			return uris, err
		}
		uris = append(uris, fmt.Sprintf("%v://%v/%v", s3Scheme, s.bucket, key))
	}
	return uris, nil
}

func (s *S3Sink) upload(ctx context.Context, p, key string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %v to s3://%v/%v: %w", p, s.bucket, key, err)
	}
	return nil
}

// Close removes the temporary directory
func (s *S3Sink) Close() error {
	return os.RemoveAll(s.dir)
}
