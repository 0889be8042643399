package storage

import (
	"context"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseS3URL(t *testing.T) {
	bucket, prefix, err := ParseS3URL("s3://results/islandcompare/run1/")
	require.NoError(t, err)
	assert.Equal(t, "results", bucket)
	assert.Equal(t, "islandcompare/run1", prefix)

	bucket, prefix, err = ParseS3URL("s3://results")
	require.NoError(t, err)
	assert.Equal(t, "results", bucket)
	assert.Equal(t, "", prefix)

	_, _, err = ParseS3URL("s3:///no-bucket")
	assert.True(t, errors.Is(err, ErrInvalidTarget))
}

func TestOpenLocal(t *testing.T) {
	dir := t.TempDir()
	sink, err := Open(dir, Options{})
	require.NoError(t, err)
	defer sink.Close()
	assert.Equal(t, dir, sink.Dir())

	paths := []string{filepath.Join(dir, "Results.gff3")}
	committed, err := sink.Commit(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, paths, committed)

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	_, err = Open(file, Options{})
	assert.True(t, errors.Is(err, ErrNotDir))
	_, err = Open(filepath.Join(dir, "missing"), Options{})
	assert.True(t, errors.Is(err, ErrNotDir))
}

func TestLoadAWSConfig(t *testing.T) {
	t.Setenv(awsCredsEnvVar, `{"id": "AKID", "secret": "SECRET"}`)
	conf, err := loadAWSConfig("ca-central-1")
	require.NoError(t, err)
	assert.Equal(t, "ca-central-1", aws.StringValue(conf.Region))
	value, err := conf.Credentials.Get()
	require.NoError(t, err)
	assert.Equal(t, "AKID", value.AccessKeyID)
	assert.Equal(t, "SECRET", value.SecretAccessKey)

	t.Setenv(awsCredsEnvVar, "not json")
	_, err = loadAWSConfig("")
	assert.Error(t, err)
}

func TestS3SinkCommit(t *testing.T) {
	var mu sync.Mutex
	uploads := map[string]string{}
	router := mux.NewRouter()
	router.HandleFunc("/{bucket}/{key:.+}", func(w http.ResponseWriter, r *http.Request) {
		b, _ := ioutil.ReadAll(r.Body)
		vars := mux.Vars(r)
		mu.Lock()
		uploads[vars["bucket"]+"/"+vars["key"]] = string(b)
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
	}).Methods("PUT")
	server := httptest.NewServer(router)
	defer server.Close()

	sink, err := Open("s3://results/run1", Options{AWSConfig: &aws.Config{
		Endpoint:         aws.String(server.URL),
		Region:           aws.String("us-east-1"),
		S3ForcePathStyle: aws.Bool(true),
		Credentials:      credentials.NewStaticCredentials("AKID", "SECRET", ""),
	}})
	require.NoError(t, err)
	dir := sink.Dir()
	path := filepath.Join(dir, "Results.gff3")
	require.NoError(t, os.WriteFile(path, []byte("##gff-version 3\n"), 0644))

	uris, err := sink.Commit(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://results/run1/Results.gff3"}, uris)
	assert.Equal(t, map[string]string{"results/run1/Results.gff3": "##gff-version 3\n"}, uploads)

	require.NoError(t, sink.Close())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
