package storage_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docextract/internal/config"
	"docextract/internal/domain"
	"docextract/internal/port"
	"docextract/internal/storage"
)

func TestNew_None(t *testing.T) {
	for _, provider := range []string{"", "none", " NONE "} {
		store, bucket, err := storage.New(context.Background(), &config.StorageConfig{Provider: provider})
		require.NoError(t, err)
		assert.Empty(t, bucket)

		out, err := store.Upload(context.Background(), port.UploadInput{Bucket: "b", Key: "k", Body: strings.NewReader("x")})
		require.NoError(t, err)
		assert.Equal(t, "noop://b/k", out.Location)
		assert.NoError(t, store.Delete(context.Background(), "b", "k"))
	}
}

func TestNew_ConfigErrors(t *testing.T) {
	_, _, err := storage.New(context.Background(), &config.StorageConfig{Provider: "azure"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, _, err = storage.New(context.Background(), &config.StorageConfig{Provider: "s3"})
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)

	_, _, err = storage.New(context.Background(), &config.StorageConfig{Provider: "gcs"})
	assert.ErrorIs(t, err, domain.ErrConfigurationMissing)
}

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Header http.Header
}

func fakeObjectServer(t *testing.T, status int, header map[string]string) (*httptest.Server, *[]recordedRequest) {
	var mu sync.Mutex
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body), Header: r.Header.Clone()})
		mu.Unlock()
		for k, v := range header {
			w.Header().Set(k, v)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func TestS3_UploadAndDelete(t *testing.T) {
	srv, reqs := fakeObjectServer(t, http.StatusOK, map[string]string{"ETag": `"abc123"`})

	store, bucket, err := storage.New(context.Background(), &config.StorageConfig{
		Provider: "s3",
		S3: config.S3Config{
			Region: "us-east-1", Bucket: "archive", Endpoint: srv.URL,
			AccessKey: "test", SecretKey: "secret",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "archive", bucket)

	out, err := store.Upload(context.Background(), port.UploadInput{
		Bucket: bucket, Key: "documents/1/record.json", Body: strings.NewReader(`{"ok":true}`), ContentType: "application/json",
		Size: 11, Metadata: map[string]string{"document-id": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, `"abc123"`, out.ETag)
	assert.Contains(t, out.Location, "/archive/documents/1/record.json")

	require.NoError(t, store.Delete(context.Background(), bucket, "documents/1/record.json"))

	require.Len(t, *reqs, 2)
	assert.Equal(t, http.MethodPut, (*reqs)[0].Method)
	assert.Equal(t, "/archive/documents/1/record.json", (*reqs)[0].Path)
	assert.Contains(t, (*reqs)[0].Body, `{"ok":true}`)
	assert.Equal(t, "1", (*reqs)[0].Header.Get("X-Amz-Meta-Document-Id"))
	assert.Equal(t, http.MethodDelete, (*reqs)[1].Method)
}

func TestGCS_Delete(t *testing.T) {
	srv, reqs := fakeObjectServer(t, http.StatusNotFound, map[string]string{"Content-Type": "application/json"})
	t.Setenv("STORAGE_EMULATOR_HOST", strings.TrimPrefix(srv.URL, "http://"))

	store, bucket, err := storage.New(context.Background(), &config.StorageConfig{
		Provider: "gcs",
		GCS:      config.GCSConfig{Bucket: "archive"},
	})
	require.NoError(t, err)
	assert.Equal(t, "archive", bucket)

	// a missing object is treated as already deleted
	require.NoError(t, store.Delete(context.Background(), bucket, "documents/1/source.pdf"))
	require.NotEmpty(t, *reqs)
	assert.Equal(t, http.MethodDelete, (*reqs)[0].Method)
	assert.Contains(t, (*reqs)[0].Path, "/b/archive/o/")
}
