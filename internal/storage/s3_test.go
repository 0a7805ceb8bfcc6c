package storage

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
)

// fakeBucket aceita PUT/GET/HEAD em /bucket/<key> e exige assinatura.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	headers map[string]http.Header
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "AWS4-HMAC-SHA256 Credential=AK/") {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if r.Header.Get("x-amz-content-sha256") == "" || r.Header.Get("x-amz-date") == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/bucket/")

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.headers[key] = r.Header.Clone()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		data, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeS3(t *testing.T, publicDomain string) (*S3, *fakeBucket) {
	t.Helper()
	bucket := &fakeBucket{objects: map[string][]byte{}, headers: map[string]http.Header{}}
	srv := httptest.NewServer(bucket)
	t.Cleanup(srv.Close)

	b, err := NewS3(S3Config{
		Endpoint:     srv.URL,
		Region:       "auto",
		Bucket:       "bucket",
		AccessKey:    "AK",
		SecretKey:    "SK",
		PublicDomain: publicDomain,
		HTTPClient:   srv.Client(),
	})
	require.NoError(t, err)
	return b, bucket
}

func TestS3RoundTrip(t *testing.T) {
	ctx := context.Background()
	b, bucket := newFakeS3(t, "https://cdn.example.com/")

	ok, err := b.Exists(ctx, "images/2024/05/x_thumbnail.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = b.Open(ctx, "images/2024/05/x_thumbnail.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, Put(ctx, b, "images/2024/05/x_thumbnail.jpg", []byte("jpeg")))

	ok, err = b.Exists(ctx, "images/2024/05/x_thumbnail.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	var got []byte
	require.NoError(t, Read(ctx, b, "images/2024/05/x_thumbnail.jpg", func(r io.Reader) error {
		got, err = io.ReadAll(r)
		return err
	}))
	assert.Equal(t, "jpeg", string(got))

	hdr := bucket.headers["images/2024/05/x_thumbnail.jpg"]
	assert.Equal(t, "image/jpeg", hdr.Get("Content-Type"))
	assert.Equal(t, "public,max-age=31536000,immutable", hdr.Get("Cache-Control"))
	assert.Contains(t, hdr.Get("Authorization"), "SignedHeaders=content-type;host;x-amz-content-sha256;x-amz-date")

	assert.Equal(t, "https://cdn.example.com/images/2024/05/x_thumbnail.jpg", b.URL("images/2024/05/x_thumbnail.jpg"))
}

func TestS3AbortSkipsUpload(t *testing.T) {
	ctx := context.Background()
	b, bucket := newFakeS3(t, "")

	w, err := b.Create(ctx, "a.jpg")
	require.NoError(t, err)
	_, _ = w.Write([]byte("partial"))
	require.NoError(t, w.Abort())

	assert.Empty(t, bucket.objects)
	assert.True(t, strings.HasSuffix(b.URL("a.jpg"), "/bucket/a.jpg"))
}

func TestS3ConfigValidation(t *testing.T) {
	_, err := NewS3(S3Config{Endpoint: "minio:9000", Region: "r", Bucket: "b", AccessKey: "a", SecretKey: "s"})
	assert.Error(t, err)
	_, err = NewS3(S3Config{Endpoint: "https://x", Region: "r", Bucket: "", AccessKey: "a", SecretKey: "s"})
	assert.Error(t, err)
}

func TestCanonicalHelpers(t *testing.T) {
	assert.Equal(t, "/bucket/a%20b.jpg", canonicalURI("/bucket/a b.jpg"))
	assert.Equal(t, "/", canonicalURI(""))
	assert.Equal(t, "a%2Fb", uriEncode("a/b", true))
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", emptyPayloadHash)
}
