package blobstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPFSClient_Put(t *testing.T) {
	var gotName, gotBody, gotPin string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/add", r.URL.Path)
		gotPin = r.URL.Query().Get("pin")
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		gotName, gotBody = hdr.Filename, string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Name":"pdd.pdf","Hash":"QmTestHash","Size":"12"}`))
	}))
	defer srv.Close()

	c := NewIPFSClient(srv.URL, "https://gateway.example/ipfs", 0)
	obj, err := c.Put(context.Background(), "pdd.pdf", "application/pdf", []byte("project data"))
	require.NoError(t, err)
	assert.Equal(t, "QmTestHash", obj.CID)
	assert.Equal(t, "https://gateway.example/ipfs/QmTestHash", obj.URL)
	assert.Equal(t, int64(12), obj.Size)
	assert.Equal(t, "pdd.pdf", gotName)
	assert.Equal(t, "project data", gotBody)
	assert.Equal(t, "true", gotPin)
}

func TestIPFSClient_PutErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("daemon down"))
	}))
	defer srv.Close()

	c := NewIPFSClient(srv.URL, "", 0)
	_, err := c.Put(context.Background(), "a.txt", "text/plain", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestLocalStore_PutIsContentAddressed(t *testing.T) {
	dir := t.TempDir()
	s := &LocalStore{Dir: dir}
	a, err := s.Put(context.Background(), "a.txt", "text/plain", []byte("same bytes"))
	require.NoError(t, err)
	b, err := s.Put(context.Background(), "b.txt", "text/plain", []byte("same bytes"))
	require.NoError(t, err)

	assert.Equal(t, a.CID, b.CID)
	assert.Equal(t, "sha3-"+Digest([]byte("same bytes")), a.CID)
	raw, err := os.ReadFile(filepath.Join(dir, a.CID))
	require.NoError(t, err)
	assert.Equal(t, "same bytes", string(raw))
	assert.Contains(t, a.URL, "file://")
}

func TestDigest(t *testing.T) {
	// SHA3-256 of the empty string.
	assert.Equal(t, "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a", Digest(nil))
}
