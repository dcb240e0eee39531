// Package blobstore stores project documents in content-addressed storage.
package blobstore

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/crypto/sha3"
)

// Object is a stored blob.
type Object struct {
	CID  string `json:"cid"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// BlobStore defines what document uploads need from storage.
type BlobStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (Object, error)
	Name() string
}

// Digest is the hex SHA3-256 of data.
func Digest(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func joinURL(base, cid string) string {
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + cid
}

// IPFSClient pins blobs through the IPFS HTTP API (/api/v0/add).
type IPFSClient struct {
	http       *resty.Client
	gatewayURL string
}

type ipfsAddResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

func NewIPFSClient(apiURL, gatewayURL string, timeout time.Duration) *IPFSClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &IPFSClient{
		http: resty.New().
			SetBaseURL(strings.TrimRight(apiURL, "/")).
			SetTimeout(timeout),
		gatewayURL: gatewayURL,
	}
}

func (c *IPFSClient) Name() string { return "ipfs" }

func (c *IPFSClient) Put(ctx context.Context, name, contentType string, data []byte) (Object, error) {
	var out ipfsAddResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("pin", "true").
		SetMultipartField("file", name, contentType, bytes.NewReader(data)).
		SetResult(&out).
		Post("/api/v0/add")
	if err != nil {
		return Object{}, fmt.Errorf("ipfs add: %w", err)
	}
	if resp.IsError() {
		return Object{}, fmt.Errorf("ipfs add: status %d body: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	if out.Hash == "" {
		return Object{}, fmt.Errorf("ipfs add: response carried no hash")
	}
	return Object{CID: out.Hash, URL: joinURL(c.gatewayURL, out.Hash), Size: int64(len(data))}, nil
}

// LocalStore writes blobs under a directory, named by their SHA3 digest.
type LocalStore struct {
	Dir        string
	GatewayURL string
}

func (s *LocalStore) Name() string { return "local" }

func (s *LocalStore) Put(ctx context.Context, name, contentType string, data []byte) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	cid := "sha3-" + Digest(data)
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return Object{}, fmt.Errorf("local blob store: %w", err)
	}
	path := filepath.Join(s.Dir, cid)
	if _, err := os.Stat(path); err != nil {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return Object{}, fmt.Errorf("local blob store: %w", err)
		}
	}
	url := joinURL(s.GatewayURL, cid)
	if url == "" {
		url = "file://" + path
	}
	return Object{CID: cid, URL: url, Size: int64(len(data))}, nil
}
