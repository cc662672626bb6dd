package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	log "github.com/golang/glog"
	"google.golang.org/api/option"
)

const scheme = "gs://"

var ErrInvalidURI = errors.New("invalid gs:// URI")

// ObjectRef names a single object (or a wildcard pattern of objects) in a bucket.
type ObjectRef struct {
	Bucket string `json:"bucket"`
	Object string `json:"object"`
}

func (r ObjectRef) URI() string {
	return scheme + r.Bucket + "/" + r.Object
}

func (r ObjectRef) String() string {
	return r.URI()
}

// IsWildcard reports whether the object name is a pattern rather than a single object.
func (r ObjectRef) IsWildcard() bool {
	return strings.Contains(r.Object, "*")
}

// ParseURI splits gs://bucket/path/to/object into its bucket and object parts.
func ParseURI(uri string) (ObjectRef, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(uri), scheme)
	if trimmed == strings.TrimSpace(uri) {
		return ObjectRef{}, fmt.Errorf("%w: expected %q to start with %s", ErrInvalidURI, uri, scheme)
	}

	split := strings.SplitN(trimmed, "/", 2)
	if len(split) != 2 || split[0] == "" || split[1] == "" {
		return ObjectRef{}, fmt.Errorf("%w: expected form gs://bucket/path/to/object, got %q", ErrInvalidURI, uri)
	}

	return ObjectRef{Bucket: split[0], Object: split[1]}, nil
}

type Client struct {
	client *storage.Client
}

func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	sc, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud Storage client: %w", err)
	}
	return &Client{client: sc}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Resolve builds a reference to bucket/object without contacting the service.
func (c *Client) Resolve(bucket, object string) (ObjectRef, error) {
	bucket = strings.TrimSpace(bucket)
	object = strings.TrimPrefix(strings.TrimSpace(object), "/")
	if bucket == "" || object == "" {
		return ObjectRef{}, fmt.Errorf("%w: bucket and object must be non-empty (bucket=%q, object=%q)", ErrInvalidURI, bucket, object)
	}
	return ObjectRef{Bucket: bucket, Object: object}, nil
}

func (c *Client) Attrs(ctx context.Context, ref ObjectRef) (*storage.ObjectAttrs, error) {
	attrs, err := c.client.Bucket(ref.Bucket).Object(ref.Object).Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get attributes of %s: %w", ref, err)
	}
	return attrs, nil
}

// Exists reports whether the referenced object is present. Wildcard references
// cannot be checked and always report true.
func (c *Client) Exists(ctx context.Context, ref ObjectRef) (bool, error) {
	if ref.IsWildcard() {
		log.V(2).Infof("skipping existence check for wildcard reference %s", ref)
		return true, nil
	}
	_, err := c.client.Bucket(ref.Bucket).Object(ref.Object).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", ref, err)
	}
	return true, nil
}

func (c *Client) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return c.client.Bucket(bucket).Object(object).NewReader(ctx)
}
