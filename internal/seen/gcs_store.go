package seen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// ObjectClient is the subset of object storage used by GCSStore.
type ObjectClient interface {
	// ReadObject returns storage.ErrObjectNotExist when the object is absent.
	ReadObject(ctx context.Context, bucket, object string) ([]byte, error)
	WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error
}

// GCSStore keeps the same JSON document as FileStore in a Cloud Storage
// object, for runners whose local disk does not survive between invocations.
type GCSStore struct {
	client ObjectClient
	bucket string
	object string
	logger *zap.Logger
}

// NewGCSStore builds a store for gs://bucket/object.
func NewGCSStore(client ObjectClient, bucket, object string, logger *zap.Logger) (*GCSStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if strings.TrimSpace(object) == "" {
		return nil, fmt.Errorf("object name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GCSStore{client: client, bucket: bucket, object: object, logger: logger}, nil
}

// Load reads the object; a missing object yields an empty set.
func (g *GCSStore) Load(ctx context.Context) (Set, error) {
	data, err := g.client.ReadObject(ctx, g.bucket, g.object)
	if errors.Is(err, storage.ErrObjectNotExist) {
		g.logger.Info("seen object missing; starting empty", zap.String("uri", g.uri()))
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", g.uri(), err)
	}
	return decodeTolerant(data, g.logger.With(zap.String("uri", g.uri()))), nil
}

// Save overwrites the object with the encoded set.
func (g *GCSStore) Save(ctx context.Context, set Set) error {
	data, err := Encode(set)
	if err != nil {
		return err
	}
	if err := g.client.WriteObject(ctx, g.bucket, g.object, "application/json", data); err != nil {
		return fmt.Errorf("write %s: %w", g.uri(), err)
	}
	return nil
}

func (g *GCSStore) uri() string {
	return fmt.Sprintf("gs://%s/%s", g.bucket, g.object)
}

// GCSObjects adapts a *storage.Client to ObjectClient.
type GCSObjects struct {
	Client *storage.Client
}

// ReadObject downloads the full object.
func (o GCSObjects) ReadObject(ctx context.Context, bucket, object string) ([]byte, error) {
	r, err := o.Client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	defer r.Close() //nolint:errcheck // read-only
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

// WriteObject uploads data, replacing any existing object.
func (o GCSObjects) WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error {
	w := o.Client.Bucket(bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		closeErr := w.Close()
		if closeErr != nil {
			return fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}
