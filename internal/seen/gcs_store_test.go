package seen

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeObjects struct {
	objects  map[string][]byte
	readErr  error
	writeErr error
	ctype    string
}

func (f *fakeObjects) ReadObject(_ context.Context, bucket, object string) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	data, ok := f.objects[bucket+"/"+object]
	if !ok {
		return nil, storage.ErrObjectNotExist
	}
	return data, nil
}

func (f *fakeObjects) WriteObject(_ context.Context, bucket, object, contentType string, data []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[bucket+"/"+object] = data
	f.ctype = contentType
	return nil
}

func TestGCSStoreRoundTrip(t *testing.T) {
	t.Parallel()

	objs := &fakeObjects{}
	store, err := NewGCSStore(objs, "bucket", "seen/switch.json", zap.NewNop())
	require.NoError(t, err)

	empty, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, empty.Len())

	want := NewSet("x", "y")
	require.NoError(t, store.Save(context.Background(), want))
	assert.Equal(t, "application/json", objs.ctype)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, want.Equal(got))
}

func TestGCSStoreCorruptObjectIsEmpty(t *testing.T) {
	t.Parallel()

	objs := &fakeObjects{objects: map[string][]byte{"bucket/seen.json": []byte("{oops")}}
	store, err := NewGCSStore(objs, "bucket", "seen.json", nil)
	require.NoError(t, err)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got.Len())
}

func TestGCSStorePropagatesIOErrors(t *testing.T) {
	t.Parallel()

	objs := &fakeObjects{readErr: errors.New("permission denied"), writeErr: errors.New("quota")}
	store, err := NewGCSStore(objs, "bucket", "seen.json", nil)
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	assert.ErrorContains(t, err, "permission denied")
	assert.ErrorContains(t, store.Save(context.Background(), NewSet("a")), "quota")
}

func TestNewGCSStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewGCSStore(nil, "b", "o", nil)
	assert.Error(t, err)
	_, err = NewGCSStore(&fakeObjects{}, "", "o", nil)
	assert.Error(t, err)
	_, err = NewGCSStore(&fakeObjects{}, "b", "", nil)
	assert.Error(t, err)
}
