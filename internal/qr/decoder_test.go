package qr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dropwatch/internal/httpx"
)

func encodePNG(t *testing.T, text string) []byte {
	t.Helper()
	matrix, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, 240, 240, nil)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, matrix))
	return buf.Bytes()
}

func blankPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = color.White.Y
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeBytes(t *testing.T) {
	t.Parallel()

	text, err := DecodeBytes(encodePNG(t, "https://link.clashroyale.com/?reward=abc"))
	require.NoError(t, err)
	assert.Equal(t, "https://link.clashroyale.com/?reward=abc", text)
}

func TestDecodeBytesNoCode(t *testing.T) {
	t.Parallel()

	_, err := DecodeBytes(blankPNG(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoCode))
}

func TestDecodeBytesNotAnImage(t *testing.T) {
	t.Parallel()

	_, err := DecodeBytes([]byte("not an image"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoCode))
}

func TestHTTPDecoder(t *testing.T) {
	t.Parallel()

	payload := encodePNG(t, "hello")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	client := httpx.New(httpx.Config{Timeout: time.Second, MaxAttempts: 1}, nil)
	dec := NewHTTPDecoder(client, nil)

	text, err := dec.Decode(context.Background(), srv.URL+"/qr.png")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	_, err = dec.Decode(context.Background(), srv.URL+"/missing.png")
	status, ok := httpx.StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, status)
}
