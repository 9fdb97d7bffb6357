// Package qr decodes QR codes embedded in remote images.
package qr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"go.uber.org/zap"

	"github.com/JakeFAU/dropwatch/internal/httpx"
)

// ErrNoCode means the image was fetched and decoded but holds no readable QR code.
var ErrNoCode = errors.New("qr: no code found")

// Decoder turns an image URL into the text its QR code carries.
type Decoder interface {
	Decode(ctx context.Context, imageURL string) (string, error)
}

// HTTPDecoder downloads images through httpx and reads them with gozxing.
type HTTPDecoder struct {
	client *httpx.Client
	logger *zap.Logger
}

// NewHTTPDecoder returns a decoder backed by client.
func NewHTTPDecoder(client *httpx.Client, logger *zap.Logger) *HTTPDecoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPDecoder{client: client, logger: logger}
}

// Decode implements Decoder.
func (d *HTTPDecoder) Decode(ctx context.Context, imageURL string) (string, error) {
	resp, err := d.client.Get(ctx, imageURL)
	if err != nil {
		return "", err
	}
	text, err := DecodeBytes(resp.Body)
	if err != nil {
		d.logger.Debug("qr decode failed", zap.String("url", imageURL), zap.Error(err))
		return "", err
	}
	return text, nil
}

// DecodeBytes reads the first QR code in an encoded image.
func DecodeBytes(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	return DecodeImage(img)
}

// DecodeImage reads the first QR code in img.
func DecodeImage(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("binarize image: %w", err)
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoCode, err)
	}
	return result.GetText(), nil
}

// FuncDecoder adapts a function to Decoder.
type FuncDecoder func(ctx context.Context, imageURL string) (string, error)

// Decode implements Decoder.
func (f FuncDecoder) Decode(ctx context.Context, imageURL string) (string, error) {
	return f(ctx, imageURL)
}
