package portal

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowtools/internal/snowflake"
	"snowtools/pkg/errors"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessUpload(t *testing.T) {
	encoded, err := processUpload(pngBytes(t, 800, 600, color.RGBA{R: 200, G: 30, B: 30, A: 255}))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())
}

func TestProcessUploadKeepsSmallImages(t *testing.T) {
	encoded, err := processUpload(pngBytes(t, 120, 80, color.White))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Equal(t, 80, img.Bounds().Dy())
}

func TestProcessUploadFlattensTransparency(t *testing.T) {
	// A fully transparent PNG must come out white, not black.
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	encoded, err := processUpload(buf.Bytes())
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	decoded, _, err := image.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	r, g, b, _ := decoded.At(5, 5).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestProcessUploadRejectsGarbage(t *testing.T) {
	_, err := processUpload([]byte("not an image"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeImageFormat, errors.GetErrorCode(err))
}

func TestTileImage(t *testing.T) {
	var buf bytes.Buffer
	src := image.NewRGBA(image.Rect(0, 0, 300, 100))
	require.NoError(t, jpeg.Encode(&buf, src, &jpeg.Options{Quality: jpegQuality}))
	stored := imagePrefix + base64.StdEncoding.EncodeToString(buf.Bytes())

	uri := TileImage(stored)
	require.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"), "expected a jpeg data URI")

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	tile, _, err := image.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, tileEdge, tile.Bounds().Dx())
	assert.Equal(t, tileEdge, tile.Bounds().Dy())

	// Letterbox band above the centered image keeps the light-gray fill.
	r, g, b, _ := tile.At(100, 10).RGBA()
	assert.InDelta(t, 248, int(r>>8), 6)
	assert.InDelta(t, 249, int(g>>8), 6)
	assert.InDelta(t, 250, int(b>>8), 6)
}

func TestTileImageFallsBackToPlaceholder(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"legacy stage path", "@portal_stage/images/app.png"},
		{"broken base64", "base64:%%%%"},
		{"base64 but not an image", "base64:" + base64.StdEncoding.EncodeToString([]byte("junk"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, TileImage(tt.path))
		})
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		maxW, maxH   int
		wantW, wantH int
	}{
		{"wide shrink", 800, 600, 400, 400, 400, 300},
		{"tall shrink", 600, 800, 400, 400, 300, 400},
		{"already fits", 120, 80, 400, 400, 120, 80},
		{"exact", 400, 400, 400, 400, 400, 400},
		{"degenerate", 0, 0, 400, 400, 1, 1},
		{"extreme ratio", 4000, 10, 400, 400, 400, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := fitWithin(tt.w, tt.h, tt.maxW, tt.maxH)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestSetImage(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeConnector)

	mock.ExpectExec("SET image_path = 'base64:").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := svc.SetImage(context.Background(), "SALES_APP", pngBytes(t, 50, 50, color.White))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetImageRejectsEmptyUpload(t *testing.T) {
	svc, _ := newTestService(t, snowflake.ModeConnector)

	err := svc.SetImage(context.Background(), "SALES_APP", nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetErrorCode(err))
}

func TestClearImage(t *testing.T) {
	svc, mock := newTestService(t, snowflake.ModeConnector)

	mock.ExpectExec("SET image_path = NULL, updated_at = CURRENT_TIMESTAMP").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := svc.ClearImage(context.Background(), "SALES_APP")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
