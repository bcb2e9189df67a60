package portal

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"

	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	"snowtools/pkg/errors"
)

// imagePrefix marks image_path values that carry inline JPEG bytes.
// Legacy rows may still hold a stage path; those render as placeholder.
const imagePrefix = "base64:"

const (
	maxImageEdge = 400
	tileEdge     = 200
	jpegQuality  = 85
)

// tileBackground is the letterbox fill behind grid tiles.
var tileBackground = color.RGBA{R: 248, G: 249, B: 250, A: 255}

// SetImage stores an uploaded tile image for an app. The upload is
// decoded (PNG, JPEG or GIF), shrunk to fit 400x400, flattened onto
// white and re-encoded as JPEG before being written inline to
// image_path.
func (s *Service) SetImage(ctx context.Context, appID string, data []byte) error {
	if len(data) == 0 {
		return errors.ValidationError("image", "", "upload is empty")
	}

	encoded, err := processUpload(data)
	if err != nil {
		return err
	}

	path := imagePrefix + encoded
	query := fmt.Sprintf(`UPDATE %s
SET image_path = '%s', updated_at = CURRENT_TIMESTAMP()
WHERE app_id = '%s'`, s.table("portal_apps"), escape(path), escape(appID))

	if err := s.client.Exec(ctx, query); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"app_id": appID,
		"bytes":  len(encoded),
	}).Info("app image updated")
	s.invalidateCatalog()
	return nil
}

// ClearImage removes an app's tile image.
func (s *Service) ClearImage(ctx context.Context, appID string) error {
	query := fmt.Sprintf(`UPDATE %s
SET image_path = NULL, updated_at = CURRENT_TIMESTAMP()
WHERE app_id = '%s'`, s.table("portal_apps"), escape(appID))

	if err := s.client.Exec(ctx, query); err != nil {
		return err
	}

	s.logger.WithField("app_id", appID).Info("app image removed")
	s.invalidateCatalog()
	return nil
}

// TileImage renders a stored image_path as a 200x200 data URI for the
// app grid, letterboxed on light gray. Anything that cannot be decoded
// returns "" and the grid shows its placeholder.
func TileImage(imagePath string) string {
	if !strings.HasPrefix(imagePath, imagePrefix) {
		return ""
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(imagePath, imagePrefix))
	if err != nil {
		return ""
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	dst := image.NewRGBA(image.Rect(0, 0, tileEdge, tileEdge))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(tileBackground), image.Point{}, xdraw.Src)

	w, h := fitWithin(src.Bounds().Dx(), src.Bounds().Dy(), tileEdge, tileEdge)
	offset := image.Pt((tileEdge-w)/2, (tileEdge-h)/2)
	target := image.Rectangle{Min: offset, Max: offset.Add(image.Pt(w, h))}
	xdraw.ApproxBiLinear.Scale(dst, target, src, src.Bounds(), xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return ""
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// processUpload converts an uploaded image to the stored form: at most
// 400x400, no alpha, JPEG quality 85, base64 encoded.
func processUpload(data []byte) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", errors.New(errors.ErrCodeImageFormat, "Could not decode uploaded image").
			WithContext("bytes", len(data)).
			WithSuggestions("Upload a PNG, JPEG or GIF file")
	}

	bounds := src.Bounds()
	w, h := fitWithin(bounds.Dx(), bounds.Dy(), maxImageEdge, maxImageEdge)

	// Flatten onto white so transparent PNG regions do not turn black
	// in the JPEG encode.
	flat := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(flat, flat.Bounds(), image.White, image.Point{}, xdraw.Src)
	xdraw.ApproxBiLinear.Scale(flat, flat.Bounds(), src, bounds, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeImageFormat, "Could not encode image")
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// fitWithin shrinks (never enlarges) w x h to fit inside the box while
// keeping the aspect ratio.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 1, 1
	}
	if w <= maxW && h <= maxH {
		return w, h
	}

	ratioW := float64(maxW) / float64(w)
	ratioH := float64(maxH) / float64(h)
	ratio := ratioW
	if ratioH < ratio {
		ratio = ratioH
	}

	w = int(float64(w) * ratio)
	h = int(float64(h) * ratio)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
