package project

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// thumbnailTransform returns the destination bounds and the source-to-destination
// affine that scales src so its longest edge is at most size, optionally turning it
// a quarter clockwise.
func thumbnailTransform(src image.Rectangle, size int, rotate bool) (image.Rectangle, f64.Aff3) {
	w, h := float64(src.Dx()), float64(src.Dy())
	s := min(1, float64(size)/max(w, h))
	dw := max(1, int(math.Round(w*s)))
	dh := max(1, int(math.Round(h*s)))
	minX, minY := float64(src.Min.X), float64(src.Min.Y)

	if !rotate {
		return image.Rect(0, 0, dw, dh), f64.Aff3{
			s, 0, -s * minX,
			0, s, -s * minY,
		}
	}
	// x' = s*(maxY - y), y' = s*(x - minX)
	return image.Rect(0, 0, dh, dw), f64.Aff3{
		0, -s, s * float64(src.Max.Y),
		s, 0, -s * minX,
	}
}

// Thumbnail scales img into a thumbnail with Catmull-Rom resampling.
//
// Parameters:
//   - img: the source frame
//   - size: longest edge of the result in pixels
//   - rotate: turn the frame a quarter clockwise
//
// Returns:
//   - *image.RGBA: the thumbnail
func Thumbnail(img image.Image, size int, rotate bool) *image.RGBA {
	bounds, m := thumbnailTransform(img.Bounds(), size, rotate)
	dst := image.NewRGBA(bounds)
	xdraw.CatmullRom.Transform(dst, m, img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// WriteThumbnail stores a thumbnail of img for a project as thumb.jpg.
//
// Parameters:
//   - id: the project id
//   - img: the source frame, usually the first captured camera image
//
// Returns:
//   - error: an error if the project folder is missing or the file cannot be written
func (s *Store) WriteThumbnail(id uuid.UUID, img image.Image) error {
	dir := s.Dir(id)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("write %s: %w", ThumbnailName, err)
	}
	thumb := Thumbnail(img, s.thumbSize, s.thumbRotate)
	if err := writeFileAtomic(filepath.Join(dir, ThumbnailName), func(w io.Writer) error {
		return jpeg.Encode(w, thumb, &jpeg.Options{Quality: thumbnailQuality})
	}); err != nil {
		return err
	}
	s.logger.Debugf("wrote %dx%d thumbnail for %s", thumb.Bounds().Dx(), thumb.Bounds().Dy(), id)
	return nil
}

// ReadThumbnail decodes a project's thumbnail.
//
// Returns:
//   - image.Image: the thumbnail
//   - error: a wrapped os.ErrNotExist if none was written
func (s *Store) ReadThumbnail(id uuid.UUID) (image.Image, error) {
	f, err := os.Open(filepath.Join(s.Dir(id), ThumbnailName))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ThumbnailName, err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ThumbnailName, err)
	}
	return img, nil
}
