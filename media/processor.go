package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log"

	"github.com/disintegration/imaging"
)

// Processor handles media transformations like thumbnailing. it relies on a
// Store implementation for reading sources and saving the results.
type Processor struct {
	store Store
	size  int
}

// NewProcessor returns a processor producing size x size thumbnails
func NewProcessor(store Store, size int) *Processor {
	return &Processor{store: store, size: max(1, size)}
}

// Store returns the store the processor reads from and writes to
func (p *Processor) Store() Store {
	return p.store
}

// FaceThumbnail turns an encoded image into a square JPEG thumbnail. EXIF
// orientation is applied first, then the centre square is cropped and
// resized to the processor size.
func (p *Processor) FaceThumbnail(data []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode source image: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("invalid source image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	img = applyOrientation(img, readOrientation(data))
	thumb := imaging.Fill(img, p.size, p.size, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(ThumbnailJpegQuality)); err != nil {
		return nil, fmt.Errorf("thumbnail encoding failed: %w", err)
	}
	log.Printf("processor: Generated %dx%d thumbnail from %s source", p.size, p.size, format)
	return buf.Bytes(), nil
}

// DeriveThumbnail reads sourceKey, builds its thumbnail and stores it at destKey
func (p *Processor) DeriveThumbnail(ctx context.Context, sourceKey, destKey string) error {
	data, err := p.store.Get(ctx, sourceKey)
	if err != nil {
		return fmt.Errorf("failed to read source %s: %w", sourceKey, err)
	}
	thumb, err := p.FaceThumbnail(data)
	if err != nil {
		return fmt.Errorf("failed to build thumbnail for %s: %w", sourceKey, err)
	}
	if err := p.store.Put(ctx, destKey, thumb, ThumbnailContentType); err != nil {
		return fmt.Errorf("failed to save thumbnail via store: %w", err)
	}
	return nil
}
