package invoice

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// DefaultMaxPages limits how many pages of a PDF are sent for extraction
const DefaultMaxPages = 2

// SupportedExtensions lists the document types the renderer accepts
var SupportedExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// IsSupported reports whether path has an extension the renderer can read
func IsSupported(path string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// ListDocuments returns the supported documents directly inside dir, sorted by name
func ListDocuments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsSupported(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Renderer turns invoice documents into JPEG page images
type Renderer struct {
	maxPages int
	quality  int
	logger   *zap.Logger
}

// NewRenderer creates a renderer. maxPages <= 0 means DefaultMaxPages.
func NewRenderer(maxPages int, logger *zap.Logger) *Renderer {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Renderer{
		maxPages: maxPages,
		quality:  85,
		logger:   logger,
	}
}

// Render returns up to maxPages JPEG images for the document at path
func (r *Renderer) Render(path string) ([][]byte, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return r.renderPDF(path)
	case ".jpg", ".jpeg", ".png":
		img, err := r.readImageFile(path, ext)
		if err != nil {
			return nil, err
		}
		return [][]byte{img}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, ext)
	}
}

// renderPDF rasterises PDF pages with mupdf
func (r *Renderer) renderPDF(path string) ([][]byte, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount > r.maxPages {
		pageCount = r.maxPages
	}

	r.logger.Debug("Rendering PDF",
		zap.String("path", path),
		zap.Int("total_pages", doc.NumPage()),
		zap.Int("rendered_pages", pageCount))

	var images [][]byte
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		img, err := doc.Image(pageNum)
		if err != nil {
			r.logger.Warn("Failed to extract page as image",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}

		data, err := r.encodeJPEG(img)
		if err != nil {
			r.logger.Warn("Failed to encode page to JPEG",
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		images = append(images, data)
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPages, path)
	}
	return images, nil
}

func (r *Renderer) readImageFile(path, ext string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	var img image.Image
	if ext == ".png" {
		img, err = png.Decode(file)
	} else {
		img, err = jpeg.Decode(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return r.encodeJPEG(img)
}

func (r *Renderer) encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
