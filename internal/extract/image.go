package extract

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

const (
	// minImageDim and maxImageDim bound the preprocessed image size;
	// OCR quality drops on tiny scans and huge ones waste time.
	minImageDim = 800
	maxImageDim = 3000

	// ocrRetryLen triggers a second OCR pass with an alternate page
	// segmentation mode when the first produces almost nothing.
	ocrRetryLen = 10
)

// ImageExtractor handles the raster-image family: ImageMagick
// preprocessing followed by a tesseract pass with a layout retry.
type ImageExtractor struct {
	Runner       Runner
	TesseractBin string
	Languages    string
}

// NewImageExtractor wires defaults for the OCR binary and languages
func NewImageExtractor(runner Runner, tesseractBin, languages string) ImageExtractor {
	if tesseractBin == "" {
		tesseractBin = "tesseract"
	}
	if languages == "" {
		languages = "fra+eng"
	}
	return ImageExtractor{Runner: runner, TesseractBin: tesseractBin, Languages: languages}
}

// ExtractText preprocesses the image and OCRs it, retrying once with
// the automatic layout mode when the block mode yields almost nothing.
func (e ImageExtractor) ExtractText(ctx context.Context, path string) (string, string, error) {
	processed, cleanup := e.preprocess(ctx, path)
	defer cleanup()

	steps := []Step{
		{Name: "tesseract-psm6", Run: func(ctx context.Context) (string, error) {
			return e.tesseract(ctx, processed, "6")
		}},
		{Name: "tesseract-psm3", Run: func(ctx context.Context) (string, error) {
			return e.tesseract(ctx, processed, "3")
		}},
	}
	return TryInOrder(ctx, steps, func(s string) bool {
		return len(strings.TrimSpace(s)) >= ocrRetryLen
	})
}

// preprocess enhances the image for OCR with ImageMagick: resize into
// the target range, grayscale, normalize, contrast stretch, despeckle,
// sharpen. On any failure the original file is used unchanged.
func (e ImageExtractor) preprocess(ctx context.Context, path string) (string, func()) {
	noop := func() {}

	out, err := os.CreateTemp("", "ocr-pre-*.png")
	if err != nil {
		return path, noop
	}
	outPath := out.Name()
	out.Close()
	cleanup := func() { os.Remove(outPath) }

	args := []string{
		path,
		"-resize", resizeGeometry(path),
		"-colorspace", "Gray",
		"-normalize",
		"-contrast-stretch", "2%x1%",
		"-despeckle",
		"-sharpen", "0x1",
		"-quality", "95",
		outPath,
	}

	// ImageMagick 7 ships 'magick'; fall back to the v6 'convert'
	bin := "convert"
	if _, err := exec.LookPath("magick"); err == nil {
		bin = "magick"
	}
	if _, _, err := e.Runner.Run(ctx, bin, args...); err != nil {
		cleanup()
		return path, noop
	}
	if info, err := os.Stat(outPath); err != nil || info.Size() == 0 {
		cleanup()
		return path, noop
	}
	return outPath, cleanup
}

// resizeGeometry picks the ImageMagick geometry that moves the image
// into [minImageDim, maxImageDim] per dimension: ">" shrinks only,
// "<" enlarges only, so correctly sized images pass through.
func resizeGeometry(path string) string {
	shrink := fmt.Sprintf("%dx%d>", maxImageDim, maxImageDim)

	f, err := os.Open(path)
	if err != nil {
		return shrink
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return shrink
	}
	if cfg.Width < minImageDim && cfg.Height < minImageDim {
		return fmt.Sprintf("%dx%d<", minImageDim, minImageDim)
	}
	return shrink
}

func (e ImageExtractor) tesseract(ctx context.Context, path, psm string) (string, error) {
	out, _, err := e.Runner.Run(ctx, e.TesseractBin,
		path, "stdout",
		"-l", e.Languages,
		"--oem", "3",
		"--psm", psm,
	)
	if err != nil {
		return "", fmt.Errorf("tesseract (%s): %w", filepath.Base(path), err)
	}
	return string(out), nil
}
