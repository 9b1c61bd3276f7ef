package fingerprint

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sort"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// ErrDecode marks undecodable image data. Callers keep such images in the
// pipeline as automatically unique rather than dropping them.
var ErrDecode = errors.New("image decode failed")

// Fingerprint is a 64-bit perceptual signature compared by Hamming
// distance. Immutable once computed. Perceptual is the primary signature
// (DCT-based); Difference is a gradient hash carried for inspection.
type Fingerprint struct {
	Perceptual uint64
	Difference uint64
}

// Hex returns the primary signature as a 16-digit hex string.
func (f Fingerprint) Hex() string {
	return fmt.Sprintf("%016x", f.Perceptual)
}

// DifferenceHex returns the secondary signature as a 16-digit hex string.
func (f Fingerprint) DifferenceHex() string {
	return fmt.Sprintf("%016x", f.Difference)
}

// Compute decodes imageData and derives both signatures. Deterministic for
// identical pixel content; safe to call from parallel workers.
func Compute(imageData []byte) (Fingerprint, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return Fingerprint{
		Perceptual: perceptualHash(img),
		Difference: differenceHash(img),
	}, nil
}

// Distance is the Hamming distance between two 64-bit signatures.
func Distance(a, b uint64) int {
	xor := a ^ b
	d := 0
	for xor != 0 {
		d++
		xor &= xor - 1 // clear lowest set bit
	}
	return d
}

// Near reports whether two signatures are within threshold bits.
func Near(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

// perceptualHash: shrink to 32x32 grayscale, run a 2-D DCT, keep the 8x8
// low-frequency block minus the DC term, threshold against the median.
func perceptualHash(img image.Image) uint64 {
	const dctSize = 32

	gray := luminance(scale(img, dctSize, dctSize))
	dct := dct2d(gray)

	// 63 low-frequency coefficients plus the block corner again to fill
	// out 64 slots for the median split.
	coeffs := make([]float64, 0, 64)
	for u := range 8 {
		for v := range 8 {
			if u == 0 && v == 0 {
				continue // DC carries only overall brightness
			}
			coeffs = append(coeffs, dct[u][v])
		}
	}
	coeffs = append(coeffs, dct[7][7])

	mid := median(coeffs)

	var hash uint64
	for i, c := range coeffs {
		if c > mid {
			hash |= 1 << (63 - i)
		}
	}
	return hash
}

// differenceHash: shrink to 9x8 grayscale and record the sign of each
// horizontal neighbor gradient, 8 per row.
func differenceHash(img image.Image) uint64 {
	gray := luminance(scale(img, 9, 8))

	var hash uint64
	bit := 63
	for y := range 8 {
		for x := range 8 {
			if gray[y][x] > gray[y][x+1] {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return hash
}

func scale(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// luminance converts to row-major grayscale using the ITU-R BT.601 weights.
func luminance(img *image.RGBA) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, height)
	for y := range height {
		gray[y] = make([]float64, width)
		for x := range width {
			r, g, b, _ := img.At(x, y).RGBA()
			gray[y][x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}
	return gray
}

// dct2d is a straight DCT-II over a square matrix with a precomputed
// cosine table. 32x32 input keeps this cheap enough to skip an FFT.
func dct2d(gray [][]float64) [][]float64 {
	size := len(gray)

	cosTable := make([][]float64, size)
	for i := range cosTable {
		cosTable[i] = make([]float64, size)
		for j := range size {
			cosTable[i][j] = math.Cos(math.Pi * float64(i) * (2*float64(j) + 1) / (2 * float64(size)))
		}
	}

	dct := make([][]float64, size)
	for u := range size {
		dct[u] = make([]float64, size)
		for v := range size {
			var sum float64
			for y := range size {
				for x := range size {
					sum += gray[y][x] * cosTable[u][y] * cosTable[v][x]
				}
			}
			dct[u][v] = sum
		}
	}
	return dct
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
