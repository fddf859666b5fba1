package hashing

import (
	"image"
	"math"
	"math/bits"
	"sort"
)

const (
	dhashWidth  = 9
	dhashHeight = 8
	phashSize   = 32
)

// DHash computes a 64-bit difference hash from a 9x8 grayscale grid of
// the image. Bit y*8+x is set when the pixel at (x, y) is brighter than
// its right-hand neighbour.
func DHash(img image.Image) uint64 {
	px := grayGrid(img, dhashWidth, dhashHeight)

	var hash uint64
	for y := 0; y < dhashHeight; y++ {
		for x := 0; x < dhashWidth-1; x++ {
			if px[y*dhashWidth+x] > px[y*dhashWidth+x+1] {
				hash |= 1 << uint(y*8+x)
			}
		}
	}
	return hash
}

// PHash computes a 64-bit perceptual hash: the image is reduced to a
// 32x32 grayscale grid, transformed with a 2D DCT, and the top-left 8x8
// block of coefficients is compared against the median of the 63 AC
// coefficients. Bit i (row-major over the block) is set when the
// coefficient exceeds the median; the DC position, bit 0, is always
// clear.
func PHash(img image.Image) uint64 {
	px := grayGrid(img, phashSize, phashSize)
	coeffs := dct2d(px, phashSize)

	block := make([]float64, 64)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			block[y*8+x] = coeffs[y*phashSize+x]
		}
	}

	ac := make([]float64, 63)
	copy(ac, block[1:])
	sort.Float64s(ac)
	median := ac[31]

	var hash uint64
	for i := 1; i < 64; i++ {
		if block[i] > median {
			hash |= 1 << uint(i)
		}
	}
	return hash
}

// Distance is the Hamming distance between two 64-bit hashes.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similarity maps the Hamming distance between two hashes to a 0-100
// percentage, 100 meaning identical.
func Similarity(a, b uint64) int {
	d := Distance(a, b)
	return int(math.Round((1 - float64(d)/64) * 100))
}

// grayGrid samples the image down to a w x h grid of BT.601 luma values.
// Nearest-neighbour is sufficient here: callers hand in frames already
// scaled to the target grid, so the mapping is normally the identity.
func grayGrid(img image.Image, w, h int) []float64 {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	px := make([]float64, w*h)
	for y := 0; y < h; y++ {
		srcY := bounds.Min.Y + y*srcH/h
		for x := 0; x < w; x++ {
			srcX := bounds.Min.X + x*srcW/w
			r, g, b, _ := img.At(srcX, srcY).RGBA()
			px[y*w+x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}
	return px
}

// dct2d applies an orthonormal 2D DCT-II to an n x n grid, rows first,
// then columns.
func dct2d(px []float64, n int) []float64 {
	rows := make([]float64, n*n)
	for y := 0; y < n; y++ {
		dct1d(px[y*n:(y+1)*n], rows[y*n:(y+1)*n])
	}

	out := make([]float64, n*n)
	col := make([]float64, n)
	res := make([]float64, n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			col[y] = rows[y*n+x]
		}
		dct1d(col, res)
		for y := 0; y < n; y++ {
			out[y*n+x] = res[y]
		}
	}
	return out
}

func dct1d(in, out []float64) {
	n := len(in)
	for u := 0; u < n; u++ {
		var sum float64
		for x := 0; x < n; x++ {
			sum += in[x] * math.Cos(float64(2*x+1)*float64(u)*math.Pi/float64(2*n))
		}
		scale := math.Sqrt(2 / float64(n))
		if u == 0 {
			scale = math.Sqrt(1 / float64(n))
		}
		out[u] = scale * sum
	}
}
