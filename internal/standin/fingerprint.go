package standin

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Fingerprint is a 64-bit average hash of an image. Re-encoding or mild
// rescaling barely changes it, so a kiosk capture of a registered photo
// still matches.
type Fingerprint uint64

const hashSide = 8

// FingerprintImage decodes data and hashes it.
func FingerprintImage(data []byte) (Fingerprint, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decode image: %w", err)
	}
	return fingerprint(img), nil
}

func fingerprint(img image.Image) Fingerprint {
	small := image.NewGray(image.Rect(0, 0, hashSide, hashSide))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var sum int
	for _, p := range small.Pix {
		sum += int(p)
	}
	avg := sum / len(small.Pix)

	var fp Fingerprint
	for i, p := range small.Pix {
		if int(p) > avg {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Similarity is the fraction of matching bits, in [0,1].
func (f Fingerprint) Similarity(other Fingerprint) float64 {
	return 1 - float64(bits.OnesCount64(uint64(f^other)))/64
}
