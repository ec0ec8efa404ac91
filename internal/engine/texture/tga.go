package texture

import (
	"errors"
	"fmt"
	"image"
)

// ErrBadTGA is returned for TGA data that cannot be decoded.
var ErrBadTGA = errors.New("texture: bad TGA data")

// TGA image types.
const (
	tgaTrueColor    = 2
	tgaGray         = 3
	tgaTrueColorRLE = 10
	tgaGrayRLE      = 11

	tgaHeaderSize = 18
	tgaTopOrigin  = 0x20
)

// DecodeTGA decodes uncompressed or RLE true-color and grayscale TGA data.
func DecodeTGA(data []byte) (*image.RGBA, error) {
	if len(data) < tgaHeaderSize {
		return nil, fmt.Errorf("%w: header truncated", ErrBadTGA)
	}
	idLength := int(data[0])
	if data[1] != 0 {
		return nil, fmt.Errorf("%w: color-mapped images not supported", ErrBadTGA)
	}
	kind := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16]) / 8
	top := data[17]&tgaTopOrigin != 0

	gray := kind == tgaGray || kind == tgaGrayRLE
	switch {
	case kind != tgaTrueColor && kind != tgaTrueColorRLE && !gray:
		return nil, fmt.Errorf("%w: image type %d", ErrBadTGA, kind)
	case gray && bpp != 1, !gray && bpp != 3 && bpp != 4:
		return nil, fmt.Errorf("%w: %d bits per pixel for type %d", ErrBadTGA, bpp*8, kind)
	case width == 0 || height == 0:
		return nil, fmt.Errorf("%w: empty image", ErrBadTGA)
	}

	src := data[min(tgaHeaderSize+idLength, len(data)):]
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	n := width * height

	put := func(i int, px []byte) {
		x, y := i%width, i/width
		if !top {
			y = height - 1 - y
		}
		o := img.PixOffset(x, y)
		if gray {
			img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = px[0], px[0], px[0], 255
			return
		}
		img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = px[2], px[1], px[0], 255
		if bpp == 4 {
			img.Pix[o+3] = px[3]
		}
	}

	if kind == tgaTrueColor || kind == tgaGray {
		if len(src) < n*bpp {
			return nil, fmt.Errorf("%w: pixel data truncated", ErrBadTGA)
		}
		for i := 0; i < n; i++ {
			put(i, src[i*bpp:])
		}
		return img, nil
	}

	for i, off := 0, 0; i < n; {
		if off >= len(src) {
			return nil, fmt.Errorf("%w: run-length data truncated at pixel %d", ErrBadTGA, i)
		}
		packet := src[off]
		off++
		count := min(int(packet&0x7f)+1, n-i)
		if packet&0x80 != 0 {
			if off+bpp > len(src) {
				return nil, fmt.Errorf("%w: run-length data truncated at pixel %d", ErrBadTGA, i)
			}
			for j := 0; j < count; j++ {
				put(i+j, src[off:])
			}
			off += bpp
		} else {
			if off+count*bpp > len(src) {
				return nil, fmt.Errorf("%w: raw packet truncated at pixel %d", ErrBadTGA, i)
			}
			for j := 0; j < count; j++ {
				put(i+j, src[off+j*bpp:])
			}
			off += count * bpp
		}
		i += count
	}
	return img, nil
}
