// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package ibl

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
)

// radianceImage adapts a decoded Radiance RGBE buffer to image.Image so
// that x/image/draw can resample it with the rest of the ecosystem's
// standard resizing path, rather than a hand-rolled bilinear loop.
type radianceImage struct {
	w, h int
	rgb  []float32 // w*h*3, linear radiance
}

func (r *radianceImage) ColorModel() color.Model { return color.RGBA64Model }
func (r *radianceImage) Bounds() image.Rectangle { return image.Rect(0, 0, r.w, r.h) }

// At implements image.Image, tone-mapping into the integer color
// space draw.Image requires. The core never reads through this path:
// it exists solely so draw.BiLinear.Scale in LoadHDR can resample the
// texture before it is re-expanded and uploaded as float data, which
// clamps every channel to [0, 1].
func (r *radianceImage) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= r.w || y >= r.h {
		return color.RGBA64{}
	}
	i := (y*r.w + x) * 3
	clamp := func(v float32) uint32 {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return uint32(v * 0xffff)
	}
	return color.RGBA64{
		R: uint16(clamp(r.rgb[i])),
		G: uint16(clamp(r.rgb[i+1])),
		B: uint16(clamp(r.rgb[i+2])),
		A: 0xffff,
	}
}

// EquirectEnv is a decoded, resampled equirectangular environment map
// ready for GPU upload: tightly packed float32 RGBA (alpha always 1),
// row-major, width*height*4 floats.
type EquirectEnv struct {
	Width, Height int
	Pixels        []float32
}

// LoadHDR reads a Radiance (.hdr/.pic) equirectangular environment map
// from path and resamples it to width x height using
// golang.org/x/image/draw's bilinear scaler.
func LoadHDR(path string, width, height int) (*EquirectEnv, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ibl: LoadHDR: %w", err)
	}
	defer f.Close()

	src, err := decodeRadiance(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("ibl: LoadHDR: %w", err)
	}
	if src.w == width && src.h == height {
		return packEnv(src), nil
	}

	// Resample through x/image/draw: the destination is integer RGBA64
	// (draw.Image requires Set), so the scale happens on the tone-
	// mapped 16-bit copy and is then re-expanded to linear float32.
	// This trades a small amount of dynamic range for reusing the
	// ecosystem's resampler instead of a hand-rolled one.
	dst := image.NewRGBA64(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := &radianceImage{w: width, h: height, rgb: make([]float32, width*height*3)}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := dst.RGBA64At(x, y)
			i := (y*width + x) * 3
			out.rgb[i] = float32(c.R) / 0xffff
			out.rgb[i+1] = float32(c.G) / 0xffff
			out.rgb[i+2] = float32(c.B) / 0xffff
		}
	}
	return packEnv(out), nil
}

func packEnv(img *radianceImage) *EquirectEnv {
	pixels := make([]float32, img.w*img.h*4)
	for i := 0; i < img.w*img.h; i++ {
		pixels[i*4] = img.rgb[i*3]
		pixels[i*4+1] = img.rgb[i*3+1]
		pixels[i*4+2] = img.rgb[i*3+2]
		pixels[i*4+3] = 1
	}
	return &EquirectEnv{Width: img.w, Height: img.h, Pixels: pixels}
}

// decodeRadiance parses the Radiance RGBE picture format: a text
// header terminated by a blank line, a "-Y h +X w" resolution line,
// then either flat or adaptive-RLE scanlines of 4-byte RGBE texels.
func decodeRadiance(r *bufio.Reader) (*radianceImage, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading signature: %w", err)
	}
	if !strings.HasPrefix(line, "#?") {
		return nil, fmt.Errorf("not a Radiance picture")
	}
	for {
		line, err = r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		if strings.TrimRight(line, "\r\n") == "" {
			break
		}
	}
	resLine, err := r.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading resolution: %w", err)
	}
	var h, w int
	fields := strings.Fields(resLine)
	if len(fields) != 4 || fields[0] != "-Y" || fields[2] != "+X" {
		return nil, fmt.Errorf("unsupported resolution line %q", resLine)
	}
	h, err = strconv.Atoi(fields[1])
	if err != nil {
		return nil, err
	}
	w, err = strconv.Atoi(fields[3])
	if err != nil {
		return nil, err
	}

	img := &radianceImage{w: w, h: h, rgb: make([]float32, w*h*3)}
	scan := make([]byte, w*4)
	for y := 0; y < h; y++ {
		if err := readScanline(r, scan, w); err != nil {
			return nil, fmt.Errorf("scanline %d: %w", y, err)
		}
		for x := 0; x < w; x++ {
			rr, gg, bb, e := scan[x*4], scan[x*4+1], scan[x*4+2], scan[x*4+3]
			i := (y*w + x) * 3
			if e == 0 {
				continue
			}
			f := float32(math.Ldexp(1, int(e)-136))
			img.rgb[i] = float32(rr) * f
			img.rgb[i+1] = float32(gg) * f
			img.rgb[i+2] = float32(bb) * f
		}
	}
	return img, nil
}

// readScanline fills dst (len == w*4) with one row of RGBE texels,
// transparently handling both the legacy flat encoding and the
// adaptive run-length encoding new-format Radiance pictures use.
func readScanline(r *bufio.Reader, dst []byte, w int) error {
	if w < 8 || w > 0x7fff {
		return readFlatScanline(r, dst, w)
	}
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return err
	}
	if head[0] != 2 || head[1] != 2 || int(head[2])<<8|int(head[3]) != w {
		// Not RLE-marked: put the four bytes back as the first texel
		// of a flat scanline.
		buf := bytes.NewReader(head[:])
		mr := io.MultiReader(buf, r)
		full := bufio.NewReader(mr)
		return readFlatScanline(full, dst, w)
	}
	for c := 0; c < 4; c++ {
		for x := 0; x < w; {
			n, err := r.ReadByte()
			if err != nil {
				return err
			}
			if n > 128 {
				// Run of (n-128) identical bytes.
				v, err := r.ReadByte()
				if err != nil {
					return err
				}
				for i := 0; i < int(n-128); i++ {
					dst[(x+i)*4+c] = v
				}
				x += int(n - 128)
			} else {
				for i := 0; i < int(n); i++ {
					v, err := r.ReadByte()
					if err != nil {
						return err
					}
					dst[(x+i)*4+c] = v
				}
				x += int(n)
			}
		}
	}
	return nil
}

func readFlatScanline(r *bufio.Reader, dst []byte, w int) error {
	_, err := io.ReadFull(r, dst[:w*4])
	return err
}
