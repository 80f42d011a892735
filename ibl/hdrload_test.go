// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package ibl

import (
	"bufio"
	"bytes"
	"testing"
)

func TestDecodeRadianceFlatScanline(t *testing.T) {
	// Width 4 is below the RLE threshold (8), so the picture uses the
	// legacy flat encoding: one header, one resolution line, then
	// w*4 raw RGBE bytes per scanline.
	var buf bytes.Buffer
	buf.WriteString("#?RADIANCE\n")
	buf.WriteString("FORMAT=32-bit_rle_rgbe\n")
	buf.WriteString("\n")
	buf.WriteString("-Y 1 +X 4\n")
	buf.Write([]byte{
		128, 0, 0, 128, // R=0.5
		0, 64, 0, 129, // G scaled by 2^-7
		0, 0, 32, 130, // B scaled by 2^-6
		0, 0, 0, 0, // zero texel
	})

	img, err := decodeRadiance(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("decodeRadiance:\nhave %v\nwant nil", err)
	}
	if img.w != 4 || img.h != 1 {
		t.Fatalf("decodeRadiance: dimensions:\nhave %dx%d\nwant 4x1", img.w, img.h)
	}
	if got := img.rgb[0]; got != 0.5 {
		t.Errorf("decodeRadiance: texel 0 R:\nhave %v\nwant 0.5", got)
	}
	if got := img.rgb[3*3]; got != 0 {
		t.Errorf("decodeRadiance: zero texel should decode to black:\nhave %v\nwant 0", got)
	}
}

func TestDecodeRadianceRejectsBadSignature(t *testing.T) {
	buf := bytes.NewBufferString("not a radiance file\n")
	if _, err := decodeRadiance(bufio.NewReader(buf)); err == nil {
		t.Fatal("decodeRadiance:\nhave nil\nwant an error for a missing #? signature")
	}
}

func TestReadScanlineRLE(t *testing.T) {
	const w = 10
	var buf bytes.Buffer
	buf.Write([]byte{2, 2, byte(w >> 8), byte(w)})
	for c := 0; c < 4; c++ {
		buf.WriteByte(128 + w)        // run of w identical bytes
		buf.WriteByte(byte(10 + c)) // channel value
	}

	dst := make([]byte, w*4)
	if err := readScanline(bufio.NewReader(&buf), dst, w); err != nil {
		t.Fatalf("readScanline:\nhave %v\nwant nil", err)
	}
	for x := 0; x < w; x++ {
		for c := 0; c < 4; c++ {
			want := byte(10 + c)
			if got := dst[x*4+c]; got != want {
				t.Fatalf("readScanline: texel %d channel %d:\nhave %d\nwant %d", x, c, got, want)
			}
		}
	}
}

func TestPackEnvSetsOpaqueAlpha(t *testing.T) {
	img := &radianceImage{w: 2, h: 1, rgb: []float32{1, 2, 3, 4, 5, 6}}
	env := packEnv(img)
	if env.Width != 2 || env.Height != 1 {
		t.Fatalf("packEnv: dimensions:\nhave %dx%d\nwant 2x1", env.Width, env.Height)
	}
	if len(env.Pixels) != 8 {
		t.Fatalf("packEnv: pixel count:\nhave %d\nwant 8", len(env.Pixels))
	}
	for i := 0; i < 2; i++ {
		if got := env.Pixels[i*4+3]; got != 1 {
			t.Errorf("packEnv: alpha of texel %d:\nhave %v\nwant 1", i, got)
		}
	}
	if env.Pixels[0] != 1 || env.Pixels[1] != 2 || env.Pixels[2] != 3 {
		t.Fatalf("packEnv: texel 0 RGB:\nhave %v\nwant [1 2 3]", env.Pixels[:3])
	}
}
