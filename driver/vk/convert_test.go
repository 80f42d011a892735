// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package vk

import (
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/nyxforge/framegraph/driver"
)

func TestVkFormatKnownPixelFmts(t *testing.T) {
	for f := range pixelFmts {
		if got := vkFormat(f); got == vk.FormatUndefined {
			t.Errorf("vkFormat(%v):\nhave FormatUndefined\nwant a concrete format", f)
		}
	}
}

func TestVkFormatUnknownPixelFmt(t *testing.T) {
	if got := vkFormat(driver.PixelFmt(-1)); got != vk.FormatUndefined {
		t.Fatalf("vkFormat(-1):\nhave %v\nwant FormatUndefined", got)
	}
}

func TestIsDepth(t *testing.T) {
	depth := []driver.PixelFmt{driver.D16un, driver.D32f, driver.S8ui, driver.D24unS8ui, driver.D32fS8ui}
	for _, f := range depth {
		if !isDepth(f) {
			t.Errorf("isDepth(%v):\nhave false\nwant true", f)
		}
	}
	color := []driver.PixelFmt{driver.RGBA8un, driver.RGBA16f, driver.R8un}
	for _, f := range color {
		if isDepth(f) {
			t.Errorf("isDepth(%v):\nhave true\nwant false", f)
		}
	}
}

func TestVkCullMode(t *testing.T) {
	cases := []struct {
		in   driver.CullMode
		want vk.CullModeFlagBits
	}{
		{driver.CBack, vk.CullModeBackBit},
		{driver.CFront, vk.CullModeFrontBit},
		{driver.CNone, vk.CullModeNone},
	}
	for _, c := range cases {
		if got := vkCullMode(c.in); got != c.want {
			t.Errorf("vkCullMode(%v):\nhave %v\nwant %v", c.in, got, c.want)
		}
	}
}

func TestVkLoadStoreOp(t *testing.T) {
	if got := vkLoadOp(driver.LClear); got != vk.AttachmentLoadOpClear {
		t.Errorf("vkLoadOp(LClear):\nhave %v\nwant Clear", got)
	}
	if got := vkLoadOp(driver.LLoad); got != vk.AttachmentLoadOpLoad {
		t.Errorf("vkLoadOp(LLoad):\nhave %v\nwant Load", got)
	}
	if got := vkLoadOp(driver.LDontCare); got != vk.AttachmentLoadOpDontCare {
		t.Errorf("vkLoadOp(LDontCare):\nhave %v\nwant DontCare", got)
	}
	if got := vkStoreOp(driver.SStore); got != vk.AttachmentStoreOpStore {
		t.Errorf("vkStoreOp(SStore):\nhave %v\nwant Store", got)
	}
	if got := vkStoreOp(driver.SDontCare); got != vk.AttachmentStoreOpDontCare {
		t.Errorf("vkStoreOp(SDontCare):\nhave %v\nwant DontCare", got)
	}
}

func TestVkCmpOp(t *testing.T) {
	if got := vkCmpOp(driver.CLess); got != vk.CompareOpLess {
		t.Errorf("vkCmpOp(CLess):\nhave %v\nwant Less", got)
	}
	if got := vkCmpOp(driver.CmpFunc(-1)); got != vk.CompareOpAlways {
		t.Errorf("vkCmpOp(unknown):\nhave %v\nwant Always (default)", got)
	}
}
