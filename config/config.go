// Package config defines the frame-graph core's runtime configuration.
// There is no file format: values are populated from command-line
// flags (and optional environment overrides), never parsed from a
// config file, since asset/config I/O belongs to the host application.
package config

import (
	"flag"
	"os"
	"strconv"
)

// Config holds the tunables the frame graph and its concrete passes
// read at Compile time. Zero values are not valid; use Default.
type Config struct {
	// Width and Height are the swapchain extent in pixels.
	Width, Height int

	// ValidationLayers enables the Vulkan validation layers.
	ValidationLayers bool

	// ShadowCascades is the number of cascades the shadow-map pass
	// renders (spec default: 4).
	ShadowCascades int

	// ShadowResolution is the fixed square resolution of each shadow
	// cascade layer (spec default: 4096).
	ShadowResolution int

	// SSAOKernelSize is the number of hemisphere samples the SSAO
	// pass draws from (spec default: 64).
	SSAOKernelSize int

	// SSAORadius and SSAOBias parameterize the occlusion test.
	SSAORadius float32
	SSAOBias   float32

	// SSAOStrength scales the final occlusion factor.
	SSAOStrength float32
}

// Default returns the configuration the concrete passes in this
// module were designed against.
func Default() Config {
	return Config{
		Width:            1280,
		Height:           720,
		ValidationLayers: false,
		ShadowCascades:   4,
		ShadowResolution: 4096,
		SSAOKernelSize:   64,
		SSAORadius:       0.5,
		SSAOBias:         0.025,
		SSAOStrength:     1.0,
	}
}

// Parse populates a Config from command-line flags, starting from
// Default and overriding any flag the caller passed in args.
func Parse(args []string) (Config, error) {
	c := Default()
	fs := flag.NewFlagSet("framegraph", flag.ContinueOnError)
	fs.IntVar(&c.Width, "width", c.Width, "swapchain width in pixels")
	fs.IntVar(&c.Height, "height", c.Height, "swapchain height in pixels")
	fs.BoolVar(&c.ValidationLayers, "validation", c.ValidationLayers, "enable Vulkan validation layers")
	fs.IntVar(&c.ShadowCascades, "shadow-cascades", c.ShadowCascades, "number of shadow-map cascades")
	fs.IntVar(&c.ShadowResolution, "shadow-resolution", c.ShadowResolution, "shadow-map cascade resolution")
	fs.IntVar(&c.SSAOKernelSize, "ssao-kernel", c.SSAOKernelSize, "SSAO hemisphere sample count")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	c.applyEnv()
	return c, nil
}

// applyEnv overrides validation-layer enablement from the environment,
// matching the common FRAMEGRAPH_VALIDATION=1 convention used to flip
// on Vulkan diagnostics without touching the command line.
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("FRAMEGRAPH_VALIDATION"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.ValidationLayers = b
		}
	}
}
