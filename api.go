// Package voxnet implements a pre-activation ResNetV2 3-D backbone used as
// the feature-extraction encoder of volumetric segmentation models. A
// forward pass yields the deepest feature map plus three skip features at
// progressively coarser resolutions, shape-reconciled to what a decoder
// expects under non-power-of-two input volumes.
package voxnet

import (
	"fmt"
	"log"

	"github.com/lth/pure-go-voxnet/internal/backbone"
	"github.com/lth/pure-go-voxnet/internal/weights"
	"github.com/lth/pure-go-voxnet/pkg/tensor"
)

// ErrShapeMismatch is returned (wrapped) when a skip feature cannot be
// reconciled with the spatial shape the decoder expects at that depth.
var ErrShapeMismatch = backbone.ErrShapeMismatch

// Options configures a Backbone.
type Options struct {
	// InputChannels is the channel count of input volumes (default: 1).
	InputChannels int

	// Seed drives deterministic parameter initialization.
	Seed uint64

	// Verbose logs output shapes after each forward pass.
	Verbose bool
}

// Option is a functional option for configuring the backbone.
type Option func(*Options)

// WithInputChannels sets the input channel count.
func WithInputChannels(n int) Option {
	return func(o *Options) {
		o.InputChannels = n
	}
}

// WithSeed sets the parameter initialization seed.
func WithSeed(seed uint64) Option {
	return func(o *Options) {
		o.Seed = seed
	}
}

// WithVerbose enables verbose logging.
func WithVerbose(v bool) Option {
	return func(o *Options) {
		o.Verbose = v
	}
}

// Backbone is the public handle on the encoder.
type Backbone struct {
	net     *backbone.ResNetV2
	options Options
}

// New builds a backbone. blockUnits gives the bottleneck-unit count of each
// of the three stages; widthFactor scales the base width of 64 channels.
func New(blockUnits [3]int, widthFactor float64, opts ...Option) (*Backbone, error) {
	options := Options{
		InputChannels: 1,
		Seed:          1,
	}
	for _, opt := range opts {
		opt(&options)
	}

	net, err := backbone.New(backbone.Config{
		BlockUnits:    blockUnits,
		WidthFactor:   widthFactor,
		InputChannels: options.InputChannels,
		Seed:          options.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("build backbone: %w", err)
	}
	return &Backbone{net: net, options: options}, nil
}

// Forward runs the encoder on a (batch, channels, depth, height, width)
// volume. It returns the deepest feature map and the three skip features
// ordered [stage2, stage1, root], with channel counts SkipChannels().
func (b *Backbone) Forward(x *tensor.Tensor) (*tensor.Tensor, []*tensor.Tensor, error) {
	out, skips, err := b.net.Forward(x)
	if err != nil {
		return nil, nil, err
	}
	if b.options.Verbose {
		log.Printf("voxnet: output %v", out.Shape())
		for i, s := range skips {
			log.Printf("voxnet: skip %d %v", i, s.Shape())
		}
	}
	return out, skips, nil
}

// Width returns floor(64 * widthFactor).
func (b *Backbone) Width() int {
	return b.net.Width()
}

// OutChannels returns the channel count of the primary output (16 × width).
func (b *Backbone) OutChannels() int {
	return b.net.OutChannels()
}

// SkipChannels returns the skip feature channel counts in the order Forward
// returns them: [8, 4, 1] × width.
func (b *Backbone) SkipChannels() [3]int {
	return b.net.SkipChannels()
}

// SaveWeights writes all parameters to a checkpoint file.
func (b *Backbone) SaveWeights(path string) error {
	return weights.SaveParams(path, b.net.Params())
}

// LoadWeights restores parameters from a checkpoint written by SaveWeights.
func (b *Backbone) LoadWeights(path string) error {
	r, err := weights.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	return weights.Apply(r, b.net.Params())
}

// ImportWeights restores parameters from a checkpoint whose convolution
// kernels use the external (kD, kH, kW, in, out) axis order, converting
// them to the internal (out, in, kD, kH, kW) layout.
func (b *Backbone) ImportWeights(path string) error {
	r, err := weights.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	return weights.ApplyExternal(r, b.net.Params())
}
