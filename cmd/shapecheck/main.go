// Command shapecheck builds a backbone and prints the shapes it produces
// for a random input volume. The defaults reproduce the reference
// configuration: block units (3, 4, 9), width factor 1, a single-channel
// 90x192x192 volume.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"golang.org/x/exp/rand"

	voxnet "github.com/lth/pure-go-voxnet"
	"github.com/lth/pure-go-voxnet/pkg/tensor"
)

func main() {
	var (
		units1   = flag.Int("units1", 3, "bottleneck units in stage 1")
		units2   = flag.Int("units2", 4, "bottleneck units in stage 2")
		units3   = flag.Int("units3", 9, "bottleneck units in stage 3")
		width    = flag.Float64("width", 1, "width factor")
		channels = flag.Int("channels", 1, "input channels")
		depth    = flag.Int("depth", 90, "input depth")
		height   = flag.Int("height", 192, "input height")
		w        = flag.Int("width-dim", 192, "input width")
		seed     = flag.Uint64("seed", 1, "parameter init seed")
	)
	flag.Parse()

	net, err := voxnet.New([3]int{*units1, *units2, *units3}, *width,
		voxnet.WithInputChannels(*channels),
		voxnet.WithSeed(*seed),
	)
	if err != nil {
		log.Fatalf("build backbone: %v", err)
	}

	x := tensor.New(1, *channels, *depth, *height, *w)
	rng := rand.New(rand.NewSource(*seed))
	data := x.Data()
	for i := range data {
		data[i] = float32(rng.Float64())
	}

	start := time.Now()
	out, skips, err := net.Forward(x)
	if err != nil {
		log.Fatalf("forward: %v", err)
	}

	fmt.Printf("input   %v\n", x.Shape())
	fmt.Printf("output  %v\n", out.Shape())
	for i, s := range skips {
		fmt.Printf("skip %d  %v\n", i, s.Shape())
	}
	fmt.Printf("elapsed %s\n", time.Since(start).Round(time.Millisecond))
}
