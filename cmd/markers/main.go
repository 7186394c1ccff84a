// Markers renders the four whiteboard fiducials to a printable PNG sheet.
// Print it, cut out the markers, and mount them at the corners of the
// physical surface matching their on-canvas anchors: 0 top-left, 1
// top-right, 2 bottom-right, 3 bottom-left.
package main

import (
	"flag"
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"github.com/mathisfun2048/magic-whiteboard-camera-console/pkg/vision"
)

func main() {
	size := flag.Int("size", 400, "marker side length in pixels")
	padding := flag.Int("padding", 80, "white border around each marker in pixels")
	out := flag.String("out", "markers.png", "output file")
	flag.Parse()

	cap, err := vision.Shared()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	cell := *size + 2*(*padding)
	sheet := gocv.NewMatWithSize(cell, cell*vision.MarkerCount, gocv.MatTypeCV8U)
	defer sheet.Close()
	sheet.SetTo(gocv.NewScalar(255, 0, 0, 0))

	for id := 0; id < vision.MarkerCount; id++ {
		marker, err := cap.GenerateMarker(id, *size)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ marker %d: %v\n", id, err)
			os.Exit(1)
		}

		x0 := id*cell + *padding
		region := sheet.Region(image.Rect(x0, *padding, x0+*size, *padding+*size))
		marker.CopyTo(&region)
		region.Close()
		marker.Close()
	}

	if ok := gocv.IMWrite(*out, sheet); !ok {
		fmt.Fprintf(os.Stderr, "❌ write %s failed\n", *out)
		os.Exit(1)
	}
	fmt.Printf("✅ Wrote %d markers to %s\n", vision.MarkerCount, *out)
}
