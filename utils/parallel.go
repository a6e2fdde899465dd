package utils

import (
	"image"
	"runtime"
	"sync"

	"go.viam.com/utils"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// ParallelForEachPixel calls f for every [x, y] position of rect. The rectangle is cut into
// ParallelFactor horizontal bands, each handled by its own goroutine; f must only write state that
// belongs to its own pixel.
func ParallelForEachPixel(rect image.Rectangle, f func(x, y int)) {
	rows := rect.Dy()
	if rows <= 0 || rect.Dx() <= 0 {
		return
	}
	bands := ParallelFactor
	if bands > rows {
		bands = rows
	}
	var waitGroup sync.WaitGroup
	waitGroup.Add(bands)
	for i := 0; i < bands; i++ {
		startY := rect.Min.Y + i*rows/bands
		endY := rect.Min.Y + (i+1)*rows/bands
		utils.PanicCapturingGo(func() {
			defer waitGroup.Done()
			for y := startY; y < endY; y++ {
				for x := rect.Min.X; x < rect.Max.X; x++ {
					f(x, y)
				}
			}
		})
	}
	waitGroup.Wait()
}
