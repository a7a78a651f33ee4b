package separation

import (
	"cmp"
	"fmt"
	"image"
	"slices"

	"globule-detector/internal/geometry"
	"globule-detector/internal/logger"
	"globule-detector/internal/opencv/conversion"
	"globule-detector/internal/opencv/memory"
	"globule-detector/internal/opencv/safe"

	"gocv.io/x/gocv"
)

const component = "ClusterSeparator"

// DefaultMarkerRatio is the share of a peak's distance to background that
// its neighbours need to join the peak's watershed seed.
const DefaultMarkerRatio = 0.7

// Separator splits clusters of touching blobs with a marker-based
// watershed. Each call works on its own scratch Mats; a Separator can be
// shared between goroutines.
type Separator struct {
	logger      logger.Logger
	mem         *memory.Manager
	raster      *geometry.Rasterizer
	markerRatio float64
}

func NewSeparator(log logger.Logger, mem *memory.Manager, markerRatio float64) *Separator {
	if mem == nil {
		mem = memory.NewManager(log)
	}
	if !(markerRatio > 0 && markerRatio < 1) {
		markerRatio = DefaultMarkerRatio
	}
	return &Separator{
		logger:      logger.OrNoOp(log),
		mem:         mem,
		raster:      geometry.NewRasterizer(mem),
		markerRatio: markerRatio,
	}
}

// Separate rasterizes polygons onto a rows x cols mask, cuts touching
// regions apart and returns the outer contour of each surviving watershed
// region. No output pixel lies outside the union of the inputs, and no
// region contributes more than one polygon.
func (s *Separator) Separate(polygons []geometry.Polygon, rows, cols int) ([]geometry.Polygon, error) {
	if len(polygons) == 0 {
		return nil, nil
	}
	if err := safe.ValidateDimensions(cols, rows, "cluster separation"); err != nil {
		return nil, err
	}

	// one pixel of background all round keeps edge pixels off the
	// watershed's image frame
	w, h := cols+2, rows+2

	var acquired []*safe.Mat
	defer func() {
		for _, m := range acquired {
			s.mem.ReleaseMat(m)
		}
	}()
	get := func(matType gocv.MatType) (*safe.Mat, error) {
		m, err := s.mem.GetMat(h, w, matType)
		if err != nil {
			return nil, fmt.Errorf("scratch Mat allocation failed: %w", err)
		}
		acquired = append(acquired, m)
		return m, nil
	}

	mask, err := get(gocv.MatTypeCV8UC1)
	if err != nil {
		return nil, err
	}
	shifted := make([]geometry.Polygon, len(polygons))
	for i, p := range polygons {
		shifted[i] = p.Translate(1, 1)
	}
	if err := s.raster.Draw(mask, shifted); err != nil {
		return nil, fmt.Errorf("cluster rasterization failed: %w", err)
	}

	markers, count, err := s.buildMarkers(mask, get)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	bgr, err := get(gocv.MatTypeCV8UC3)
	if err != nil {
		return nil, err
	}
	if err := conversion.GrayToBGR(mask, bgr); err != nil {
		return nil, err
	}

	bgrMat := bgr.GetMat()
	markersMat := markers.GetMat()
	gocv.Watershed(bgrMat, &markersMat)

	maskData, err := mask.Bytes()
	if err != nil {
		return nil, err
	}
	labels, err := markersMat.DataPtrInt32()
	if err != nil {
		return nil, fmt.Errorf("marker access failed: %w", err)
	}

	out := s.extractRegions(labels, maskData, w, h, count)

	s.logger.Debug(component, "clusters separated", map[string]interface{}{
		"clusters": len(polygons),
		"markers":  count,
		"pieces":   len(out),
	})
	return out, nil
}

// buildMarkers labels watershed seeds 1..count in a CV_32SC1 Mat, one per
// significant peak of the distance to background (see seedRegions).
// Unlabelled pixels (0) are left for the watershed to flood.
func (s *Separator) buildMarkers(mask *safe.Mat, get func(gocv.MatType) (*safe.Mat, error)) (*safe.Mat, int, error) {
	dist, err := get(gocv.MatTypeCV32FC1)
	if err != nil {
		return nil, 0, err
	}
	voronoi, err := get(gocv.MatTypeCV32SC1)
	if err != nil {
		return nil, 0, err
	}
	components, err := get(gocv.MatTypeCV32SC1)
	if err != nil {
		return nil, 0, err
	}
	dilated, err := get(gocv.MatTypeCV32FC1)
	if err != nil {
		return nil, 0, err
	}

	maskMat := mask.GetMat()
	distMat := dist.GetMat()
	voronoiMat := voronoi.GetMat()
	componentsMat := components.GetMat()
	dilatedMat := dilated.GetMat()

	n := gocv.ConnectedComponentsWithParams(maskMat, &componentsMat, 4, gocv.MatTypeCV32S, gocv.CCL_DEFAULT)
	if n <= 1 {
		return nil, 0, nil
	}
	gocv.DistanceTransform(maskMat, &distMat, &voronoiMat, gocv.DistL2, gocv.DistanceMask5, gocv.DistanceLabelCComp)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	gocv.Dilate(distMat, &dilatedMat, kernel)

	distances, err := distMat.DataPtrFloat32()
	if err != nil {
		return nil, 0, fmt.Errorf("distance access failed: %w", err)
	}
	neighbourhoodMax, err := dilatedMat.DataPtrFloat32()
	if err != nil {
		return nil, 0, fmt.Errorf("dilated distance access failed: %w", err)
	}

	seeds := seedRegions(distances, neighbourhoodMax, mask.Cols(), float32(s.markerRatio))

	seedMask, err := get(gocv.MatTypeCV8UC1)
	if err != nil {
		return nil, 0, err
	}
	if err := seedMask.SetBytes(seeds); err != nil {
		return nil, 0, err
	}

	markers, err := get(gocv.MatTypeCV32SC1)
	if err != nil {
		return nil, 0, err
	}
	seedMat := seedMask.GetMat()
	markersMat := markers.GetMat()
	k := gocv.ConnectedComponentsWithParams(seedMat, &markersMat, 4, gocv.MatTypeCV32S, gocv.CCL_DEFAULT)

	s.logger.Debug(component, "markers built", map[string]interface{}{
		"components": n - 1,
		"markers":    k - 1,
	})
	return markers, k - 1, nil
}

// seedRegions marks a seed around every significant local maximum of dist.
// Peaks are visited from highest to lowest; each floods its 4-connected
// neighbourhood where dist >= ratio x peak. A flood that reaches higher
// ground belongs to a taller peak and is discarded, so a small blob
// touching a larger one keeps its own seed while ripples along a single
// blob's ridge do not.
func seedRegions(dist, neighbourhoodMax []float32, w int, ratio float32) []byte {
	var peaks []int
	for i, d := range dist {
		if d > 0 && d >= neighbourhoodMax[i] {
			peaks = append(peaks, i)
		}
	}
	slices.SortStableFunc(peaks, func(a, b int) int {
		return cmp.Compare(dist[b], dist[a])
	})

	seeds := make([]byte, len(dist))
	visited := make([]int32, len(dist))
	var region, stack []int

	for n, p := range peaks {
		if seeds[p] != 0 {
			continue
		}

		stamp := int32(n + 1)
		peak := dist[p]
		floor := ratio * peak
		region = region[:0]
		stack = append(stack[:0], p)
		visited[p] = stamp
		significant := true

		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if dist[i] > peak {
				significant = false
				break
			}
			region = append(region, i)

			x := i % w
			for _, j := range [4]int{i - w, i + w, i - 1, i + 1} {
				if j < 0 || j >= len(dist) || (j == i-1 && x == 0) || (j == i+1 && x == w-1) {
					continue
				}
				if visited[j] != stamp && dist[j] >= floor {
					visited[j] = stamp
					stack = append(stack, j)
				}
			}
		}

		if significant {
			for _, i := range region {
				seeds[i] = 255
			}
		}
	}
	return seeds
}

// extractRegions traces each watershed region clipped to the mask. Boundary
// pixels (-1) and flooded background are dropped. A region cut into
// several fragments keeps its largest one.
func (s *Separator) extractRegions(labels []int32, mask []byte, w, h, count int) []geometry.Polygon {
	bounds := make([]image.Rectangle, count+1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			label := labels[i]
			if label <= 0 || int(label) > count || mask[i] == 0 {
				continue
			}
			pixel := image.Rect(x, y, x+1, y+1)
			if bounds[label].Empty() {
				bounds[label] = pixel
			} else {
				bounds[label] = bounds[label].Union(pixel)
			}
		}
	}

	scratch := &image.Gray{
		Pix:    make([]byte, w*h),
		Stride: w,
		Rect:   image.Rect(0, 0, w, h),
	}

	var out []geometry.Polygon
	for label := 1; label <= count; label++ {
		r := bounds[label]
		if r.Empty() {
			continue
		}

		s.paint(scratch, labels, mask, r, int32(label), 255)
		fragments := geometry.TraceOuter(scratch.SubImage(r).(*image.Gray))
		s.paint(scratch, labels, mask, r, int32(label), 0)

		if len(fragments) == 0 {
			continue
		}
		// one polygon per label: output never outnumbers the watershed labels
		best := fragments[0]
		for _, f := range fragments[1:] {
			if f.Area() > best.Area() {
				best = f
			}
		}
		if len(fragments) > 1 {
			s.logger.Debug(component, "fragments dropped", map[string]interface{}{
				"label":     label,
				"fragments": len(fragments),
			})
		}
		out = append(out, best.Translate(-1, -1))
	}
	return out
}

func (s *Separator) paint(img *image.Gray, labels []int32, mask []byte, r image.Rectangle, label int32, value byte) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			i := y*img.Stride + x
			if labels[i] == label && mask[i] != 0 {
				img.Pix[i] = value
			}
		}
	}
}
