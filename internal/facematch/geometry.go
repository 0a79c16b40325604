package facematch

// Rect is a face box in [x, y, w, h] form, as the overlay draws it.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// ValidBBox reports whether bbox is [x1, y1, x2, y2] with x2 > x1 and y2 > y1.
func ValidBBox(bbox []float64) bool {
	return len(bbox) == 4 && bbox[2] > bbox[0] && bbox[3] > bbox[1]
}

// BBoxToRect converts a pixel bounding box [x1, y1, x2, y2] to a display rect.
// Returns false for malformed boxes.
func BBoxToRect(bbox []float64) (Rect, bool) {
	if !ValidBBox(bbox) {
		return Rect{}, false
	}
	return Rect{
		X: bbox[0],
		Y: bbox[1],
		W: bbox[2] - bbox[0],
		H: bbox[3] - bbox[1],
	}, true
}

// ConvertPixelBBoxToRelative converts pixel bbox to relative (0-1) coordinates.
// Input bbox is [x1, y1, x2, y2] in pixels, output is [x1, y1, x2, y2] in relative coords.
func ConvertPixelBBoxToRelative(bbox []float64, width, height int) []float64 {
	if len(bbox) != 4 || width <= 0 || height <= 0 {
		return bbox
	}
	return []float64{
		bbox[0] / float64(width),
		bbox[1] / float64(height),
		bbox[2] / float64(width),
		bbox[3] / float64(height),
	}
}

// ScaleBBox maps a bbox computed on a downscaled frame back to source pixels.
// A scale of 1 or less returns the box unchanged.
func ScaleBBox(bbox []float64, scale float64) []float64 {
	if len(bbox) != 4 || scale <= 1 {
		return bbox
	}
	return []float64{bbox[0] * scale, bbox[1] * scale, bbox[2] * scale, bbox[3] * scale}
}
