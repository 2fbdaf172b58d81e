// Package geometry holds the aspect-ratio arithmetic used to adapt images to the ratios accepted by the
// remote service and to undo that adaptation afterwards. Everything here is pure.
package geometry

import (
	"image"
	"math"

	"imgadapt/internal/core/domain"
)

// RestoreTolerance is the ratio difference under which a result is considered already correct.
const RestoreTolerance = 0.01

func validSize(width, height int) bool {
	return width > 0 && height > 0
}

// wider reports whether width/height is strictly wider than the target ratio.
func wider(width, height int, target domain.Ratio) bool {
	return width*target.H > height*target.W
}

// BestFit returns the candidate ratio that requires the least padded area to contain a
// width x height image while keeping its dominant dimension. Ties go to the earlier candidate.
func BestFit(width, height int, candidates []domain.Ratio) domain.Ratio {
	if !validSize(width, height) || len(candidates) == 0 {
		return domain.DefaultRatio
	}

	w, h := float64(width), float64(height)
	best := candidates[0]
	minArea := math.Inf(1)

	for _, candidate := range candidates {
		var area float64
		if wider(width, height, candidate) {
			area = w * (w/candidate.Value() - h)
		} else {
			area = h * (h*candidate.Value() - w)
		}

		if area < minArea {
			minArea = area
			best = candidate
		}
	}

	return best
}

// PadSize returns the canvas size that contains a width x height image at the target ratio.
// Too-wide images keep their width and grow in height, everything else keeps its height.
func PadSize(width, height int, target domain.Ratio) (int, int) {
	if !validSize(width, height) {
		return width, height
	}

	if wider(width, height, target) {
		return width, width * target.H / target.W
	}

	return height * target.W / target.H, height
}

// Offset centers inner within outer, truncating toward zero.
func Offset(outer, inner int) int {
	return (outer - inner) / 2
}

// PadRect is where the source lands on a canvas produced by PadSize.
func PadRect(width, height int, target domain.Ratio) image.Rectangle {
	cw, ch := PadSize(width, height, target)
	origin := image.Pt(Offset(cw, width), Offset(ch, height))
	return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(width, height))}
}

// StretchSize keeps the height and rescales the width to hit the target ratio exactly.
func StretchSize(width, height int, target domain.Ratio) (int, int) {
	if !validSize(width, height) {
		return width, height
	}

	return height * target.W / target.H, height
}

// RestoreBox returns the region of a resW x resH result that holds content at the reference's ratio,
// assuming the result was padded with centered bands. The boolean is false when no crop is needed.
func RestoreBox(refW, refH, resW, resH int) (image.Rectangle, bool) {
	full := image.Rect(0, 0, resW, resH)
	if !validSize(refW, refH) || !validSize(resW, resH) {
		return full, false
	}

	refRatio := float64(refW) / float64(refH)
	resRatio := float64(resW) / float64(resH)

	if math.Abs(refRatio-resRatio) < RestoreTolerance {
		return full, false
	}

	if refRatio > resRatio {
		validH := resW * refH / refW
		top := Offset(resH, validH)
		return image.Rect(0, top, resW, top+validH), true
	}

	validW := resH * refW / refH
	left := Offset(resW, validW)
	return image.Rect(left, 0, left+validW, resH), true
}
