package port

import "imgadapt/internal/core/domain"

// ImageAdapter performs the file-level geometry operations. Implementations are CPU bound and
// synchronous; callers decide where they run.
type ImageAdapter interface {
	// Describe reads the dimensions of the image at path.
	Describe(path string) (domain.ImageDescriptor, error)
	// Pad centers the image on a solid canvas at the target ratio and writes it as a derived file.
	Pad(src domain.ImageDescriptor, target domain.Ratio) (domain.ImageDescriptor, error)
	// Stretch resamples the image to exactly the target ratio and writes it as a derived file.
	Stretch(src domain.ImageDescriptor, target domain.Ratio) (domain.ImageDescriptor, error)
	// Restore crops the result at path in place back to the reference's ratio.
	Restore(reference domain.ImageDescriptor, resultPath string) (domain.ImageDescriptor, error)
}
