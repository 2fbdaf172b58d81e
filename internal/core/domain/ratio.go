package domain

import "fmt"

// Ratio is a width:height aspect ratio with a label understood by the remote service.
type Ratio struct {
	Label string
	W     int
	H     int
}

func (r Ratio) Value() float64 {
	return float64(r.W) / float64(r.H)
}

var (
	Square   = Ratio{Label: "1:1", W: 1, H: 1}
	Portrait = Ratio{Label: "2:3", W: 2, H: 3}
	Wide     = Ratio{Label: "3:2", W: 3, H: 2}
	Ozon     = Ratio{Label: "3:4", W: 3, H: 4}
)

// SupportedRatios is the set accepted by the remote service, in tie-break order.
var SupportedRatios = []Ratio{Square, Portrait, Wide}

// ExtendedRatios is the legacy common-ratio table.
var ExtendedRatios = []Ratio{
	Square,
	Portrait,
	Wide,
	Ozon,
	{Label: "4:3", W: 4, H: 3},
	{Label: "9:16", W: 9, H: 16},
	{Label: "16:9", W: 16, H: 9},
}

// DefaultRatio is used whenever an image has unusable dimensions.
var DefaultRatio = Square

// RatioTable returns the named ratio table.
func RatioTable(name string) ([]Ratio, error) {
	switch name {
	case "", "default":
		return SupportedRatios, nil
	case "extended":
		return ExtendedRatios, nil
	default:
		return nil, fmt.Errorf("%w: unknown ratio table %q", ErrValidation, name)
	}
}
