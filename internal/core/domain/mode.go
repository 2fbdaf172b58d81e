package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type ModeKind string

const (
	ModeOriginal ModeKind = "original"
	ModeForced   ModeKind = "forced"
)

// Mode selects how an image is adapted before submission: padded to the best-fit ratio, or stretched
// to a fixed target ratio.
type Mode struct {
	Kind   ModeKind
	Target Ratio
}

var OriginalMode = Mode{Kind: ModeOriginal}

func ForcedMode(target Ratio) Mode {
	return Mode{Kind: ModeForced, Target: target}
}

func (m Mode) String() string {
	if m.Kind == ModeForced {
		return fmt.Sprintf("forced:%d:%d", m.Target.W, m.Target.H)
	}
	return string(ModeOriginal)
}

// ParseMode parses a processing-mode selector: "original", "ozon_3_4" or "forced:<w>:<h>".
func ParseMode(selector string) (Mode, error) {
	s := strings.ToLower(strings.TrimSpace(selector))

	switch s {
	case "", string(ModeOriginal):
		return OriginalMode, nil
	case "ozon_3_4":
		return ForcedMode(Ozon), nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 || parts[0] != string(ModeForced) {
		return Mode{}, fmt.Errorf("%w: unknown mode %q", ErrValidation, selector)
	}

	w, err := strconv.Atoi(parts[1])
	if err != nil || w <= 0 {
		return Mode{}, fmt.Errorf("%w: bad ratio width in %q", ErrValidation, selector)
	}
	h, err := strconv.Atoi(parts[2])
	if err != nil || h <= 0 {
		return Mode{}, fmt.Errorf("%w: bad ratio height in %q", ErrValidation, selector)
	}

	return ForcedMode(Ratio{Label: fmt.Sprintf("%d:%d", w, h), W: w, H: h}), nil
}
