package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/repolens/repolens/pkg/units"
)

// ErrUnparsableSize indicates a memory size string the grammar rejects.
var ErrUnparsableSize = errors.New("unparsable memory size")

// All size units are 1024-based, including the short and "B"-suffixed
// spellings (K, KB and KiB are synonyms).
var sizeMultipliers = map[string]int64{
	"":    1,
	"b":   1,
	"k":   units.KiB,
	"kb":  units.KiB,
	"kib": units.KiB,
	"m":   units.MiB,
	"mb":  units.MiB,
	"mib": units.MiB,
	"g":   units.GiB,
	"gb":  units.GiB,
	"gib": units.GiB,
	"t":   units.TiB,
	"tb":  units.TiB,
	"tib": units.TiB,
}

// ParseMemorySize parses sizes like "512", "64K", "1.5GB", "0.5G". Decimals
// are accepted; the result truncates to whole bytes.
func ParseMemorySize(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty input", ErrUnparsableSize)
	}

	split := len(trimmed)
	for split > 0 {
		c := trimmed[split-1]
		if c >= '0' && c <= '9' || c == '.' {
			break
		}

		split--
	}

	numberPart := strings.TrimSpace(trimmed[:split])
	unitPart := strings.ToLower(strings.TrimSpace(trimmed[split:]))

	multiplier, ok := sizeMultipliers[unitPart]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q", ErrUnparsableSize, unitPart)
	}

	value, err := strconv.ParseFloat(numberPart, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnparsableSize, input)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatMemorySize renders a byte count using the largest unit that divides
// it cleanly enough to read, e.g. 1536 → "1.5KB". Exact multiples of a
// power of 1024 round-trip through ParseMemorySize unchanged.
func FormatMemorySize(bytes int64) string {
	switch {
	case bytes >= units.TiB:
		return formatScaled(bytes, units.TiB, "TB")
	case bytes >= units.GiB:
		return formatScaled(bytes, units.GiB, "GB")
	case bytes >= units.MiB:
		return formatScaled(bytes, units.MiB, "MB")
	case bytes >= units.KiB:
		return formatScaled(bytes, units.KiB, "KB")
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}

func formatScaled(bytes, unit int64, suffix string) string {
	if bytes%unit == 0 {
		return fmt.Sprintf("%d%s", bytes/unit, suffix)
	}

	return fmt.Sprintf("%.1f%s", float64(bytes)/float64(unit), suffix)
}
