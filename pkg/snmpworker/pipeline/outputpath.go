package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gralabs/snmpworker/pkg/snmpworker/workerr"
)

// outputPathSegment matches either a literal run of path characters or a
// single {...} placeholder, in order, covering the whole template.
var outputPathSegment = regexp.MustCompile(`([.0-9a-zA-Z_-]+)|(\{[^}]+\})`)

// outputPathWhole requires the segment pattern to cover the entire string
// with no gaps, i.e. no character falls outside a literal run or a
// placeholder.
var outputPathWhole = regexp.MustCompile(`^(?:[.0-9a-zA-Z_-]+|\{[^}]+\})+$`)

var slugifyPattern = regexp.MustCompile(`[^0-9A-Za-z_-]+`)

// slugify collapses any run of characters outside [0-9A-Za-z_-] into a
// single hyphen, matching the backend's path-segment convention.
func slugify(s string) string {
	return slugifyPattern.ReplaceAllString(s, "-")
}

// ValidateOutputPathTemplate reports an InvalidOutputPath error if template
// is not composed entirely of literal path characters and {...}
// placeholders.
func ValidateOutputPathTemplate(template string) error {
	if template == "" {
		return workerr.NewInvalidOutputPath("output path template is empty")
	}
	if !outputPathWhole.MatchString(template) {
		return workerr.NewInvalidOutputPath(fmt.Sprintf("malformed output path template %q", template))
	}
	return nil
}

// BuildOutputPath substitutes placeholders in template and returns the
// resulting path. oidIndex is substituted verbatim for {$index} — the
// index is assumed already path-safe, matching the original bot, which
// only slugifies positional values. values holds the per-OID-position
// converted values for the current index (1-based positions, so values[0]
// is $1); {$N} substitutes the slugified string form of values[N-1]. An
// out-of-range {$N} or an unrecognized placeholder yields
// InvalidOutputPath.
func BuildOutputPath(template string, oidIndex string, values []interface{}) (string, error) {
	if err := ValidateOutputPathTemplate(template); err != nil {
		return "", err
	}

	matches := outputPathSegment.FindAllStringIndex(template, -1)
	var b strings.Builder
	for _, m := range matches {
		seg := template[m[0]:m[1]]
		if !strings.HasPrefix(seg, "{") {
			b.WriteString(seg)
			continue
		}

		inner := seg[1 : len(seg)-1]
		switch {
		case inner == "$index":
			b.WriteString(oidIndex)
		case strings.HasPrefix(inner, "$"):
			n, err := strconv.Atoi(inner[1:])
			if err != nil || n < 1 || n > len(values) {
				return "", workerr.NewInvalidOutputPath(fmt.Sprintf("output path placeholder %q is out of range", seg))
			}
			v := values[n-1]
			if v == nil {
				return "", workerr.NewInvalidOutputPath(fmt.Sprintf("output path placeholder %q has no value", seg))
			}
			b.WriteString(slugify(fmt.Sprintf("%v", v)))
		default:
			return "", workerr.NewInvalidOutputPath(fmt.Sprintf("unrecognized output path placeholder %q", seg))
		}
	}
	return b.String(), nil
}
