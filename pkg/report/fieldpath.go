package report

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/adharvest/pkg/errors"
)

// noneLiteral is what an empty list flattens to. Warehouse tables loaded by
// the legacy scripts already contain it, so it is kept verbatim.
const noneLiteral = "None"

// FieldPath is a dotted API field path parsed once into the camelCase keys
// used by the JSON representation of a result row.
type FieldPath struct {
	raw      string
	segments []string
}

// ParseFieldPath parses a GAQL field path such as
// "ad_group_criterion.quality_info.quality_score".
func ParseFieldPath(path string) (FieldPath, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return FieldPath{}, errors.New(errors.ErrorTypeConfig, "field path is empty")
	}

	parts := strings.Split(path, ".")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return FieldPath{}, errors.Newf(errors.ErrorTypeConfig, "field path %q has an empty segment", path)
		}
		segments = append(segments, CamelCase(part))
	}

	return FieldPath{raw: path, segments: segments}, nil
}

// MustParseFieldPath is ParseFieldPath for static definitions.
func MustParseFieldPath(path string) FieldPath {
	fp, err := ParseFieldPath(path)
	if err != nil {
		panic(err)
	}
	return fp
}

// String returns the path as written in the query
func (p FieldPath) String() string {
	return p.raw
}

// Segments returns the normalized keys
func (p FieldPath) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// IsZero reports whether the path was never set
func (p FieldPath) IsZero() bool {
	return len(p.segments) == 0
}

// CamelCase converts one snake_case segment to camelCase. The first word is
// kept as is and every following word is capitalised with the rest of it
// lower-cased, so "video_quartile_p100_rate" becomes "videoQuartileP100Rate".
func CamelCase(s string) string {
	words := strings.Split(s, "_")
	if len(words) == 1 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	b.WriteString(words[0])
	for _, w := range words[1:] {
		if w == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(strings.ToLower(w[size:]))
	}
	return b.String()
}

// Row is one decoded result row of a search stream.
type Row = map[string]interface{}

// Lookup walks row along path. A key missing at any depth yields
// found == false. Any other mismatch, such as a scalar where an object is
// expected, is a structural error.
func Lookup(row Row, path FieldPath) (value interface{}, found bool, err error) {
	if path.IsZero() {
		return nil, false, nil
	}

	var pivot interface{} = row
	for i, key := range path.segments {
		node, ok := pivot.(map[string]interface{})
		if !ok {
			return nil, false, errors.Newf(errors.ErrorTypeStructural,
				"cannot resolve %q: %s is %T, not an object",
				path.raw, strings.Join(path.segments[:i], "."), pivot).
				WithDetail("field", path.raw)
		}
		next, ok := node[key]
		if !ok {
			return nil, false, nil
		}
		pivot = next
	}

	return pivot, true, nil
}

// FlattenValue renders one API value the way the warehouse expects it. For
// a list the first element is used, or "None" when the list is empty;
// everything else is stringified directly.
func FlattenValue(v interface{}) string {
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return noneLiteral
		}
		return stringify(list[0])
	}
	return stringify(v)
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return noneLiteral
	case string:
		return val
	case gojson.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case map[string]interface{}, []interface{}:
		b, err := gojson.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
