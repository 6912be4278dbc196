package odata

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var (
	ErrNotAcceptable     = errors.New("only json is supported (use $format=json or accept: application/json)")
	ErrUnsupportedOption = errors.New("query option not supported")
	ErrVersion           = errors.New("odata version not supported")
	ErrInvalidOption     = errors.New("invalid query option")
)

// SupportedOptions are the system query options the service understands.
var SupportedOptions = map[string]bool{
	"$format": true,
	"$count":  true,
	"$skip":   true,
	"$top":    true,
}

// Query holds the parsed system query options.
type Query struct {
	Top   *int64
	Skip  int64
	Count bool
}

// CheckOptions rejects any "$" option the service does not implement.
// Custom (non-"$") parameters are ignored.
func CheckOptions(values url.Values) error {
	for name := range values {
		if strings.HasPrefix(name, "$") && !SupportedOptions[name] {
			return fmt.Errorf("%w: %s", ErrUnsupportedOption, name)
		}
	}
	return nil
}

// ParseQuery reads $top, $skip and $count.
func ParseQuery(values url.Values) (Query, error) {
	if err := CheckOptions(values); err != nil {
		return Query{}, err
	}

	var q Query
	if v := values.Get("$top"); v != "" {
		n, err := nonNegative("$top", v)
		if err != nil {
			return Query{}, err
		}
		q.Top = &n
	}
	if v := values.Get("$skip"); v != "" {
		n, err := nonNegative("$skip", v)
		if err != nil {
			return Query{}, err
		}
		q.Skip = n
	}
	if v := values.Get("$count"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Query{}, fmt.Errorf("%w: $count=%q", ErrInvalidOption, v)
		}
		q.Count = b
	}
	return q, nil
}

func nonNegative(name, v string) (int64, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidOption, name, v)
	}
	return n, nil
}

// WantsJSON reports whether a request asks for JSON, either through
// $format or the Accept header. A bare wildcard Accept is not enough: the
// client has to name JSON.
func WantsJSON(format, accept string) bool {
	return isJSON(format) || isJSON(accept)
}

func isJSON(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "json" || strings.HasPrefix(v, "application/json")
}

// VersionSupported reports whether an OData-MaxVersion header admits 4.0.
// An absent or unreadable header admits every version.
func VersionSupported(maxVersion string) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(maxVersion), 64)
	if err != nil {
		return true
	}
	return v >= 4.0
}
