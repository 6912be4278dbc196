package xform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type is the atomic value kind of a leaf field.
type Type int

const (
	TypeString Type = iota
	TypeInteger
	TypeDecimal
	TypeGeopoint
)

// String returns the canonical name used in logs and test output.
func (t Type) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeDecimal:
		return "decimal"
	case TypeGeopoint:
		return "geopoint"
	default:
		return "string"
	}
}

// ParseType maps an XForms bind type to a Type.
// Unknown and empty types fall back to TypeString.
func ParseType(bindType string) Type {
	// Bind types are sometimes written with a namespace prefix (xsd:int).
	if i := strings.LastIndexByte(bindType, ':'); i >= 0 {
		bindType = bindType[i+1:]
	}

	switch strings.ToLower(strings.TrimSpace(bindType)) {
	case "int", "integer":
		return TypeInteger
	case "decimal":
		return TypeDecimal
	case "geopoint":
		return TypeGeopoint
	default:
		return TypeString
	}
}

// EdmType returns the OData primitive type a field of this Type is published as.
func (t Type) EdmType() string {
	switch t {
	case TypeInteger:
		return "Edm.Int64"
	case TypeDecimal:
		return "Edm.Decimal"
	case TypeGeopoint:
		return "Edm.GeographyPoint"
	default:
		return "Edm.String"
	}
}

// Point is a decoded geopoint in GeoJSON axis order.
type Point struct {
	Lng    float64
	Lat    float64
	Alt    float64
	HasAlt bool
}

// Coordinates returns the GeoJSON coordinate array [lng, lat(, alt)].
func (p Point) Coordinates() []float64 {
	if p.HasAlt {
		return []float64{p.Lng, p.Lat, p.Alt}
	}
	return []float64{p.Lng, p.Lat}
}

// CoerceInteger parses text as a base-10 integer.
func CoerceInteger(path, text string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, &CoercionError{Path: path, Type: TypeInteger, Text: text, Err: err}
	}
	return v, nil
}

// CoerceDecimal parses text as a floating point number.
func CoerceDecimal(path, text string) (float64, error) {
	v, err := parseFinite(strings.TrimSpace(text))
	if err != nil {
		return 0, &CoercionError{Path: path, Type: TypeDecimal, Text: text, Err: err}
	}
	return v, nil
}

// CoerceGeopoint parses "lat lng [alt [accuracy]]". Accuracy is dropped.
func CoerceGeopoint(path, text string) (Point, error) {
	parts := strings.Fields(text)
	if len(parts) < 2 || len(parts) > 4 {
		return Point{}, &CoercionError{
			Path: path, Type: TypeGeopoint, Text: text,
			Err: fmt.Errorf("expected 2-4 space separated numbers, got %d", len(parts)),
		}
	}

	nums := make([]float64, len(parts))
	for i, part := range parts {
		v, err := parseFinite(part)
		if err != nil {
			return Point{}, &CoercionError{Path: path, Type: TypeGeopoint, Text: text, Err: err}
		}
		nums[i] = v
	}

	p := Point{Lat: nums[0], Lng: nums[1]}
	if len(nums) > 2 {
		p.Alt = nums[2]
		p.HasAlt = true
	}
	return p, nil
}

// parseFinite parses a float and rejects NaN and infinities, which have no
// JSON representation.
func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return v, nil
}
