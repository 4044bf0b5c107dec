package timelapse

// ExtentKind tags how far a solid operation extends.
type ExtentKind int

const (
	ExtentOther ExtentKind = iota
	ExtentDistance
	ExtentSymmetric
	ExtentAngle
)

func (k ExtentKind) String() string {
	switch k {
	case ExtentDistance:
		return "distance"
	case ExtentSymmetric:
		return "symmetric"
	case ExtentAngle:
		return "angle"
	default:
		return "other"
	}
}

// Extent is an extent definition. Param is the scalar driver for the
// numeric kinds and nil otherwise.
type Extent struct {
	Kind  ExtentKind
	Param Parameter
}

// IsNumericExtent reports whether the extent is driven by a single scalar
// that can be interpolated.
func IsNumericExtent(e Extent) bool {
	switch e.Kind {
	case ExtentDistance, ExtentSymmetric, ExtentAngle:
		return true
	default:
		return false
	}
}
