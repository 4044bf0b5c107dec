package timelapse

// Kind tags the concrete type of a timeline entity.
type Kind int

const (
	KindOther Kind = iota
	KindExtrude
	KindRevolve
	KindMove
	KindMirror
	KindJoint
	KindOccurrence
	KindRectangularPattern
	KindSketch
	KindConstructionPlane
	KindConstructionAxis
	KindConstructionPoint
	KindThreadFeature
	KindCombine
	KindCanvas
)

var kindNames = map[Kind]string{
	KindOther:              "other",
	KindExtrude:            "extrude",
	KindRevolve:            "revolve",
	KindMove:               "move",
	KindMirror:             "mirror",
	KindJoint:              "joint",
	KindOccurrence:         "occurrence",
	KindRectangularPattern: "rectangular_pattern",
	KindSketch:             "sketch",
	KindConstructionPlane:  "construction_plane",
	KindConstructionAxis:   "construction_axis",
	KindConstructionPoint:  "construction_point",
	KindThreadFeature:      "thread",
	KindCombine:            "combine",
	KindCanvas:             "canvas",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// LookupKind maps a kind name back to its tag.
func LookupKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindOther, false
}

// Entity is the object behind a timeline entry. Every entity reports its
// Kind; the kind decides which capability interface below it must satisfy.
type Entity interface {
	Kind() Kind
}

// FeatureOperation is the boolean operation an extrude performs.
type FeatureOperation int

const (
	OperationJoin FeatureOperation = iota
	OperationCut
	OperationIntersect
	OperationNewBody
	OperationNewComponent
)

// CreatesGeometry reports whether the operation introduces a new body or
// component rather than modifying existing ones.
func (o FeatureOperation) CreatesGeometry() bool {
	return o == OperationNewBody || o == OperationNewComponent
}

// ExtrudeFeature is satisfied by entities of KindExtrude.
type ExtrudeFeature interface {
	Entity
	ExtentOne() Extent
	ExtentTwo() Extent
	HasTwoExtents() bool
	Operation() FeatureOperation
	Bodies() []Body
}

// RevolveFeature is satisfied by entities of KindRevolve.
type RevolveFeature interface {
	Entity
	ExtentDefinition() Extent
	IsSymmetric() bool
	SetIsSymmetric(v bool) error
}

// MoveFeature is satisfied by entities of KindMove.
type MoveFeature interface {
	Entity
	Transform() ([16]float64, error)
}

// MirrorFeature is satisfied by entities of KindMirror.
type MirrorFeature interface {
	Entity
	BodyCount() (int, error)
	InputEntityCount() (int, error)
}

// JointFeature is satisfied by entities of KindJoint.
type JointFeature interface {
	Entity
	// OccurrenceOne returns nil when the joint does not reference one.
	OccurrenceOne() Occurrence
}

// RectangularPatternFeature is satisfied by entities of KindRectangularPattern.
// Absent parameters are returned as nil.
type RectangularPatternFeature interface {
	Entity
	QuantityOne() Parameter
	DistanceOne() Parameter
	QuantityTwo() Parameter
	DistanceTwo() Parameter
}
