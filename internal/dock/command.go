package dock

// Class routes a command to exactly one worker.
type Class uint8

const (
	ClassLoadSVG Class = iota + 1
	ClassLoadLottie
	ClassLoadParticle
	ClassRemove
	ClassSpawn
	ClassPlacement
	ClassCamera
	ClassPick
)

var classNames = map[Class]string{
	ClassLoadSVG:      "load_svg",
	ClassLoadLottie:   "load_lottie",
	ClassLoadParticle: "load_particle",
	ClassRemove:       "remove",
	ClassSpawn:        "spawn",
	ClassPlacement:    "placement",
	ClassCamera:       "camera",
	ClassPick:         "pick",
}

func (c Class) String() string {
	if n, ok := classNames[c]; ok {
		return n
	}
	return "unknown"
}

// Classes lists every routable class in declaration order.
func Classes() []Class {
	return []Class{
		ClassLoadSVG, ClassLoadLottie, ClassLoadParticle,
		ClassRemove, ClassSpawn, ClassPlacement, ClassCamera, ClassPick,
	}
}

// Command is a request the simulation accepts. Variants are plain data.
type Command interface {
	Class() Class
	isCommand()
}

type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Placement is an entity's 2D transform. A zero Scale means unscaled.
type Placement struct {
	Position Vec2    `json:"position"`
	Rotation float64 `json:"rotation"` // radians
	Scale    Vec2    `json:"scale"`
	Z        float64 `json:"z"`
}

// Kind selects what a spawned entity renders.
type Kind uint8

const (
	// KindVector renders a loaded vector asset, optionally with an attached
	// particle emitter.
	KindVector Kind = iota + 1
	// KindParticle is a standalone particle emitter.
	KindParticle
)

func (k Kind) String() string {
	switch k {
	case KindVector:
		return "vector"
	case KindParticle:
		return "particle"
	}
	return "unknown"
}

// ParseKind accepts the names String returns. An empty name is KindVector.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "", "vector":
		return KindVector, true
	case "particle":
		return KindParticle, true
	}
	return 0, false
}

// VectorFormat is the encoding of a vector asset payload.
type VectorFormat uint8

const (
	FormatSVG VectorFormat = iota + 1
	FormatLottie
)

func (f VectorFormat) String() string {
	switch f {
	case FormatSVG:
		return "svg"
	case FormatLottie:
		return "lottie"
	}
	return "unknown"
}

// ParseFormat accepts the names String returns.
func ParseFormat(name string) (VectorFormat, bool) {
	switch name {
	case "svg":
		return FormatSVG, true
	case "lottie":
		return FormatLottie, true
	}
	return 0, false
}

// LoadVector decodes a vector asset and allocates an asset id for it.
type LoadVector struct {
	Format VectorFormat
	Data   []byte
}

// LoadParticle decodes a particle effect and allocates a particle id for it.
type LoadParticle struct {
	Data []byte
}

// RemoveEntity despawns an entity.
type RemoveEntity struct {
	ID uint32
}

// SpawnEntity creates an entity. Particle is an optional particle id (0 = none)
// for KindVector and the required effect for KindParticle.
type SpawnEntity struct {
	Asset     uint32
	Placement Placement
	Kind      Kind
	Particle  uint32
}

// SetPlacement replaces an entity's transform.
type SetPlacement struct {
	ID        uint32
	Placement Placement
}

// SetCamera moves the camera and sets its zoom.
type SetCamera struct {
	Position Vec2
	Scale    float64
}

// Pick asks which entity lies under a circle.
type Pick struct {
	Position Vec2
	Radius   float64
}

func (c LoadVector) Class() Class {
	switch c.Format {
	case FormatSVG:
		return ClassLoadSVG
	case FormatLottie:
		return ClassLoadLottie
	}
	return 0
}

func (LoadParticle) Class() Class { return ClassLoadParticle }
func (RemoveEntity) Class() Class { return ClassRemove }
func (SpawnEntity) Class() Class  { return ClassSpawn }
func (SetPlacement) Class() Class { return ClassPlacement }
func (SetCamera) Class() Class    { return ClassCamera }
func (Pick) Class() Class         { return ClassPick }

func (LoadVector) isCommand()   {}
func (LoadParticle) isCommand() {}
func (RemoveEntity) isCommand() {}
func (SpawnEntity) isCommand()  {}
func (SetPlacement) isCommand() {}
func (SetCamera) isCommand()    {}
func (Pick) isCommand()         {}
