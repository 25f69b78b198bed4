package profile

// DefaultProfileName is used when the source record carries no display name
const DefaultProfileName = "Unnamed"

// Raw is an untyped record in the addon's compact key format
type Raw map[string]any

// Profile is the normalized representation of one character record
type Profile struct {
	ID              string          `json:"id"`
	ProfileName     string          `json:"profileName"`
	Characteristics Characteristics `json:"characteristics"`
	About           About           `json:"about"`
	Character       Character       `json:"character"`
}

// Characteristics holds the identity attributes of a character
type Characteristics struct {
	Version            int                `json:"version"`
	FirstName          *string            `json:"firstName,omitempty"`
	LastName           *string            `json:"lastName,omitempty"`
	Title              *string            `json:"title,omitempty"`
	FullTitle          *string            `json:"fullTitle,omitempty"`
	Race               *string            `json:"race,omitempty"`
	Class              *string            `json:"class,omitempty"`
	ClassColor         *string            `json:"classColor,omitempty"`
	Age                *string            `json:"age,omitempty"`
	EyeColor           *string            `json:"eyeColor,omitempty"`
	EyeColorHex        *string            `json:"eyeColorHex,omitempty"`
	Height             *string            `json:"height,omitempty"`
	Weight             *string            `json:"weight,omitempty"`
	Birthplace         *string            `json:"birthplace,omitempty"`
	Residence          *string            `json:"residence,omitempty"`
	ResidenceCoords    *ResidenceCoords   `json:"residenceCoords,omitempty"`
	RelationshipStatus *int               `json:"relationshipStatus,omitempty"`
	Icon               *string            `json:"icon,omitempty"`
	Background         *int               `json:"background,omitempty"`
	MiscInfo           []MiscInfo         `json:"miscInfo"`
	PersonalityTraits  []PersonalityTrait `json:"personalityTraits"`
}

// ResidenceCoords is the positional (mapId, x, y, zoneName) tuple of a residence marker
type ResidenceCoords struct {
	MapID    int     `json:"mapId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	ZoneName string  `json:"zoneName"`
}

// MiscInfo is a free-form key/value entry shown on the character sheet
type MiscInfo struct {
	PresetType *int   `json:"presetType,omitempty"`
	Name       string `json:"name"`
	Value      string `json:"value"`
	Icon       string `json:"icon"`
}

// PersonalityTrait is a slider between two opposing traits
type PersonalityTrait struct {
	PresetID   *int      `json:"presetId,omitempty"`
	LeftTrait  *string   `json:"leftTrait,omitempty"`
	RightTrait *string   `json:"rightTrait,omitempty"`
	LeftIcon   *string   `json:"leftIcon,omitempty"`
	RightIcon  *string   `json:"rightIcon,omitempty"`
	LeftColor  *RGBColor `json:"leftColor,omitempty"`
	RightColor *RGBColor `json:"rightColor,omitempty"`
	Value      int       `json:"value"`
}

// RGBColor uses the addon's 0..1 float channels
type RGBColor struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// About holds the biography in one of three template layouts
type About struct {
	Version    int             `json:"version"`
	Template   int             `json:"template"`
	Background *int            `json:"background,omitempty"`
	Music      *int            `json:"music,omitempty"`
	Template1  *Template1      `json:"template1,omitempty"`
	Template2  []Template2Item `json:"template2,omitempty"`
	Template3  *Template3      `json:"template3,omitempty"`
}

// Template1 is a single free-text block
type Template1 struct {
	Text string `json:"text"`
}

// Template2Item is one block of the multi-block layout
type Template2Item struct {
	Text       string `json:"text"`
	Icon       string `json:"icon"`
	Background *int   `json:"background,omitempty"`
}

// Template3 splits the biography into physical, personality and history sections
type Template3 struct {
	Physical    *TemplateSection `json:"physical,omitempty"`
	Personality *TemplateSection `json:"personality,omitempty"`
	History     *TemplateSection `json:"history,omitempty"`
}

// TemplateSection is one named Template3 section
type TemplateSection struct {
	Text       string  `json:"text"`
	Icon       *string `json:"icon,omitempty"`
	Background *int    `json:"background,omitempty"`
}

// Character is the roleplay status block
type Character struct {
	Version      int     `json:"version"`
	RPStatus     int     `json:"rpStatus"`
	WalkUp       int     `json:"walkUp"`
	Currently    *string `json:"currently,omitempty"`
	CurrentlyOOC *string `json:"currentlyOOC,omitempty"`
}
