package profile

// Field tables for the addon's compact keys. Each entry is used for both
// MapX and UnmapX

var characteristicsFields = []field[Characteristics]{
	version(func(c *Characteristics) *int { return &c.Version }),
	str("FN", func(c *Characteristics) **string { return &c.FirstName }),
	str("LN", func(c *Characteristics) **string { return &c.LastName }),
	str("TI", func(c *Characteristics) **string { return &c.Title }),
	str("FT", func(c *Characteristics) **string { return &c.FullTitle }),
	str("RA", func(c *Characteristics) **string { return &c.Race }),
	str("CL", func(c *Characteristics) **string { return &c.Class }),
	str("CH", func(c *Characteristics) **string { return &c.ClassColor }),
	str("AG", func(c *Characteristics) **string { return &c.Age }),
	str("EC", func(c *Characteristics) **string { return &c.EyeColor }),
	str("EH", func(c *Characteristics) **string { return &c.EyeColorHex }),
	str("HE", func(c *Characteristics) **string { return &c.Height }),
	str("WE", func(c *Characteristics) **string { return &c.Weight }),
	str("BP", func(c *Characteristics) **string { return &c.Birthplace }),
	str("RE", func(c *Characteristics) **string { return &c.Residence }),
	coords[Characteristics]{"RC", func(c *Characteristics) **ResidenceCoords { return &c.ResidenceCoords }},
	num("RS", func(c *Characteristics) **int { return &c.RelationshipStatus }),
	str("IC", func(c *Characteristics) **string { return &c.Icon }),
	num("bkg", func(c *Characteristics) **int { return &c.Background }),
	list[Characteristics, MiscInfo]{"MI", func(c *Characteristics) *[]MiscInfo { return &c.MiscInfo }, miscInfoFields},
	list[Characteristics, PersonalityTrait]{"PS", func(c *Characteristics) *[]PersonalityTrait { return &c.PersonalityTraits }, traitFields},
}

var miscInfoFields = []field[MiscInfo]{
	num("ID", func(m *MiscInfo) **int { return &m.PresetType }),
	text("NA", func(m *MiscInfo) *string { return &m.Name }),
	text("VA", func(m *MiscInfo) *string { return &m.Value }),
	text("IC", func(m *MiscInfo) *string { return &m.Icon }),
}

// DefaultTraitValue is the slider midpoint
const DefaultTraitValue = 10

var traitFields = []field[PersonalityTrait]{
	num("ID", func(t *PersonalityTrait) **int { return &t.PresetID }),
	str("LT", func(t *PersonalityTrait) **string { return &t.LeftTrait }),
	str("RT", func(t *PersonalityTrait) **string { return &t.RightTrait }),
	str("LI", func(t *PersonalityTrait) **string { return &t.LeftIcon }),
	str("RI", func(t *PersonalityTrait) **string { return &t.RightIcon }),
	object[PersonalityTrait, RGBColor]{"LC", func(t *PersonalityTrait) **RGBColor { return &t.LeftColor }, colorFields},
	object[PersonalityTrait, RGBColor]{"RC", func(t *PersonalityTrait) **RGBColor { return &t.RightColor }, colorFields},
	withDefault("V2", DefaultTraitValue, func(t *PersonalityTrait) *int { return &t.Value }),
}

var colorFields = []field[RGBColor]{
	reqFloat[RGBColor]{"r", func(c *RGBColor) *float64 { return &c.R }},
	reqFloat[RGBColor]{"g", func(c *RGBColor) *float64 { return &c.G }},
	reqFloat[RGBColor]{"b", func(c *RGBColor) *float64 { return &c.B }},
}

var aboutFields = []field[About]{
	version(func(a *About) *int { return &a.Version }),
	withDefault("TE", 1, func(a *About) *int { return &a.Template }),
	num("BK", func(a *About) **int { return &a.Background }),
	num("MU", func(a *About) **int { return &a.Music }),
	object[About, Template1]{"T1", func(a *About) **Template1 { return &a.Template1 }, template1Fields},
	optList[About, Template2Item]{"T2", func(a *About) *[]Template2Item { return &a.Template2 }, template2Fields},
	object[About, Template3]{"T3", func(a *About) **Template3 { return &a.Template3 }, template3Fields},
}

var template1Fields = []field[Template1]{
	text("TX", func(t *Template1) *string { return &t.Text }),
}

var template2Fields = []field[Template2Item]{
	text("TX", func(t *Template2Item) *string { return &t.Text }),
	text("IC", func(t *Template2Item) *string { return &t.Icon }),
	num("BK", func(t *Template2Item) **int { return &t.Background }),
}

var template3Fields = []field[Template3]{
	section("PH", func(t *Template3) **TemplateSection { return &t.Physical }),
	section("PS", func(t *Template3) **TemplateSection { return &t.Personality }),
	section("HI", func(t *Template3) **TemplateSection { return &t.History }),
}

var sectionFields = []field[TemplateSection]{
	text("TX", func(s *TemplateSection) *string { return &s.Text }),
	str("IC", func(s *TemplateSection) **string { return &s.Icon }),
	num("BK", func(s *TemplateSection) **int { return &s.Background }),
}

var characterFields = []field[Character]{
	version(func(c *Character) *int { return &c.Version }),
	withDefault("RP", 1, func(c *Character) *int { return &c.RPStatus }),
	withDefault("WU", 1, func(c *Character) *int { return &c.WalkUp }),
	str("CU", func(c *Character) **string { return &c.Currently }),
	str("CO", func(c *Character) **string { return &c.CurrentlyOOC }),
}

func str[S any](key string, at func(*S) **string) field[S] { return optString[S]{key, at} }

func text[S any](key string, at func(*S) *string) field[S] { return reqString[S]{key, at} }

func num[S any](key string, at func(*S) **int) field[S] { return optInt[S]{key, at} }

func withDefault[S any](key string, def int, at func(*S) *int) field[S] {
	return defInt[S]{key, def, at}
}

func version[S any](at func(*S) *int) field[S] { return defInt[S]{"v", 1, at} }

func section(key string, at func(*Template3) **TemplateSection) field[Template3] {
	return object[Template3, TemplateSection]{key, at, sectionFields}
}

// MapProfile builds a normalized Profile from one TRP3_Profiles entry. The id
// is the entry's key in the profile table; the mapper never invents one
func MapProfile(raw Raw, id string) Profile {
	player, _ := asMap(raw["player"])
	characteristics, _ := asMap(player["characteristics"])
	about, _ := asMap(player["about"])
	character, _ := asMap(player["character"])

	name, _ := asString(raw["profileName"])
	if name == "" {
		name = DefaultProfileName
	}

	return Profile{
		ID:              id,
		ProfileName:     name,
		Characteristics: MapCharacteristics(characteristics),
		About:           MapAbout(about),
		Character:       MapCharacter(character),
	}
}

// MapCharacteristics maps the player.characteristics block
func MapCharacteristics(raw Raw) Characteristics {
	return decodeFields(raw, characteristicsFields)
}

// MapAbout maps the player.about block
func MapAbout(raw Raw) About {
	return decodeFields(raw, aboutFields)
}

// MapCharacter maps the player.character block
func MapCharacter(raw Raw) Character {
	return decodeFields(raw, characterFields)
}

// UnmapProfile is the inverse of MapProfile. The id is not part of the
// record; callers key the result by p.ID themselves
func UnmapProfile(p Profile) Raw {
	return Raw{
		"profileName": p.ProfileName,
		"player": Raw{
			"characteristics": UnmapCharacteristics(p.Characteristics),
			"about":           UnmapAbout(p.About),
			"character":       UnmapCharacter(p.Character),
		},
	}
}

// UnmapCharacteristics converts characteristics back to their record keys
func UnmapCharacteristics(c Characteristics) Raw {
	return encodeFields(&c, characteristicsFields)
}

// UnmapAbout converts the about section back to its record keys
func UnmapAbout(a About) Raw {
	return encodeFields(&a, aboutFields)
}

// UnmapCharacter converts the character status back to its record keys
func UnmapCharacter(c Character) Raw {
	return encodeFields(&c, characterFields)
}
