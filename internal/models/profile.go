package models

import "strings"

const (
	MinAge     = 3
	MaxAge     = 14
	DefaultAge = 6

	DefaultHero  = "hero"
	DefaultTheme = "kindness"
)

// ArtStyle - стиль иллюстрации обложки.
type ArtStyle string

const (
	ArtWatercolor ArtStyle = "watercolor"
	ArtCartoon    ArtStyle = "cartoon"
	ArtPencil     ArtStyle = "pencil"
	ArtFlat       ArtStyle = "flat"
)

var ArtStyles = []ArtStyle{ArtWatercolor, ArtCartoon, ArtPencil, ArtFlat}

// Palette - цветовая палитра обложки.
type Palette string

const (
	PalettePastel Palette = "pastel"
	PaletteBright Palette = "bright"
	PaletteWarm   Palette = "warm"
	PaletteCool   Palette = "cool"
)

var Palettes = []Palette{PalettePastel, PaletteBright, PaletteWarm, PaletteCool}

func ParseArtStyle(s string) ArtStyle {
	v := ArtStyle(strings.ToLower(strings.TrimSpace(s)))
	for _, a := range ArtStyles {
		if a == v {
			return v
		}
	}
	return ArtWatercolor
}

func ParsePalette(s string) Palette {
	v := Palette(strings.ToLower(strings.TrimSpace(s)))
	for _, p := range Palettes {
		if p == v {
			return v
		}
	}
	return PalettePastel
}

// UserProfile - сохраненные предпочтения пользователя.
type UserProfile struct {
	Age       int      `json:"age"`
	Hero      string   `json:"hero"`
	Length    Length   `json:"length"`
	Style     Style    `json:"style"`
	ArtStyle  ArtStyle `json:"art_style"`
	Palette   Palette  `json:"palette"`
	AvoidList []string `json:"avoid_list"`
}

// DefaultProfile возвращает профиль, который создается лениво при первом обращении.
func DefaultProfile() UserProfile {
	return UserProfile{
		Age:       DefaultAge,
		Hero:      DefaultHero,
		Length:    LengthMedium,
		Style:     StyleClassic,
		ArtStyle:  ArtWatercolor,
		Palette:   PalettePastel,
		AvoidList: []string{},
	}
}

// ClampAge приводит возраст к диапазону [MinAge, MaxAge].
func ClampAge(age int) int {
	if age < MinAge {
		return MinAge
	}
	if age > MaxAge {
		return MaxAge
	}
	return age
}
