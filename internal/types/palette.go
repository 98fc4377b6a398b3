package types

import "sort"

// Palette maps preset names to colors offered by the chat front end.
var Palette = map[string]Color{
	// lipstick
	"red":      {R: 255, G: 0, B: 0},
	"burgundy": {R: 138, G: 14, B: 34},
	"pink":     {R: 227, G: 14, B: 110},
	"dark-red": {R: 117, G: 39, B: 31},
	"hot-pink": {R: 255, G: 20, B: 147},
	"tomato":   {R: 255, G: 99, B: 71},
	"indigo":   {R: 75, G: 0, B: 130},

	// blush
	"blush-purple": {R: 162, G: 59, B: 108},
	"blush-pink":   {R: 250, G: 218, B: 221},
	"blush-red":    {R: 205, G: 92, B: 92},
	"blush-brown":  {R: 150, G: 75, B: 0},

	"black": {R: 0, G: 0, B: 0},
}

// PaletteNames returns the preset names in sorted order.
func PaletteNames() []string {
	names := make([]string, 0, len(Palette))
	for name := range Palette {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
