package midi

import (
	"sort"

	"go-metronome/sequencer"
)

// Kit maps metronome voices to drum notes on an external module
type Kit struct {
	Name  string
	Notes map[sequencer.Voice]uint8
}

// Note returns the note for v, if the kit has one
func (k Kit) Note(v sequencer.Voice) (uint8, bool) {
	n, ok := k.Notes[v]
	return n, ok
}

// hiHats maps hi-hat1..6 onto closed, pedal and open hi-hat
func hiHats(closed, pedal, open uint8) map[sequencer.Voice]uint8 {
	return map[sequencer.Voice]uint8{
		"hi-hat1": closed,
		"hi-hat2": closed,
		"hi-hat3": pedal,
		"hi-hat4": pedal,
		"hi-hat5": open,
		"hi-hat6": open,
	}
}

func merge(maps ...map[sequencer.Voice]uint8) map[sequencer.Voice]uint8 {
	out := make(map[sequencer.Voice]uint8)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// Kits contains all available kit mappings
var Kits = map[string]Kit{
	"gm": {
		Name: "General MIDI",
		Notes: merge(hiHats(42, 44, 46), map[sequencer.Voice]uint8{
			"synth1":               76, // Hi Wood Block
			"synth2":               77, // Low Wood Block
			"perc_metronomequartz": 33, // Metronome Click
			"perc_stick":           37, // Side Stick
			"perc_clicktoy":        75, // Claves
			"perc_glass":           81, // Open Triangle
			"synth_block_e":        76, // Hi Wood Block
			"synth_square_d":       80, // Mute Triangle
			"synth_square_e":       80, // Mute Triangle
			"synth_tick_b":         31, // Sticks
			"synth_tick_c":         31,
			"synth_tick_e":         31,
			"synth_tick_h":         31,
		}),
	},
	"rd8": {
		Name: "Behringer RD-8",
		Notes: merge(hiHats(42, 42, 46), map[sequencer.Voice]uint8{
			"synth1":               75, // Clave (CL)
			"synth2":               56, // Cowbell (CB)
			"perc_metronomequartz": 37, // Rimshot (RS)
			"perc_stick":           39, // Clap (CP)
			"perc_clicktoy":        75,
			"perc_glass":           51, // Ride (RC)
			"synth_block_e":        75,
			"synth_square_d":       56,
			"synth_square_e":       56,
			"synth_tick_b":         37,
			"synth_tick_c":         37,
			"synth_tick_e":         37,
			"synth_tick_h":         37,
		}),
	},
	"tr8s": {
		Name: "Roland TR-8S",
		Notes: merge(hiHats(42, 42, 46), map[sequencer.Voice]uint8{
			"synth1":               75, // Clave
			"synth2":               56, // Cowbell
			"perc_metronomequartz": 37, // Rimshot
			"perc_stick":           39, // Clap
			"perc_clicktoy":        75,
			"perc_glass":           51, // Ride
			"synth_block_e":        75,
			"synth_square_d":       56,
			"synth_square_e":       56,
			"synth_tick_b":         37,
			"synth_tick_c":         37,
			"synth_tick_e":         37,
			"synth_tick_h":         37,
		}),
	},
}

// DefaultKit is the default kit name
const DefaultKit = "gm"

// KitNames returns the list of available kit names
func KitNames() []string {
	names := make([]string, 0, len(Kits))
	for name := range Kits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetKit returns a kit by name, defaulting to GM if not found
func GetKit(name string) Kit {
	if kit, ok := Kits[name]; ok {
		return kit
	}
	return Kits[DefaultKit]
}
