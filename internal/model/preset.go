package model

// Preset names an in-memory action filter.
type Preset string

const (
	PresetAll      Preset = "all"
	PresetOpen     Preset = "open"
	PresetResolved Preset = "resolved"
	PresetDeleted  Preset = "deleted"
	PresetQueued   Preset = "queued"
)

// Match reports whether a passes the preset. Unknown presets match nothing.
func (p Preset) Match(a *Action) bool {
	switch p {
	case PresetAll:
		return true
	case PresetOpen:
		return a.IsOpen()
	case PresetResolved:
		return a.Resolution == ResolutionResolved
	case PresetDeleted:
		return a.Resolution == ResolutionDeleted
	case PresetQueued:
		return a.Queued && a.IsOpen()
	}
	return false
}
