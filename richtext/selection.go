package richtext

// Position is a DOM-style boundary point. When the node at Path is a text node,
// Offset counts runes into its text; otherwise it is a child index.
type Position struct {
	Path   NodePath `json:"path"`
	Offset int      `json:"offset"`
}

// Clone returns a copy of p that shares no memory with it.
func (p Position) Clone() Position {
	return Position{Path: p.Path.Clone(), Offset: p.Offset}
}

// key places p in document order; see compareKeys.
func (p Position) key() []int {
	k := make([]int, 0, len(p.Path)+1)
	k = append(k, p.Path...)
	return append(k, p.Offset)
}

// before reports whether p sorts strictly before q in document order.
func (p Position) before(q Position) bool {
	return compareKeys(p.key(), q.key()) < 0
}

// Selection is a range between two positions. Start is the anchor.
type Selection struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Caret returns a collapsed selection at p.
func Caret(p Position) Selection {
	return Selection{Start: p, End: p.Clone()}
}

// Collapsed reports whether the selection is a caret.
func (s Selection) Collapsed() bool {
	return compareKeys(s.Start.key(), s.End.key()) == 0
}

// Anchor returns the position the selection was started from.
func (s Selection) Anchor() Position { return s.Start }

// Clone returns a deep copy of s.
func (s Selection) Clone() Selection {
	return Selection{Start: s.Start.Clone(), End: s.End.Clone()}
}

// ordered returns s with Start before or equal to End.
func (s Selection) ordered() Selection {
	if s.End.before(s.Start) {
		return Selection{Start: s.End, End: s.Start}
	}
	return s
}
