package domain

// MaxSidebarLines is the number of lines a sidebar panel can show.
const MaxSidebarLines = 15

// Sidebar is the side panel of one viewer: a title over ordered lines.
type Sidebar struct {
	Title string
	Lines []string
}

// Equal reports whether two panels render the same.
func (s Sidebar) Equal(o Sidebar) bool {
	if s.Title != o.Title || len(s.Lines) != len(o.Lines) {
		return false
	}
	for i := range s.Lines {
		if s.Lines[i] != o.Lines[i] {
			return false
		}
	}
	return true
}
