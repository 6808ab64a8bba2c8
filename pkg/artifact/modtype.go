package artifact

import "fmt"

// ModType is how a version differs from the one it supersedes.
type ModType int

const (
	New ModType = iota + 1
	Modified
	Deleted
	Introduced
	Undeleted
)

func (m ModType) String() string {
	switch m {
	case New:
		return "new"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Introduced:
		return "introduced"
	case Undeleted:
		return "undeleted"
	default:
		return fmt.Sprintf("modtype(%d)", int(m))
	}
}

// ParseModType is the inverse of ModType.String.
func ParseModType(s string) (ModType, error) {
	for m := New; m <= Undeleted; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mod type %q", s)
}
