package release

import "strings"

// Kind classifies a release from its name.
type Kind string

// Release kinds recognized from scene naming.
const (
	KindBase   Kind = "Base"
	KindUpdate Kind = "Update"
	KindDLC    Kind = "DLC"
)

// KindOf guesses the release kind from name tokens.
func KindOf(name string) Kind {
	tokens := strings.FieldsFunc(strings.ToUpper(name), func(r rune) bool {
		return r == '.' || r == '_' || r == ' ' || r == '-'
	})
	kind := KindBase
	for _, tok := range tokens {
		switch tok {
		case "DLC", "UNLOCKER":
			return KindDLC
		case "UPDATE", "UPD":
			kind = KindUpdate
		}
	}
	return kind
}

// Group returns the release group suffix ("...NSW-VENOM" -> "VENOM").
func Group(name string) string {
	idx := strings.LastIndex(name, "-")
	if idx < 0 || idx == len(name)-1 {
		return "Unknown"
	}
	return name[idx+1:]
}
