// Package codec encodes the self-describing sections of snapshot files.
//
// A snapshot records the name of the codec that wrote its metadata, and
// readers select the decoder by that name. Changing Default only affects
// snapshots written afterwards.
package codec

// Codec encodes and decodes values. Implementations must be safe for
// concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// Default is the codec used for new snapshots.
var Default Codec = GoJSON{}
