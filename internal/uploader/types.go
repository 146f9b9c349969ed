package uploader

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

func detectType(f File) (*mimetype.MIME, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %q: %w", f.Key(), err)
	}
	defer rc.Close()

	mt, err := mimetype.DetectReader(rc)
	if err != nil {
		return nil, fmt.Errorf("detect type of upload %q: %w", f.Key(), err)
	}
	return mt, nil
}

// accepts reports whether mt, or one of the types it is a subtype of,
// matches an entry of types.
func accepts(types []string, mt *mimetype.MIME) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		for m := mt; m != nil; m = m.Parent() {
			if prefix, ok := strings.CutSuffix(t, "/*"); ok {
				if strings.HasPrefix(m.String(), prefix+"/") {
					return true
				}
				continue
			}
			if m.Is(t) {
				return true
			}
		}
	}
	return false
}
