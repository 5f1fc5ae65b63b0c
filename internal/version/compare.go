package version

import (
	"fmt"

	goversion "github.com/hashicorp/go-version"
)

// Parse parses a release string such as "1.0.0" or "v1.2.0-rc1".
func Parse(v string) (*goversion.Version, error) {
	parsed, err := goversion.NewVersion(v)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", v, err)
	}
	return parsed, nil
}

// Compare returns -1, 0 or 1 when a is older than, equal to or newer than b.
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}
