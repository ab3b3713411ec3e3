package place_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neexbeast/city-explorer/internal/place"
)

func TestNormalizeQuery(t *testing.T) {
	cases := map[string]string{
		"seattle":            "seattle",
		"  Seattle ":         "seattle",
		"New   York\tCity":   "new york city",
		"SAN FRANCISCO, CA ": "san francisco, ca",
		"":                   "",
		"   ":                "",
	}
	for in, want := range cases {
		assert.Equal(t, want, place.NormalizeQuery(in), "input %q", in)
	}
}
