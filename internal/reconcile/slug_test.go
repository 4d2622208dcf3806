// ABOUTME: Tests for slug derivation
// ABOUTME: Covers determinism, idempotence, and edge inputs

package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Intro", "intro"},
		{"with number", "Intro 101", "intro-101"},
		{"multiple spaces", "My   Great  Course", "my-great-course"},
		{"punctuation", "C++ & Go: A Comparison!", "c-go-a-comparison"},
		{"leading and trailing junk", "  --Course--  ", "course"},
		{"already a slug", "intro-101", "intro-101"},
		{"unicode stripped", "Café Culture", "caf-culture"},
		{"empty", "", ""},
		{"only junk", "!!!", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Slugify(tc.in))
		})
	}
}

func TestSlugify_Idempotent(t *testing.T) {
	for _, in := range []string{"Intro 101", "C++ & Go", "already-a-slug"} {
		once := Slugify(in)
		assert.Equal(t, once, Slugify(once))
	}
}
