package domain

import (
	"testing"

	"github.com/google/uuid"
)

// FuzzParseUserID asserts parsing never panics and never yields a nil ID
// without an error.
func FuzzParseUserID(f *testing.F) {
	f.Add("")
	f.Add("not-a-uuid")
	f.Add(uuid.Nil.String())
	f.Add(uuid.New().String())

	f.Fuzz(func(t *testing.T, s string) {
		id, err := ParseUserID(s)
		if err == nil && id.IsNil() {
			t.Fatalf("ParseUserID(%q) returned nil ID without error", s)
		}
	})
}
