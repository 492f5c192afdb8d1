package hash

import "testing"

func TestSHA256Hex(t *testing.T) {
	// Known vector for the empty input.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := SHA256Hex(nil); got != want {
		t.Errorf("SHA256Hex(nil) = %s, want %s", got, want)
	}
}

func TestETag(t *testing.T) {
	a := ETag([]byte("feed one"))
	b := ETag([]byte("feed two"))

	if a == b {
		t.Error("distinct content produced identical ETags")
	}
	if a != ETag([]byte("feed one")) {
		t.Error("ETag is not deterministic")
	}
	if len(a) != 18 || a[0] != '"' || a[len(a)-1] != '"' {
		t.Errorf("ETag %q is not a quoted 16-char tag", a)
	}
}
