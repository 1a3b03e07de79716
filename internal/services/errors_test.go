package services

import (
	"errors"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(ErrTransient, "mint_handle", "put", "registry unavailable", base)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "translate", "request", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient default, got %v", err)
	}
}

func TestUserFacing(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		expect bool
	}{
		{"configuration", Wrap(ErrConfiguration, "mint_ark", "", "minter token missing", nil), true},
		{"validation", Wrap(ErrValidation, "parse_filename", "", "unrecognized name", nil), true},
		{"not found", Wrap(ErrNotFound, "registry_lookup", "", "no entry", nil), true},
		{"transient", Wrap(ErrTransient, "mint_handle", "", "", errors.New("dial tcp")), false},
		{"timeout", Wrap(ErrTimeout, "translate", "", "", nil), false},
	}
	for _, tc := range cases {
		if got := UserFacing(tc.err); got != tc.expect {
			t.Errorf("%s: UserFacing = %v, want %v", tc.name, got, tc.expect)
		}
	}
}
