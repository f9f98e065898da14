package wallet

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  bool
	}{
		{"50", "50", false},
		{" 75.5 ", "75.5", false},
		{"0.01", "0.01", false},
		{"abc", "", true},
		{"", "", true},
		{"0", "", true},
		{"-3", "", true},
		{"1.005", "", true},
		{"1e13", "", true},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.err {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("ParseAmount(%q) err = %v, want invalid amount", tc.in, err)
			}
			continue
		}
		if err != nil || !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("ParseAmount(%q) = %s, %v", tc.in, got, err)
		}
	}
}

func TestMinorUnits(t *testing.T) {
	d := decimal.RequireFromString("123.45")
	if ToMinor(d) != 12345 {
		t.Fatalf("ToMinor = %d", ToMinor(d))
	}
	if !FromMinor(-505).Equal(decimal.RequireFromString("-5.05")) {
		t.Fatalf("FromMinor = %s", FromMinor(-505))
	}
}

func TestErrorIsMatchesRewordedCopy(t *testing.T) {
	err := ErrBelowMinimum.withMsg("minimum withdrawal is %s", "50.00")
	if !errors.Is(err, ErrBelowMinimum) {
		t.Fatal("reworded error must match its sentinel")
	}
	if errors.Is(err, ErrInvalidAmount) {
		t.Fatal("different codes must not match")
	}
	if err.Code() != "below_minimum" || err.Kind != KindValidation {
		t.Fatalf("unexpected error %+v", err)
	}
}
