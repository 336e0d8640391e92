package models

import "testing"

func TestValidUsername(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"almaz", true},
		{"Almaz99", true},
		{"9almaz", false},
		{"_almaz", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidUsername(tc.in); got != tc.want {
			t.Errorf("ValidUsername(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestValidEmail(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"a@b.co", true},
		{"almaz@example.com", true},
		{"no-at-sign", false},
		{"a@b", false},
		{"a b@c.com", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidEmail(tc.in); got != tc.want {
			t.Errorf("ValidEmail(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestValidPassword(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want bool
	}{
		{"all classes present", "Passw0rd!", true},
		{"too short", "Ab1!", false},
		{"no digit", "Password!", false},
		{"no letter", "12345678!", false},
		{"no special char", "Password1", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidPassword(tc.in); got != tc.want {
				t.Errorf("ValidPassword(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
