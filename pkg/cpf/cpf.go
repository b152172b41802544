// Package cpf validates Brazilian CPF numbers.
package cpf

import "github.com/MaxMateus/ms-auth/pkg/contact"

// Valid reports whether the value is a well-formed CPF: 11 digits, not all
// identical, with both check digits matching.
func Valid(value string) bool {
	digits := contact.DigitsOnly(value)
	if len(digits) != 11 {
		return false
	}

	allSame := true
	for i := 1; i < 11; i++ {
		if digits[i] != digits[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}

	for t := 9; t < 11; t++ {
		sum := 0
		for c := 0; c < t; c++ {
			sum += int(digits[c]-'0') * (t + 1 - c)
		}
		check := ((10 * sum) % 11) % 10
		if int(digits[t]-'0') != check {
			return false
		}
	}

	return true
}

// Normalize strips formatting from a CPF, returning its 11 digits.
func Normalize(value string) string {
	return contact.DigitsOnly(value)
}
