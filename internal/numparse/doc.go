// Package numparse converts display-formatted tokens from exported price files
// into unambiguous numbers and calendar dates.
//
// Tokens may be quoted, use either '.' or ',' as the decimal separator, carry
// thousands separators, percent signs or K/M/B volume suffixes.
package numparse
