package model

import "fmt"

// Money is a monetary amount in cents.  All prices, bills and refunds in
// the system use this type; floating point is never used for arithmetic.
type Money int64

// String renders the amount as a decimal string, e.g. 1250 -> "12.50".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
