package ordering

import (
	"math/rand"
	"strconv"
)

// NewPin draws a uniform 4-digit pickup PIN in [1000, 9999]. PINs are not
// unique across orders; they only back in-person pickup verification.
func NewPin() string {
	return strconv.Itoa(1000 + rand.Intn(9000))
}
