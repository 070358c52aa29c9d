package util

import (
	"fmt"

	sgo "github.com/gagliardetto/solana-go"
)

// FormatSOL renders lamports as a SOL amount for display.
func FormatSOL(lamports uint64) string {
	whole := lamports / sgo.LAMPORTS_PER_SOL
	frac := lamports % sgo.LAMPORTS_PER_SOL
	if frac == 0 {
		return fmt.Sprintf("%d SOL", whole)
	}
	return fmt.Sprintf("%d.%09d SOL", whole, frac)
}
