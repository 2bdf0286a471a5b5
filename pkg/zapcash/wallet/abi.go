// abi.go hand-encodes the small slice of the ERC-20 ABI
// the assistant needs: balanceOf and transfer.
package wallet

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Function selectors (first 4 bytes of keccak256 of the signature).
var (
	// balanceOf(address)
	SelectorBalanceOf = mustDecodeHex("70a08231")
	// transfer(address,uint256)
	SelectorTransfer = mustDecodeHex("a9059cbb")
)

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// encodeAddress left-pads a 20-byte address into a 32-byte ABI word.
func encodeAddress(addr string) ([]byte, error) {
	addr = strings.TrimPrefix(addr, "0x")
	b, err := hex.DecodeString(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if len(b) != 20 {
		return nil, fmt.Errorf("address must be 20 bytes, got %d", len(b))
	}
	word := make([]byte, 32)
	copy(word[12:], b)
	return word, nil
}

// encodeUint256 left-pads a big.Int into a 32-byte ABI word.
func encodeUint256(v *big.Int) ([]byte, error) {
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative value")
	}
	b := v.Bytes()
	if len(b) > 32 {
		return nil, fmt.Errorf("value exceeds uint256")
	}
	word := make([]byte, 32)
	copy(word[32-len(b):], b)
	return word, nil
}

// decodeUint256 interprets raw return data as an unsigned integer.
func decodeUint256(data []byte) *big.Int {
	return new(big.Int).SetBytes(data)
}

// EncodeBalanceOf builds balanceOf(owner) calldata.
func EncodeBalanceOf(owner string) ([]byte, error) {
	arg, err := encodeAddress(owner)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, SelectorBalanceOf...), arg...), nil
}

// EncodeTransfer builds transfer(to, amount) calldata.
func EncodeTransfer(to string, amount *big.Int) ([]byte, error) {
	toArg, err := encodeAddress(to)
	if err != nil {
		return nil, err
	}
	amountArg, err := encodeUint256(amount)
	if err != nil {
		return nil, err
	}
	data := append([]byte{}, SelectorTransfer...)
	data = append(data, toArg...)
	data = append(data, amountArg...)
	return data, nil
}

// HexEncode renders bytes as a 0x-prefixed hex string.
func HexEncode(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// ParseAmount converts a decimal string ("12.50") into base token units
// under the given number of decimals. Extra fractional digits are
// truncated, not rounded.
func ParseAmount(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}

	parts := strings.SplitN(s, ".", 2)
	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	for len(frac) < decimals {
		frac += "0"
	}

	v, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// FormatAmount renders base units as a decimal string with two fraction
// digits ("12.50").
func FormatAmount(units *big.Int, decimals int) string {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole := new(big.Int).Div(units, scale)
	frac := new(big.Int).Mod(units, scale)

	fracStr := fmt.Sprintf("%0*d", decimals, frac)
	if decimals >= 2 {
		fracStr = fracStr[:2]
	}
	return fmt.Sprintf("%s.%s", whole.String(), fracStr)
}
