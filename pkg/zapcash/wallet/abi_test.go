package wallet

import (
	"encoding/hex"
	"math/big"
	"testing"
)

func TestEncodeBalanceOf(t *testing.T) {
	data, err := EncodeBalanceOf("0x1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("EncodeBalanceOf failed: %v", err)
	}
	want := "70a082310000000000000000000000001111111111111111111111111111111111111111"
	if hex.EncodeToString(data) != want {
		t.Errorf("calldata mismatch:\n got %s\nwant %s", hex.EncodeToString(data), want)
	}
}

func TestEncodeTransfer(t *testing.T) {
	t.Run("encodes selector, address, and amount", func(t *testing.T) {
		data, err := EncodeTransfer("0x2222222222222222222222222222222222222222", big.NewInt(500000000))
		if err != nil {
			t.Fatalf("EncodeTransfer failed: %v", err)
		}
		if len(data) != 4+32+32 {
			t.Fatalf("expected 68 bytes, got %d", len(data))
		}
		if hex.EncodeToString(data[:4]) != "a9059cbb" {
			t.Errorf("wrong selector: %s", hex.EncodeToString(data[:4]))
		}
		if decodeUint256(data[36:]).Int64() != 500000000 {
			t.Errorf("wrong amount word: %s", decodeUint256(data[36:]))
		}
	})

	t.Run("rejects malformed address", func(t *testing.T) {
		if _, err := EncodeTransfer("0x1234", big.NewInt(1)); err == nil {
			t.Error("expected error for short address")
		}
	})

	t.Run("rejects negative amount", func(t *testing.T) {
		if _, err := EncodeTransfer("0x2222222222222222222222222222222222222222", big.NewInt(-1)); err == nil {
			t.Error("expected error for negative amount")
		}
	})
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"500", "500000000"},
		{"12.50", "12500000"},
		{"0.000001", "1"},
		{".5", "500000"},
		{"1.1234567", "1123456"}, // truncates extra precision
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in, 6)
			if err != nil {
				t.Fatalf("ParseAmount(%q) failed: %v", tc.in, err)
			}
			if got.String() != tc.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}

	t.Run("rejects garbage", func(t *testing.T) {
		for _, in := range []string{"", "abc", "1.2.3"} {
			if _, err := ParseAmount(in, 6); err == nil {
				t.Errorf("expected error for %q", in)
			}
		}
	})
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		units string
		want  string
	}{
		{"500000000", "500.00"},
		{"12500000", "12.50"},
		{"1", "0.00"},
		{"1010000", "1.01"},
	}
	for _, tc := range cases {
		t.Run(tc.units, func(t *testing.T) {
			v, _ := new(big.Int).SetString(tc.units, 10)
			if got := FormatAmount(v, 6); got != tc.want {
				t.Errorf("FormatAmount(%s) = %s, want %s", tc.units, got, tc.want)
			}
		})
	}
}

func TestAmountRoundTrip(t *testing.T) {
	units, err := ParseAmount("42.42", 6)
	if err != nil {
		t.Fatalf("ParseAmount failed: %v", err)
	}
	if got := FormatAmount(units, 6); got != "42.42" {
		t.Errorf("round trip = %s, want 42.42", got)
	}
}
