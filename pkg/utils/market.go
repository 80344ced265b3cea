// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"strings"
	"time"
)

// KoreaLocation is the timezone for the Korea Exchange.
var KoreaLocation *time.Location

func init() {
	var err error
	KoreaLocation, err = time.LoadLocation("Asia/Seoul")
	if err != nil {
		// Fallback to UTC+9
		KoreaLocation = time.FixedZone("KST", 9*60*60)
	}
}

// NormalizeCode normalizes an instrument code to the "A" + 6 digit form
// used throughout the KRX feeds ("005930" -> "A005930").
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return code
	}
	if strings.HasPrefix(code, "A") || strings.HasPrefix(code, "a") {
		code = code[1:]
	}
	if len(code) < 6 {
		code = strings.Repeat("0", 6-len(code)) + code
	}
	return "A" + code
}

// BareCode strips the "A" prefix, returning the 6 digit exchange code.
func BareCode(code string) string {
	if strings.HasPrefix(code, "A") || strings.HasPrefix(code, "a") {
		return code[1:]
	}
	return code
}

// DateKey formats a time as the YYYYMMDD key used for snapshots and
// transaction ids.
func DateKey(t time.Time) string {
	return t.Format("20060102")
}

// FormatWon formats a currency amount with thousands separators.
func FormatWon(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	s := fmt.Sprintf("%.0f", amount)
	n := len(s)
	if n > 3 {
		var b strings.Builder
		lead := n % 3
		if lead > 0 {
			b.WriteString(s[:lead])
		}
		for i := lead; i < n; i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(s[i : i+3])
		}
		s = b.String()
	}

	result := s + "원"
	if negative {
		result = "-" + result
	}
	return result
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatPnL formats a P&L amount with sign.
func FormatPnL(pnl float64) string {
	formatted := FormatWon(pnl)
	if pnl > 0 {
		return "+" + formatted
	}
	return formatted
}
