package innate

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/sentinel/edr/internal/domain"
)

// checkInvisible counts UTF-8 zero-width characters (U+200B..U+200F) and
// ASCII control bytes (excluding \n \r \t); a bidi override (U+202E or
// U+202B) is an immediate HIGH regardless of count.
func checkInvisible(data []byte) domain.Severity {
	invisible := 0
	for i := 0; i < len(data); i++ {
		r, size := utf8.DecodeRune(data[i:])
		if r == 0x202E || r == 0x202B {
			return domain.SeverityHigh
		}
		if r >= 0x200B && r <= 0x200F {
			invisible++
			i += size - 1
			continue
		}
		if size > 1 {
			i += size - 1
			continue
		}
		c := data[i]
		if c < 32 && c != '\n' && c != '\r' && c != '\t' {
			invisible++
		}
	}
	if invisible > 5 {
		return domain.SeverityHigh
	}
	if invisible > 2 {
		return domain.SeverityMedium
	}
	return domain.SeverityNone
}

// shannonEntropy computes the Shannon entropy of data in bits/byte.
func shannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var freq [256]int
	for _, b := range data {
		freq[b]++
	}
	entropy := 0.0
	n := float64(len(data))
	for _, f := range freq {
		if f == 0 {
			continue
		}
		p := float64(f) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// checkEntropy flags likely encrypted/compressed payloads: only meaningful
// above 100 bytes, threshold 7.5 bits/byte (normal text sits around 3.5-4.5).
func checkEntropy(data []byte) domain.Severity {
	if len(data) < 100 {
		return domain.SeverityNone
	}
	if shannonEntropy(data) > 7.5 {
		return domain.SeverityMedium
	}
	return domain.SeverityNone
}

// checkRepetition flags a 10-byte identical run repeated more than 10 times
// across the payload.
func checkRepetition(data []byte) domain.Severity {
	if len(data) < 100 {
		return domain.SeverityNone
	}
	repeats := 0
	for i := 0; i+20 <= len(data); i += 20 {
		for j := i + 20; j+10 <= len(data); j += 10 {
			if string(data[i:i+10]) == string(data[j:j+10]) {
				repeats++
				if repeats > 10 {
					return domain.SeverityMedium
				}
			}
		}
	}
	return domain.SeverityNone
}

// checkHexEncoding counts "\x" and "0x" occurrences.
func checkHexEncoding(data []byte) domain.Severity {
	s := string(data)
	count := strings.Count(s, "\\x") + strings.Count(s, "0x")
	if count > 10 {
		return domain.SeverityHigh
	}
	if count > 5 {
		return domain.SeverityMedium
	}
	return domain.SeverityNone
}

// checkUnicodeEncoding counts "\u" occurrences.
func checkUnicodeEncoding(data []byte) domain.Severity {
	if strings.Count(string(data), "\\u") > 5 {
		return domain.SeverityHigh
	}
	return domain.SeverityNone
}
