package record

import (
	"encoding/base64"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Sanitize turns an arbitrary label into an identifier matching
// ^[A-Za-z_][A-Za-z0-9_]*$. The empty string maps to itself.
//
// Input is NFC-normalized first. Rules, applied per rune:
//   - the first rune is dropped when it is not an ASCII letter or '_',
//     the input has more than one rune, and the second rune is not a digit;
//     otherwise an invalid first rune becomes '_'
//   - later non-ASCII cased letters become '_'
//   - other later non-ASCII runes are replaced by the base64 encoding of
//     their UTF-8 bytes, with '+', '/' and '=' mapped to '_', so that
//     labels written in uncased scripts stay distinguishable
//   - later ASCII runes other than letters and digits become '_'
//
// The result is stable under a second application.
func Sanitize(name string) string {
	if name == "" {
		return ""
	}
	runes := []rune(norm.NFC.String(name))

	first := runes[0]
	validFirst := isASCIILetter(first) || first == '_'
	skipFirst := !validFirst && len(runes) > 1 && !unicode.IsDigit(runes[1])

	var sb strings.Builder
	sb.Grow(len(name))
	if !skipFirst {
		if validFirst {
			sb.WriteRune(first)
		} else {
			sb.WriteByte('_')
		}
	}

	for _, r := range runes[1:] {
		switch {
		case r > unicode.MaxASCII:
			if unicode.IsLower(r) || unicode.IsUpper(r) {
				sb.WriteByte('_')
				continue
			}
			enc := base64.StdEncoding.EncodeToString([]byte(string(r)))
			if sb.Len() == 0 && isASCIIDigit(rune(enc[0])) {
				sb.WriteByte('_')
			}
			for _, c := range enc {
				if isASCIILetter(c) || isASCIIDigit(c) {
					sb.WriteRune(c)
				} else {
					sb.WriteByte('_')
				}
			}
		case isASCIILetter(r) || isASCIIDigit(r):
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}

	return sb.String()
}

func isASCIILetter(r rune) bool {
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
}

func isASCIIDigit(r rune) bool {
	return '0' <= r && r <= '9'
}
