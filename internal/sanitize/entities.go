package sanitize

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

const maxEntityBytes = 16

// entityDecoders are tried in order; the first that recognises the name wins.
var entityDecoders = []func(name string) (rune, bool){
	decodeNamedEntity,
	decodeNumericEntity,
}

// DecodeEntity returns the character for an entity body (the text between
// '&' and ';'). Unknown entities decode to a space.
func DecodeEntity(name string) rune {
	for _, decode := range entityDecoders {
		if r, ok := decode(name); ok {
			return r
		}
	}
	return ' '
}

var namedEntities = map[string]rune{
	"amp": '&', "lt": '<', "gt": '>', "quot": '"',
	"apos": '\'', "lsquo": '\'', "rsquo": '\'',
	"ldquo": '"', "rdquo": '"', "laquo": '"', "raquo": '"',
	"nbsp": ' ', "ndash": '-', "mdash": '-', "hellip": '.',
	"aacute": 'á', "eacute": 'é', "iacute": 'í', "oacute": 'ó', "uacute": 'ú',
	"ntilde": 'ñ', "uuml": 'ü',
	"agrave": 'à', "egrave": 'è', "igrave": 'ì', "ograve": 'ò', "ugrave": 'ù',
	"ccedil": 'ç', "iexcl": '¡', "iquest": '¿',
}

func decodeNamedEntity(name string) (rune, bool) {
	switch name {
	case "#160":
		return ' ', true
	case "#39":
		return '\'', true
	}
	r, ok := namedEntities[strings.ToLower(name)]
	return r, ok
}

func decodeNumericEntity(name string) (rune, bool) {
	if len(name) < 2 || name[0] != '#' {
		return 0, false
	}
	digits, base := name[1:], 10
	if digits[0] == 'x' || digits[0] == 'X' {
		digits, base = digits[1:], 16
	}
	if digits == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(digits, base, 32)
	if err != nil || v == 0 || !utf8.ValidRune(rune(v)) {
		return 0, false
	}
	return rune(v), true
}

func isEntityByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '#'
}

// fallbackByte maps a byte that is not valid UTF-8 to the character it most
// likely meant in Windows-1252 or Latin-1 text.
func fallbackByte(b byte) rune {
	switch b {
	case 0x91, 0x92:
		return '\''
	case 0x93, 0x94:
		return '"'
	case 0x96, 0x97:
		return '-'
	case 0x85:
		return '.'
	case 0xA0:
		return ' '
	case 0xA1, 0xBF, 0xC0, 0xC1, 0xC8, 0xC9, 0xCC, 0xCD, 0xD1, 0xD2, 0xD3, 0xD9, 0xDA, 0xDC,
		0xE0, 0xE1, 0xE7, 0xE8, 0xE9, 0xEC, 0xED, 0xF1, 0xF2, 0xF3, 0xF9, 0xFA, 0xFC:
		return rune(b)
	}
	if b < utf8.RuneSelf {
		return rune(b)
	}
	return '?'
}
