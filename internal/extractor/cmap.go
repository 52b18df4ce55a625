package extractor

import (
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
)

// cmap maps glyph codes of a Type0/CID font to Unicode text, built from
// the font's ToUnicode stream.
type cmap struct {
	codes   map[string]string // upper-case hex code -> text
	codeLen int               // bytes per code
}

var (
	bfCharBlock  = regexp.MustCompile(`(?s)beginbfchar\s*(.*?)\s*endbfchar`)
	bfRangeBlock = regexp.MustCompile(`(?s)beginbfrange\s*(.*?)\s*endbfrange`)
	hexToken     = regexp.MustCompile(`<([0-9A-Fa-f]+)>`)
)

// parseCMap reads bfchar and bfrange sections. Range entries may map to a
// start code or to an explicit array of targets.
func parseCMap(content string) *cmap {
	cm := &cmap{codes: map[string]string{}}
	for _, block := range bfCharBlock.FindAllStringSubmatch(content, -1) {
		toks := hexToken.FindAllStringSubmatch(block[1], -1)
		for i := 0; i+1 < len(toks); i += 2 {
			cm.set(toks[i][1], utf16Text(toks[i+1][1]))
		}
	}
	for _, block := range bfRangeBlock.FindAllStringSubmatch(content, -1) {
		for _, line := range strings.Split(block[1], "\n") {
			head, arr, isArray := strings.Cut(line, "[")
			toks := hexToken.FindAllStringSubmatch(head, -1)
			if len(toks) < 2 {
				continue
			}
			lo, err1 := strconv.ParseUint(toks[0][1], 16, 32)
			hi, err2 := strconv.ParseUint(toks[1][1], 16, 32)
			if err1 != nil || err2 != nil || hi < lo || hi-lo > 0xFFFF {
				continue
			}
			width := len(toks[0][1])
			if isArray {
				for i, t := range hexToken.FindAllStringSubmatch(arr, -1) {
					cm.set(hexCode(lo+uint64(i), width), utf16Text(t[1]))
				}
				continue
			}
			if len(toks) < 3 {
				continue
			}
			dst, err := strconv.ParseUint(toks[2][1], 16, 32)
			if err != nil {
				continue
			}
			for code := lo; code <= hi; code++ {
				cm.set(hexCode(code, width), utf16Text(hexCode(dst+code-lo, len(toks[2][1]))))
			}
		}
	}
	return cm
}

func (cm *cmap) set(code, text string) {
	if text == "" {
		return
	}
	code = strings.ToUpper(code)
	cm.codes[code] = text
	if n := len(code) / 2; n > cm.codeLen {
		cm.codeLen = n
	}
}

func (cm *cmap) merge(other *cmap) {
	for k, v := range other.codes {
		cm.set(k, v)
	}
}

// decode maps raw string bytes through the table. Unknown single-byte
// codes that are printable ASCII pass through.
func (cm *cmap) decode(raw []byte) string {
	if cm == nil || len(cm.codes) == 0 {
		return ""
	}
	var sb strings.Builder
	for i := 0; i < len(raw); {
		matched := false
		for n := cm.codeLen; n >= 1; n-- {
			if i+n > len(raw) {
				continue
			}
			if text, ok := cm.codes[strings.ToUpper(hex.EncodeToString(raw[i:i+n]))]; ok {
				sb.WriteString(text)
				i += n
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		if raw[i] >= 32 && raw[i] < 127 && cm.codeLen == 1 {
			sb.WriteByte(raw[i])
		}
		i++
	}
	return sb.String()
}

func hexCode(v uint64, width int) string {
	h := strings.ToUpper(strconv.FormatUint(v, 16))
	for len(h) < width {
		h = "0" + h
	}
	return h
}

// utf16Text decodes a big-endian UTF-16 hex string, surrogate pairs included.
func utf16Text(h string) string {
	if len(h)%2 != 0 {
		h = "0" + h
	}
	data, err := hex.DecodeString(h)
	if err != nil || len(data) == 0 {
		return ""
	}
	if len(data) == 1 {
		return string(rune(data[0]))
	}
	units := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		units = append(units, uint16(data[i])<<8|uint16(data[i+1]))
	}
	return string(utf16.Decode(units))
}
