package extractor

import (
	"bytes"
	"compress/zlib"
	"encoding/hex"
	"io"
	"regexp"
	"strings"
	"unicode"
)

// rawPages is the last-resort text back-end. It scans the file for content
// streams, inflates them and decodes Tj/TJ/' strings, using any ToUnicode
// maps found in the file. Each content stream that carries text becomes a
// page; positions are synthesised from the reconstructed lines.
func rawPages(data []byte) []string {
	found := streams(data)
	cm := &cmap{codes: map[string]string{}}
	var inflated [][]byte
	for _, s := range found {
		body := inflate(s)
		inflated = append(inflated, body)
		if bytes.Contains(body, []byte("beginbfchar")) || bytes.Contains(body, []byte("beginbfrange")) {
			cm.merge(parseCMap(string(body)))
		}
	}
	if len(cm.codes) == 0 {
		cm = nil
	}
	var pages []string
	for _, body := range inflated {
		if !bytes.Contains(body, []byte("BT")) {
			continue
		}
		if text := streamText(string(body), cm); len(strings.TrimSpace(text)) > 10 {
			pages = append(pages, text)
		}
	}
	return pages
}

var (
	streamStart = []byte("stream")
	streamEnd   = []byte("endstream")
)

func streams(data []byte) [][]byte {
	var out [][]byte
	for off := 0; off < len(data); {
		i := bytes.Index(data[off:], streamStart)
		if i < 0 {
			break
		}
		start := off + i + len(streamStart)
		if start < len(data) && data[start] == '\r' {
			start++
		}
		if start < len(data) && data[start] == '\n' {
			start++
		}
		end := bytes.Index(data[start:], streamEnd)
		if end < 0 {
			break
		}
		if end > 0 {
			out = append(out, data[start:start+end])
		}
		off = start + end + len(streamEnd)
	}
	return out
}

func inflate(b []byte) []byte {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return b
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil && len(out) == 0 {
		return b
	}
	return out
}

var (
	textOp    = regexp.MustCompile(`(?s)(\[(?:[^\]\\]|\\.)*\]\s*TJ|\((?:[^)\\]|\\.)*\)\s*(?:Tj|')|<[0-9A-Fa-f\s]*>\s*Tj|T\*|-?[\d.]+\s+-?[\d.]+\s+T[dD]|ET)`)
	arrayPart = regexp.MustCompile(`(?s)\((?:[^)\\]|\\.)*\)|<[0-9A-Fa-f\s]*>|-?\d+(?:\.\d+)?`)
	moveOp    = regexp.MustCompile(`^-?[\d.]+\s+(-?[\d.]+)\s+T[dD]$`)
)

// streamText walks text operators in order; T*, ', ET and any Td/TD with a
// vertical move start a new line. Large negative TJ kerning becomes a space.
func streamText(content string, cm *cmap) string {
	var lines []string
	var cur strings.Builder
	newline := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			lines = append(lines, s)
		}
		cur.Reset()
	}
	for _, op := range textOp.FindAllString(content, -1) {
		switch {
		case op == "T*" || op == "ET":
			newline()
		case strings.HasSuffix(op, "TJ"):
			for _, part := range arrayPart.FindAllString(op[:strings.LastIndex(op, "]")], -1) {
				if part[0] == '(' || part[0] == '<' {
					cur.WriteString(decodeString(part, cm))
				} else if strings.HasPrefix(part, "-") && len(part) > 3 {
					cur.WriteByte(' ')
				}
			}
		case strings.HasSuffix(op, "'"):
			newline()
			cur.WriteString(decodeString(strings.TrimSpace(strings.TrimSuffix(op, "'")), cm))
		case strings.HasSuffix(op, "Tj"):
			cur.WriteString(decodeString(strings.TrimSpace(strings.TrimSuffix(op, "Tj")), cm))
		default:
			if m := moveOp.FindStringSubmatch(op); m != nil && m[1] != "0" && m[1] != "0.0" {
				newline()
			} else if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
		}
	}
	newline()
	return strings.Join(lines, "\n")
}

// decodeString decodes a literal "(...)" or hex "<...>" PDF string.
func decodeString(s string, cm *cmap) string {
	var raw []byte
	if strings.HasPrefix(s, "<") {
		h := strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, strings.Trim(s, "<>"))
		if len(h)%2 != 0 {
			h += "0"
		}
		b, err := hex.DecodeString(h)
		if err != nil {
			return ""
		}
		raw = b
	} else {
		raw = unescape(strings.TrimSuffix(strings.TrimPrefix(s, "("), ")"))
	}
	if cm != nil {
		if text := cm.decode(raw); text != "" {
			return text
		}
	}
	if strings.HasPrefix(s, "<") && len(raw)%2 == 0 {
		if text := utf16Text(hex.EncodeToString(raw)); printable(text) {
			return text
		}
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, string(raw))
}

func unescape(s string) []byte {
	var out []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			out = append(out, c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			v := int(s[i] - '0')
			for j := 0; j < 2 && i+1 < len(s) && s[i+1] >= '0' && s[i+1] <= '7'; j++ {
				i++
				v = v*8 + int(s[i]-'0')
			}
			out = append(out, byte(v))
		default:
			out = append(out, s[i])
		}
	}
	return out
}

func printable(s string) bool {
	if s == "" {
		return false
	}
	n, ok := 0, 0
	for _, r := range s {
		n++
		if unicode.IsPrint(r) {
			ok++
		}
	}
	return ok*2 > n
}
