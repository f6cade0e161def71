package protocol

// A ReplyPattern describes the framed reply a command expects: a sequence
// of '!'-introduced tagged fields, optionally closed by a final '!'. It is
// a fixed-field decoder, not a general pattern language; each entry in the
// command table compiles down to one of these.
type ReplyPattern struct {
	Fields []Field
	// Closed requires a '!' immediately after the last field.
	Closed bool
}

// Field is one tagged value inside a reply.
type Field struct {
	Tag  string
	Kind FieldKind
	// Len is the byte count captured by a RawBlock field.
	Len int
}

// FieldKind selects how a field's value is scanned.
type FieldKind int

const (
	// Number is whitespace padding followed by a run of [0-9.-].
	Number FieldKind = iota
	// Word is whitespace padding followed by a run of word characters.
	Word
	// SerialDigits is a digit run directly after the tag, optional space
	// padding, then a NUL byte. Only the !K reply uses this shape.
	SerialDigits
	// RawBlock captures exactly Len bytes verbatim.
	RawBlock
)

// Match checks text against the pattern, anchored at the start. Trailing
// bytes beyond the pattern are ignored. On success it returns the captured
// field values in pattern order.
func (p *ReplyPattern) Match(text string) ([]string, bool) {
	pos := 0
	values := make([]string, 0, len(p.Fields))

	for _, f := range p.Fields {
		if pos >= len(text) || text[pos] != '!' {
			return nil, false
		}
		pos++
		if len(text)-pos < len(f.Tag) || text[pos:pos+len(f.Tag)] != f.Tag {
			return nil, false
		}
		pos += len(f.Tag)

		var value string
		var ok bool
		switch f.Kind {
		case Number:
			value, pos, ok = scanPadded(text, pos, isNumberChar)
		case Word:
			value, pos, ok = scanPadded(text, pos, isWordChar)
		case SerialDigits:
			value, pos, ok = scanSerial(text, pos)
		case RawBlock:
			if len(text)-pos < f.Len {
				return nil, false
			}
			value, pos, ok = text[pos:pos+f.Len], pos+f.Len, true
		}
		if !ok {
			return nil, false
		}
		values = append(values, value)
	}

	if p.Closed {
		if pos >= len(text) || text[pos] != '!' {
			return nil, false
		}
	}
	return values, true
}

// scanPadded skips one or more whitespace bytes, then captures a non-empty
// run of bytes accepted by valid.
func scanPadded(text string, pos int, valid func(byte) bool) (string, int, bool) {
	start := pos
	for pos < len(text) && isSpace(text[pos]) {
		pos++
	}
	if pos == start {
		return "", pos, false
	}
	valueStart := pos
	for pos < len(text) && valid(text[pos]) {
		pos++
	}
	if pos == valueStart {
		return "", pos, false
	}
	return text[valueStart:pos], pos, true
}

// scanSerial captures the !K serial number: digits, optional space padding,
// then a NUL terminator.
func scanSerial(text string, pos int) (string, int, bool) {
	start := pos
	for pos < len(text) && text[pos] >= '0' && text[pos] <= '9' {
		pos++
	}
	if pos == start {
		return "", pos, false
	}
	value := text[start:pos]
	for pos < len(text) && isSpace(text[pos]) {
		pos++
	}
	if pos >= len(text) || text[pos] != 0x00 {
		return "", pos, false
	}
	return value, pos + 1, true
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func isNumberChar(b byte) bool {
	return b >= '0' && b <= '9' || b == '.' || b == '-'
}

func isWordChar(b byte) bool {
	return b >= '0' && b <= '9' ||
		b >= 'a' && b <= 'z' ||
		b >= 'A' && b <= 'Z' ||
		b == '_'
}
