package pdfgraph

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Operation is one content stream operator with its operands, in stream
// order. Order is significant: operators mutate the graphics state, the
// current point and the text state as the stream is consumed.
//
// Inline images are carried as a single "BI" operation whose Raw field
// holds the bytes from BI through EI verbatim, so they survive a re-encode
// untouched.
type Operation struct {
	Operator string
	Operands []types.Object
	Raw      []byte
}

// ReadOperations decodes a page's Contents value into its operation
// sequence. Contents may be a stream, a reference to one, or an array of
// references; multiple streams are concatenated in array order, since they
// form one logical stream.
//
// Streams are always decompressed before decoding, whatever the source
// document's compression state. A member that cannot be resolved or parsed
// degrades to an empty sequence with a line on warn: one unreadable page is
// not allowed to abort a whole batch.
func ReadOperations(ctx *model.Context, contents types.Object, warn io.Writer) []Operation {
	if warn == nil {
		warn = io.Discard
	}
	switch obj := contents.(type) {
	case types.IndirectRef:
		resolved, err := ctx.Dereference(obj)
		if err != nil || resolved == nil {
			fmt.Fprintf(warn, "warning: contents %s do not resolve (%v); treating as empty\n", obj, err)
			return nil
		}
		return ReadOperations(ctx, resolved, warn)

	case *types.StreamDict:
		return ReadOperations(ctx, *obj, warn)

	case types.StreamDict:
		data, err := decodedStream(obj)
		if err != nil {
			fmt.Fprintf(warn, "warning: content stream does not decode (%v); treating as empty\n", err)
			return nil
		}
		ops, err := parseOperations(data)
		if err != nil {
			fmt.Fprintf(warn, "warning: content stream does not parse (%v); treating as empty\n", err)
			return nil
		}
		return ops

	case types.Array:
		var ops []Operation
		for _, item := range obj {
			ops = append(ops, ReadOperations(ctx, item, warn)...)
		}
		return ops

	default:
		fmt.Fprintf(warn, "warning: unexpected Contents shape %T; treating page as empty\n", contents)
		return nil
	}
}

// decodedStream returns the filter-decoded payload of sd, running the
// filter pipeline when only raw bytes are present.
func decodedStream(sd types.StreamDict) ([]byte, error) {
	if len(sd.Content) == 0 && len(sd.Raw) > 0 {
		if err := sd.Decode(); err != nil {
			return nil, err
		}
	}
	return sd.Content, nil
}

// EncodeOperations serializes operations into content stream bytes. Inline
// images are emitted verbatim from their captured Raw bytes.
func EncodeOperations(ops []Operation) []byte {
	var b bytes.Buffer
	for _, op := range ops {
		if len(op.Raw) > 0 {
			b.Write(op.Raw)
			b.WriteByte('\n')
			continue
		}
		for _, o := range op.Operands {
			b.WriteString(operandString(o))
			b.WriteByte(' ')
		}
		b.WriteString(op.Operator)
		b.WriteByte('\n')
	}
	return b.Bytes()
}

func operandString(o types.Object) string {
	if o == nil {
		return "null"
	}
	return o.PDFString()
}

// parseOperations tokenizes decoded content stream bytes. The lexer covers
// the object syntax that can appear as operands: numbers, names, literal
// and hex strings, arrays, dictionaries, booleans and null.
func parseOperations(data []byte) ([]Operation, error) {
	lex := &lexer{data: data}
	var ops []Operation
	var operands []types.Object

	for {
		lex.skipSpace()
		if lex.pos >= len(lex.data) {
			break
		}
		c := lex.data[lex.pos]
		switch {
		case c == '/' || c == '(' || c == '<' || c == '[' ||
			c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
			obj, err := lex.object()
			if err != nil {
				return nil, err
			}
			operands = append(operands, obj)

		case c == ')' || c == '>' || c == ']' || c == '{' || c == '}':
			return nil, fmt.Errorf("unexpected %q at offset %d", c, lex.pos)

		default:
			kw := lex.keyword()
			switch kw {
			case "":
				return nil, fmt.Errorf("unexpected byte 0x%02x at offset %d", c, lex.pos)
			case "true":
				operands = append(operands, types.Boolean(true))
			case "false":
				operands = append(operands, types.Boolean(false))
			case "null":
				operands = append(operands, nil)
			case "BI":
				raw, err := lex.inlineImage()
				if err != nil {
					return nil, err
				}
				ops = append(ops, Operation{Operator: "BI", Raw: raw})
				operands = nil
			default:
				ops = append(ops, Operation{Operator: kw, Operands: operands})
				operands = nil
			}
		}
	}

	if len(operands) > 0 {
		return nil, fmt.Errorf("%d trailing operands without an operator", len(operands))
	}
	return ops, nil
}

type lexer struct {
	data []byte
	pos  int
}

func isSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isSpace(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		break
	}
}

// object parses one operand. The caller has already established that the
// next byte starts an object.
func (l *lexer) object() (types.Object, error) {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return nil, fmt.Errorf("unexpected end of stream")
	}
	switch c := l.data[l.pos]; {
	case c == '/':
		return l.name()
	case c == '(':
		return l.literalString()
	case c == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			return l.dict()
		}
		return l.hexString()
	case c == '[':
		return l.array()
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return l.number()
	default:
		kw := l.keyword()
		switch kw {
		case "true":
			return types.Boolean(true), nil
		case "false":
			return types.Boolean(false), nil
		case "null":
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected token %q at offset %d", kw, l.pos)
	}
}

func (l *lexer) keyword() string {
	start := l.pos
	for l.pos < len(l.data) && !isSpace(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
		l.pos++
	}
	return string(l.data[start:l.pos])
}

func (l *lexer) name() (types.Object, error) {
	l.pos++ // consume '/'
	var b strings.Builder
	for l.pos < len(l.data) && !isSpace(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
		c := l.data[l.pos]
		if c == '#' && l.pos+2 < len(l.data) {
			if v, err := strconv.ParseUint(string(l.data[l.pos+1:l.pos+3]), 16, 8); err == nil {
				b.WriteByte(byte(v))
				l.pos += 3
				continue
			}
		}
		b.WriteByte(c)
		l.pos++
	}
	return types.Name(b.String()), nil
}

func (l *lexer) number() (types.Object, error) {
	start := l.pos
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			l.pos++
			continue
		}
		break
	}
	s := string(l.data[start:l.pos])
	if !strings.ContainsAny(s, ".") {
		if i, err := strconv.Atoi(s); err == nil {
			return types.Integer(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed number %q at offset %d", s, start)
	}
	return types.Float(f), nil
}

// literalString captures the text between balanced parentheses verbatim,
// escapes included, so a re-encode reproduces the original bytes.
func (l *lexer) literalString() (types.Object, error) {
	start := l.pos
	l.pos++ // consume '('
	depth := 1
	inner := l.pos
	for l.pos < len(l.data) {
		switch l.data[l.pos] {
		case '\\':
			l.pos++ // skip the escaped byte
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				s := string(l.data[inner:l.pos])
				l.pos++
				return types.StringLiteral(s), nil
			}
		}
		l.pos++
	}
	return nil, fmt.Errorf("unterminated string at offset %d", start)
}

func (l *lexer) hexString() (types.Object, error) {
	start := l.pos
	l.pos++ // consume '<'
	var b strings.Builder
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if c == '>' {
			l.pos++
			return types.HexLiteral(b.String()), nil
		}
		if !isSpace(c) {
			b.WriteByte(c)
		}
		l.pos++
	}
	return nil, fmt.Errorf("unterminated hex string at offset %d", start)
}

func (l *lexer) array() (types.Object, error) {
	start := l.pos
	l.pos++ // consume '['
	arr := types.Array{}
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return nil, fmt.Errorf("unterminated array at offset %d", start)
		}
		if l.data[l.pos] == ']' {
			l.pos++
			return arr, nil
		}
		obj, err := l.object()
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

func (l *lexer) dict() (types.Object, error) {
	start := l.pos
	l.pos += 2 // consume '<<'
	d := types.Dict{}
	for {
		l.skipSpace()
		if l.pos+1 < len(l.data) && l.data[l.pos] == '>' && l.data[l.pos+1] == '>' {
			l.pos += 2
			return d, nil
		}
		if l.pos >= len(l.data) {
			return nil, fmt.Errorf("unterminated dictionary at offset %d", start)
		}
		if l.data[l.pos] != '/' {
			return nil, fmt.Errorf("dictionary key at offset %d is not a name", l.pos)
		}
		key, err := l.name()
		if err != nil {
			return nil, err
		}
		val, err := l.object()
		if err != nil {
			return nil, err
		}
		d[string(key.(types.Name))] = val
	}
}

// inlineImage captures everything from BI through the matching EI, image
// bytes included. The caller has already consumed the BI keyword. A /L or
// /Length parameter fixes the extent of the image data, so an EI sequence
// inside the samples cannot end the image early. Without a declared length
// the first whitespace-delimited EI wins.
func (l *lexer) inlineImage() ([]byte, error) {
	start := l.pos - 2 // include "BI"
	if end, ok := l.inlineImageEnd(); ok {
		l.pos = end
		return l.data[start:l.pos], nil
	}
	for i := l.pos; i+1 < len(l.data); i++ {
		if l.data[i] == 'E' && l.data[i+1] == 'I' &&
			i > 0 && isSpace(l.data[i-1]) &&
			(i+2 >= len(l.data) || isSpace(l.data[i+2]) || isDelim(l.data[i+2])) {
			l.pos = i + 2
			return l.data[start:l.pos], nil
		}
	}
	return nil, fmt.Errorf("unterminated inline image at offset %d", start)
}

// inlineImageEnd parses the image parameters on a throwaway lexer and
// returns the offset just past EI when a declared data length makes the
// end position unambiguous.
func (l *lexer) inlineImageEnd() (int, bool) {
	p := lexer{data: l.data, pos: l.pos}
	length := -1
	for {
		p.skipSpace()
		if p.pos >= len(p.data) {
			return 0, false
		}
		if p.data[p.pos] == '/' {
			key, err := p.name()
			if err != nil {
				return 0, false
			}
			val, err := p.object()
			if err != nil {
				return 0, false
			}
			if k, ok := key.(types.Name); ok && (k == "L" || k == "Length") {
				if n, ok := val.(types.Integer); ok {
					length = int(n)
				}
			}
			continue
		}
		if p.keyword() != "ID" {
			return 0, false
		}
		break
	}
	if length < 0 || p.pos >= len(p.data) || !isSpace(p.data[p.pos]) {
		return 0, false
	}
	p.pos++ // single whitespace byte after ID
	p.pos += length
	if p.pos > len(p.data) {
		return 0, false
	}
	p.skipSpace()
	if p.keyword() != "EI" {
		return 0, false
	}
	return p.pos, true
}
