// Package tokenizer turns file content into a stream of words.
package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// maxTokenSize bounds a single token; longer runs fail the pass.
const maxTokenSize = 1 << 20

// Tokenizer yields words from one input until it is exhausted.
//
//	for tok.Next() {
//	    use(tok.Word())
//	}
//	if err := tok.Err(); err != nil { ... }
type Tokenizer interface {
	// Next advances to the next word. It returns false at end of input or on error.
	Next() bool
	// Word returns the current word.
	Word() string
	// Err returns the first read error, if any.
	Err() error
	// Close releases the underlying input.
	Close() error
}

// Kind selects a tokenization rule.
type Kind string

const (
	// KindWhitespace splits on whitespace and keeps tokens verbatim.
	KindWhitespace Kind = "whitespace"
	// KindAlphanum splits on anything that is not a letter or digit and lowercases.
	KindAlphanum Kind = "alphanum"
	// KindCode splits identifiers on camelCase and snake_case, lowercases,
	// and drops tokens shorter than two characters.
	KindCode Kind = "code"
)

// Kinds lists the supported tokenizer kinds.
func Kinds() []Kind {
	return []Kind{KindWhitespace, KindAlphanum, KindCode}
}

// ParseKind validates a configured tokenizer name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown tokenizer %q (want whitespace, alphanum or code)", s)
}

// New creates a tokenizer of the given kind reading from rc. The tokenizer
// owns rc and closes it on Close.
func New(kind Kind, rc io.ReadCloser) Tokenizer {
	switch kind {
	case KindWhitespace:
		return newScanner(rc, rc, bufio.ScanWords, nil)
	case KindCode:
		return newScanner(rc, norm.NFC.Reader(rc), scanIdentifiers, splitCode)
	default:
		return newScanner(rc, norm.NFC.Reader(rc), scanAlphanum, lowerOne)
	}
}

// scanner adapts bufio.Scanner to Tokenizer. expand turns one raw token
// into zero or more words.
type scanner struct {
	closer  io.Closer
	sc      *bufio.Scanner
	expand  func(string) []string
	pending []string
	word    string
}

func newScanner(c io.Closer, r io.Reader, split bufio.SplitFunc, expand func(string) []string) *scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxTokenSize)
	sc.Split(split)
	return &scanner{closer: c, sc: sc, expand: expand}
}

func (s *scanner) Next() bool {
	for len(s.pending) == 0 {
		if !s.sc.Scan() {
			return false
		}
		if s.expand == nil {
			s.word = s.sc.Text()
			return true
		}
		s.pending = s.expand(s.sc.Text())
	}
	s.word, s.pending = s.pending[0], s.pending[1:]
	return true
}

func (s *scanner) Word() string { return s.word }

func (s *scanner) Err() error { return s.sc.Err() }

func (s *scanner) Close() error { return s.closer.Close() }

func lowerOne(tok string) []string {
	return []string{strings.ToLower(tok)}
}

// scanAlphanum is a bufio.SplitFunc yielding maximal runs of letters and digits.
func scanAlphanum(data []byte, atEOF bool) (int, []byte, error) {
	return scanRuns(data, atEOF, isAlphanum)
}

// scanIdentifiers yields maximal runs of letters, digits and underscores.
func scanIdentifiers(data []byte, atEOF bool) (int, []byte, error) {
	return scanRuns(data, atEOF, func(r rune) bool { return r == '_' || isAlphanum(r) })
}

func isAlphanum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func scanRuns(data []byte, atEOF bool, in func(rune) bool) (int, []byte, error) {
	start := 0
	for start < len(data) {
		r, width := utf8.DecodeRune(data[start:])
		if r == utf8.RuneError && width == 1 && !atEOF && !utf8.FullRune(data[start:]) {
			return start, nil, nil
		}
		if in(r) {
			break
		}
		start += width
	}
	for i := start; i < len(data); {
		r, width := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && width == 1 && !atEOF && !utf8.FullRune(data[i:]) {
			return start, nil, nil
		}
		if !in(r) {
			return i + width, data[start:i], nil
		}
		i += width
	}
	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

// Normalize applies the case and Unicode folding of kind to a query word,
// so it matches words produced by a tokenizer of that kind.
func Normalize(kind Kind, word string) string {
	word = strings.TrimSpace(word)
	if kind == KindWhitespace {
		return word
	}
	return strings.ToLower(norm.NFC.String(word))
}
