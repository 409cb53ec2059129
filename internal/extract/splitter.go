package extract

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures text length in model tokens.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts with the cl100k_base vocabulary, so chunk
// budgets line up with what the generation models actually see.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

var (
	tiktokenOnce sync.Once
	tiktokenEnc  *tiktoken.Tiktoken
	tiktokenErr  error
)

// NewTiktokenCounter loads the cl100k_base encoding. The encoding is
// process-wide; repeated calls share it.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	tiktokenOnce.Do(func() {
		tiktokenEnc, tiktokenErr = tiktoken.GetEncoding("cl100k_base")
	})
	if tiktokenErr != nil {
		return nil, fmt.Errorf("load cl100k_base encoding: %w", tiktokenErr)
	}
	return &TiktokenCounter{enc: tiktokenEnc}, nil
}

// Count returns the number of tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// defaultSeparators mirror the usual recursive-splitting order: prefer
// paragraph breaks, then lines, then words, then anything.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter is a recursive character splitter measured in tokens. It
// splits on the coarsest separator that keeps pieces under the chunk
// size, recursing to finer separators for oversized pieces, then merges
// adjacent pieces back together with token overlap between chunks.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	counter      TokenCounter
}

// NewSplitter builds a splitter with the given token budget per chunk
// and token overlap between consecutive chunks.
func NewSplitter(chunkSize, chunkOverlap int, counter TokenCounter) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 512
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap, counter: counter}
}

// Split breaks text into chunks of at most chunkSize tokens.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, defaultSeparators)
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	splits := splitWithSeparator(text, sep)

	var final []string
	var pending []string
	for _, piece := range splits {
		if s.counter.Count(piece) < s.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			final = append(final, s.merge(pending, sep)...)
			pending = nil
		}
		if len(rest) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, rest)...)
		}
	}
	if len(pending) > 0 {
		final = append(final, s.merge(pending, sep)...)
	}
	return final
}

// merge joins small pieces into chunks up to the token budget, carrying
// chunkOverlap tokens of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := s.counter.Count(sep)

	var chunks []string
	var window []string
	total := 0

	flush := func() {
		if len(window) == 0 {
			return
		}
		doc := strings.TrimSpace(strings.Join(window, sep))
		if doc != "" {
			chunks = append(chunks, doc)
		}
	}

	for _, piece := range pieces {
		n := s.counter.Count(piece)
		if total+n+sepLen*boolToInt(len(window) > 0) > s.chunkSize && len(window) > 0 {
			flush()
			// Slide the window forward, keeping overlap tokens.
			for total > s.chunkOverlap || (total+n+sepLen*boolToInt(len(window) > 0) > s.chunkSize && total > 0) {
				total -= s.counter.Count(window[0]) + sepLen*boolToInt(len(window) > 1)
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += n + sepLen*boolToInt(len(window) > 1)
	}
	flush()
	return chunks
}

// splitWithSeparator splits text on sep, dropping empty pieces; merge
// reinserts the separator when joining. An empty separator splits into
// individual runes.
func splitWithSeparator(text, sep string) []string {
	if sep == "" {
		runes := []rune(text)
		out := make([]string, 0, len(runes))
		for _, r := range runes {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
