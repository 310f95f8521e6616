// Package parser extracts flashcards from markdown deck files.
//
// A deck file holds cards as labelled blocks:
//
//	Q: What does the ease factor control?
//	A: How fast a card's review interval grows.
//	N: Lecture 3, slide 12.
//	---
//	Q: ...
//
// Blocks may span multiple lines; "---" ends a card, and a new "Q:"
// line always starts one. Cards without a question are dropped.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/Keeno5280/LectureLens/internal/domain"
)

type field int

const (
	none field = iota
	question
	answer
	notes
)

var prefixes = []struct {
	prefix string
	field  field
}{
	{"Q:", question},
	{"A:", answer},
	{"N:", notes},
}

const separator = "---"

// ParseFile opens path and extracts all cards from it.
func ParseFile(path string) ([]domain.Content, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads deck-formatted text and returns the cards it contains.
func Parse(r io.Reader) ([]domain.Content, error) {
	p := parseState{}
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		p.line(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	p.endCard()
	return p.cards, nil
}

type parseState struct {
	cards   []domain.Content
	current domain.Content
	active  field
	block   []string
}

func (p *parseState) line(line string) {
	if line == separator {
		p.endCard()
		return
	}

	for _, pre := range prefixes {
		if rest, ok := strings.CutPrefix(line, pre.prefix); ok {
			if pre.field == question && p.active != none {
				// A new question implicitly ends the previous card.
				p.endCard()
			} else {
				p.flushBlock()
			}
			p.active = pre.field
			p.block = append(p.block, strings.TrimPrefix(rest, " "))
			return
		}
	}

	// Continuation line; ignored outside any block.
	if p.active != none {
		p.block = append(p.block, line)
	}
}

// flushBlock commits the accumulated block to the active field.
func (p *parseState) flushBlock() {
	if len(p.block) == 0 {
		return
	}
	text := strings.Join(p.block, "\n")
	switch p.active {
	case question:
		p.current.Question = text
	case answer:
		p.current.Answer = text
	case notes:
		p.current.Notes = text
	}
	p.block = nil
}

func (p *parseState) endCard() {
	p.flushBlock()
	if p.current.Question != "" {
		p.cards = append(p.cards, p.current)
	}
	p.current = domain.Content{}
	p.active = none
}
