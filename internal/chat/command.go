// Package chat turns chat lines into game calls and game results into
// replies. It knows nothing about the chat transport.
package chat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnrecognized means the line was not meant for the bot.
var ErrUnrecognized = errors.New("unrecognized command")

type SyntaxError struct {
	Expected string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid syntax; expected `%s`", e.Expected)
}

// Command is one of Start, Guess, Thesaurus or Help.
type Command interface {
	command()
}

type Start struct{}

type Guess struct {
	Word string
}

// Thesaurus asks for the neighbours of Word. Count is 0 when not given.
type Thesaurus struct {
	Word  string
	Count int
}

type Help struct{}

func (Start) command()     {}
func (Guess) command()     {}
func (Thesaurus) command() {}
func (Help) command()      {}

const (
	thesaurusSyntax = "!thesaurus <word> [count]"
	guessSyntax     = "!guess <word>"
)

// Parse reads a "!" command.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, ErrUnrecognized
	}

	switch fields[0] {
	case "!start":
		if len(fields) != 1 {
			return nil, &SyntaxError{Expected: "!start"}
		}
		return Start{}, nil

	case "!help", "!halp":
		return Help{}, nil

	case "!guess":
		if len(fields) != 2 {
			return nil, &SyntaxError{Expected: guessSyntax}
		}
		return Guess{Word: fields[1]}, nil

	case "!thesaurus":
		if len(fields) < 2 || len(fields) > 3 {
			return nil, &SyntaxError{Expected: thesaurusSyntax}
		}
		cmd := Thesaurus{Word: fields[1]}
		if len(fields) == 3 {
			n, err := strconv.Atoi(fields[2])
			if err != nil || n <= 0 {
				return nil, &SyntaxError{Expected: thesaurusSyntax}
			}
			cmd.Count = n
		}
		return cmd, nil
	}

	return nil, ErrUnrecognized
}
