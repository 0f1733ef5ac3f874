package sweep

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidCommand is returned for input that is not a known command.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrSelectionOutOfRange is returned when a location number is not listed.
	ErrSelectionOutOfRange = errors.New("selection out of range")
)

// CommandKind identifies an operator command.
type CommandKind int

const (
	CommandDelete CommandKind = iota + 1
	CommandKeep
	CommandOpen
	CommandSkip
	CommandQuit
)

// Command is a parsed operator command. Numbers are 1-based location numbers,
// deduplicated and in the order given.
type Command struct {
	Kind    CommandKind
	Numbers []int
}

// ParseCommand parses one line of operator input against a list of count
// locations. Input is case-insensitive and surrounding whitespace is ignored.
//
//	c        keep every location
//	1 3      delete locations 1 and 3 (commas also separate)
//	o 2      open location 2
//	s        skip this file
//	q        quit the sweep
func ParseCommand(input string, count int) (Command, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	switch s {
	case "":
		return Command{}, fmt.Errorf("%w: empty input", ErrInvalidCommand)
	case "c":
		return Command{Kind: CommandKeep}, nil
	case "s":
		return Command{Kind: CommandSkip}, nil
	case "q":
		return Command{Kind: CommandQuit}, nil
	}

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: %q", ErrInvalidCommand, input)
	}

	if fields[0] == "o" {
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("%w: open takes exactly one location number", ErrInvalidCommand)
		}
		n, err := parseNumber(fields[1], count)
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CommandOpen, Numbers: []int{n}}, nil
	}

	seen := make(map[int]bool, len(fields))
	var numbers []int
	for _, f := range fields {
		n, err := parseNumber(f, count)
		if err != nil {
			return Command{}, err
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		numbers = append(numbers, n)
	}
	return Command{Kind: CommandDelete, Numbers: numbers}, nil
}

func parseNumber(field string, count int) (int, error) {
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCommand, field)
	}
	if n < 1 || n > count {
		return 0, fmt.Errorf("%w: %d (choose 1-%d)", ErrSelectionOutOfRange, n, count)
	}
	return n, nil
}
