// Package scoring decides pickleball match winners from per-set scores.
package scoring

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/bracket"
)

var (
	ErrInvalidScore  = errors.New("invalid score")
	ErrUnknownFormat = errors.New("unknown match format")
	ErrUnknownRule   = errors.New("unknown scoring rule")
)

const (
	DefaultFormat = "best_of_3"
	DefaultRule   = "standard"
)

type Format struct {
	Name   string
	BestOf int
}

func (f Format) SetsToWin() int {
	return f.BestOf/2 + 1
}

var formats = map[string]Format{
	"single_game": {Name: "single_game", BestOf: 1},
	"best_of_3":   {Name: "best_of_3", BestOf: 3},
	"best_of_5":   {Name: "best_of_5", BestOf: 5},
}

func ParseFormat(name string) (Format, error) {
	f, ok := formats[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Format{}, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
	return f, nil
}

// Rule says when a single game ends. Golden rules stop at Target exactly:
// at Target-1 all, the next rally wins.
type Rule struct {
	Name   string
	Target int
	WinBy  int
	Golden bool
}

var rules = map[string]Rule{
	"standard":     {Name: "standard", Target: 11, WinBy: 2},
	"rally_15":     {Name: "rally_15", Target: 15, WinBy: 2},
	"rally_21":     {Name: "rally_21", Target: 21, WinBy: 2},
	"golden_point": {Name: "golden_point", Target: 11, WinBy: 1, Golden: true},
}

func ParseRule(name string) (Rule, error) {
	r, ok := rules[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %q", ErrUnknownRule, name)
	}
	return r, nil
}

func FormatNames() []string {
	return sortedKeys(formats)
}

func RuleNames() []string {
	return sortedKeys(rules)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetWinner returns the winning slot of a finished game.
func (r Rule) SetWinner(s bracket.SetScore) (int, error) {
	if s.Slot1 < 0 || s.Slot2 < 0 {
		return 0, fmt.Errorf("%w: negative score %d-%d", ErrInvalidScore, s.Slot1, s.Slot2)
	}
	if s.Slot1 == s.Slot2 {
		return 0, fmt.Errorf("%w: game cannot end tied at %d", ErrInvalidScore, s.Slot1)
	}

	slot, hi, lo := 1, s.Slot1, s.Slot2
	if s.Slot2 > s.Slot1 {
		slot, hi, lo = 2, s.Slot2, s.Slot1
	}

	switch {
	case hi < r.Target:
		return 0, fmt.Errorf("%w: %d-%d is not finished under %s", ErrInvalidScore, s.Slot1, s.Slot2, r.Name)
	case r.Golden && hi > r.Target:
		return 0, fmt.Errorf("%w: %s games end at %d", ErrInvalidScore, r.Name, r.Target)
	case hi == r.Target && hi-lo < r.WinBy:
		return 0, fmt.Errorf("%w: %d-%d needs a %d point margin", ErrInvalidScore, s.Slot1, s.Slot2, r.WinBy)
	case hi > r.Target && hi-lo != r.WinBy:
		return 0, fmt.Errorf("%w: extended game %d-%d must end on a %d point margin", ErrInvalidScore, s.Slot1, s.Slot2, r.WinBy)
	}
	return slot, nil
}

// Winner decides a match by majority of games. Games played after the
// match was already decided make the score malformed.
func Winner(sets []bracket.SetScore, f Format, r Rule) (int, error) {
	if len(sets) == 0 {
		return 0, fmt.Errorf("%w: no games entered", ErrInvalidScore)
	}
	if len(sets) > f.BestOf {
		return 0, fmt.Errorf("%w: %d games entered for %s", ErrInvalidScore, len(sets), f.Name)
	}

	need := f.SetsToWin()
	won := [3]int{}
	for i, s := range sets {
		if won[1] == need || won[2] == need {
			return 0, fmt.Errorf("%w: game %d played after the match was decided", ErrInvalidScore, i+1)
		}
		slot, err := r.SetWinner(s)
		if err != nil {
			return 0, fmt.Errorf("game %d: %w", i+1, err)
		}
		won[slot]++
	}

	if won[1] == need {
		return 1, nil
	}
	if won[2] == need {
		return 2, nil
	}
	return 0, fmt.Errorf("%w: match undecided at %d-%d games, %d needed", ErrInvalidScore, won[1], won[2], need)
}

// GamesWon counts games by slot, ignoring unfinished ones.
func GamesWon(sets []bracket.SetScore, r Rule) (int, int) {
	var g1, g2 int
	for _, s := range sets {
		switch slot, err := r.SetWinner(s); {
		case err != nil:
		case slot == 1:
			g1++
		default:
			g2++
		}
	}
	return g1, g2
}

// ValidateLive checks an in-progress score, where the last game may be unfinished.
func ValidateLive(sets []bracket.SetScore, f Format) error {
	if len(sets) > f.BestOf {
		return fmt.Errorf("%w: %d games entered for %s", ErrInvalidScore, len(sets), f.Name)
	}
	for i, s := range sets {
		if s.Slot1 < 0 || s.Slot2 < 0 {
			return fmt.Errorf("%w: game %d has a negative score", ErrInvalidScore, i+1)
		}
	}
	return nil
}

// Summary renders games as "11-7, 9-11, 11-5".
func Summary(sets []bracket.SetScore) string {
	parts := make([]string, len(sets))
	for i, s := range sets {
		parts[i] = strconv.Itoa(s.Slot1) + "-" + strconv.Itoa(s.Slot2)
	}
	return strings.Join(parts, ", ")
}
