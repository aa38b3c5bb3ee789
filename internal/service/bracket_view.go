package service

import (
	"sort"

	"github.com/AdamBeresnev/pickleball-fixtures/internal/bracket"
)

type Round struct {
	Number  int             `json:"number"`
	Matches []bracket.Match `json:"matches"`
}

type CategoryBracket struct {
	Category string  `json:"category"`
	Rounds   []Round `json:"rounds"`
}

// PrepareBrackets groups knockout matches by category and round for display.
// Categories and rounds come out in ascending order, matches by position.
func PrepareBrackets(matches []bracket.Match) []CategoryBracket {
	byCategory := make(map[string]map[int][]bracket.Match)
	var categories []string

	for _, m := range matches {
		if m.Type != bracket.KnockoutMatch {
			continue
		}
		rounds, exists := byCategory[m.Category]
		if !exists {
			rounds = make(map[int][]bracket.Match)
			byCategory[m.Category] = rounds
			categories = append(categories, m.Category)
		}
		rounds[m.Round] = append(rounds[m.Round], m)
	}

	sort.Strings(categories)

	brackets := make([]CategoryBracket, 0, len(categories))
	for _, category := range categories {
		rounds := byCategory[category]
		roundNums := make([]int, 0, len(rounds))
		for n := range rounds {
			roundNums = append(roundNums, n)
		}
		sort.Ints(roundNums)

		cb := CategoryBracket{Category: category}
		for _, n := range roundNums {
			roundMatches := rounds[n]
			sort.Slice(roundMatches, func(i, j int) bool {
				return roundMatches[i].BracketPosition < roundMatches[j].BracketPosition
			})
			cb.Rounds = append(cb.Rounds, Round{Number: n, Matches: roundMatches})
		}
		brackets = append(brackets, cb)
	}
	return brackets
}
