// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"fmt"
	"regexp"
	"slices"
)

// Category identifies one kind of lifecycle phrase in coordinator
// output.
type Category uint8

const (
	CategoryBootCompleted Category = iota + 1
	CategoryRoundStarted
	CategoryRoundStartedAggregation
	CategoryRoundAggregated
	CategoryRoundFinished
	CategoryParticipantDropped
	CategorySuccessfulContribution
	CategoryRoundRestartedNoContributors
)

// Capture group names used by the pattern table.
const (
	GroupRound   = "round"
	GroupAddress = "address"
	GroupRole    = "role"
	GroupChunk   = "chunk"
)

var categoryNames = map[Category]string{
	CategoryBootCompleted:                "boot-completion",
	CategoryRoundStarted:                 "round-started",
	CategoryRoundStartedAggregation:      "round-started-aggregation",
	CategoryRoundAggregated:              "round-aggregated",
	CategoryRoundFinished:                "round-finished",
	CategoryParticipantDropped:           "participant-dropped",
	CategorySuccessfulContribution:       "successful-contribution",
	CategoryRoundRestartedNoContributors: "round-restarted-no-contributors",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// requiredGroups lists the capture groups the state machine reads for
// each category. NewPatternSet rejects expressions that lack them.
var requiredGroups = map[Category][]string{
	CategoryBootCompleted:                nil,
	CategoryRoundStarted:                 {GroupRound},
	CategoryRoundStartedAggregation:      {GroupRound},
	CategoryRoundAggregated:              {GroupRound},
	CategoryRoundFinished:                {GroupRound},
	CategoryParticipantDropped:           {GroupAddress, GroupRole},
	CategorySuccessfulContribution:       {GroupAddress, GroupChunk},
	CategoryRoundRestartedNoContributors: nil,
}

// PatternDefinition is the source form of one table entry.
type PatternDefinition struct {
	Category   Category
	Expression string
}

// DefaultDefinitions returns the phrases printed by the setup
// coordinator, in table order. Expressions are unanchored: a phrase
// may appear anywhere in a line, after the coordinator's timestamp
// and level prefix.
//
// The role group of the drop pattern accepts any lowercase token so
// that an unexpected role surfaces as ErrUnknownRole instead of the
// line silently not matching.
func DefaultDefinitions() []PatternDefinition {
	return []PatternDefinition{
		{CategoryBootCompleted, `Coordinator has booted up`},
		{CategoryRoundStarted, `Advanced ceremony to round (?P<round>[0-9]+)`},
		{CategoryRoundStartedAggregation, `Starting aggregation on round (?P<round>[0-9]+)`},
		{CategoryRoundAggregated, `Round (?P<round>[0-9]+) is aggregated`},
		{CategoryRoundFinished, `Round (?P<round>[0-9]+) is finished`},
		{CategoryParticipantDropped, `Dropping (?P<address>aleo[a-z0-9]+)[.](?P<role>[a-z_]+) from the ceremony`},
		{CategorySuccessfulContribution, `(?P<address>aleo[a-z0-9]+)[.]contributor added a contribution to chunk (?P<chunk>[0-9]+)`},
		{CategoryRoundRestartedNoContributors, `No contributors remaining to reset and complete the current round\. Rolling back to round 0 to wait and accept new participants`},
	}
}

// Pattern is one compiled table entry.
type Pattern struct {
	Category   Category
	Expression *regexp.Regexp
}

// PatternSet is an ordered table with exactly one pattern per
// category. It is immutable after construction and owned by the
// machine that uses it.
type PatternSet struct {
	patterns []Pattern
	index    map[Category]int
}

// NewPatternSet compiles definitions. Every category must appear
// exactly once and every expression must define the capture groups
// its category needs.
func NewPatternSet(definitions []PatternDefinition) (*PatternSet, error) {
	set := &PatternSet{index: make(map[Category]int, len(definitions))}
	for _, definition := range definitions {
		groups, known := requiredGroups[definition.Category]
		if !known {
			return nil, fmt.Errorf("pattern table: unknown category %d", uint8(definition.Category))
		}
		if _, duplicate := set.index[definition.Category]; duplicate {
			return nil, fmt.Errorf("pattern table: duplicate %s entry", definition.Category)
		}
		expression, err := regexp.Compile(definition.Expression)
		if err != nil {
			return nil, fmt.Errorf("pattern table: compiling %s: %w", definition.Category, err)
		}
		names := expression.SubexpNames()
		for _, group := range groups {
			if !slices.Contains(names, group) {
				return nil, fmt.Errorf("pattern table: %s expression lacks capture group %q", definition.Category, group)
			}
		}
		set.index[definition.Category] = len(set.patterns)
		set.patterns = append(set.patterns, Pattern{Category: definition.Category, Expression: expression})
	}
	for category := range requiredGroups {
		if _, present := set.index[category]; !present {
			return nil, fmt.Errorf("pattern table: missing %s entry", category)
		}
	}
	return set, nil
}

// DefaultPatterns compiles DefaultDefinitions. The built-in table is
// known to be valid, so failure is a programming error.
func DefaultPatterns() *PatternSet {
	set, err := NewPatternSet(DefaultDefinitions())
	if err != nil {
		panic("coordinator: default pattern table: " + err.Error())
	}
	return set
}

// Patterns returns the table in order.
func (s *PatternSet) Patterns() []Pattern {
	return slices.Clone(s.patterns)
}

// Match is the result of a successful pattern test.
type Match struct {
	Category Category
	groups   map[string]string
}

// Group returns the text captured by the named group, or "" when the
// group did not participate in the match.
func (m Match) Group(name string) string { return m.groups[name] }

// Match tests line against the category's pattern. Matching is
// case-sensitive and searches the whole line.
func (s *PatternSet) Match(category Category, line string) (Match, bool) {
	position, ok := s.index[category]
	if !ok {
		return Match{}, false
	}
	expression := s.patterns[position].Expression
	submatches := expression.FindStringSubmatch(line)
	if submatches == nil {
		return Match{}, false
	}
	match := Match{Category: category}
	for groupIndex, name := range expression.SubexpNames() {
		if name == "" || groupIndex >= len(submatches) {
			continue
		}
		if match.groups == nil {
			match.groups = make(map[string]string)
		}
		match.groups[name] = submatches[groupIndex]
	}
	return match, true
}

// Classify returns every category whose pattern matches line, in table
// order. The state machine never calls it (it tests only the
// categories relevant to its phase); it exists for diagnostics.
func (s *PatternSet) Classify(line string) []Category {
	var categories []Category
	for _, pattern := range s.patterns {
		if pattern.Expression.MatchString(line) {
			categories = append(categories, pattern.Category)
		}
	}
	return categories
}
