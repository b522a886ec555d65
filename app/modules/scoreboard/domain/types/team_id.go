package scoretypes

import (
	"fmt"
	"regexp"
	"strconv"
)

// teamIDPattern matches "CODE-NNNN": a two-character competition code followed
// by exactly four digits.
var teamIDPattern = regexp.MustCompile(`^([0-9]{2}|[A-Z]{2})-([0-9]{4})$`)

// knownLetterCodes are the non-numeric competition codes accepted by ParseTeamID.
var knownLetterCodes = map[string]struct{}{
	"CC": {},
	"CT": {},
}

// TeamID identifies a team within a competition season.
// The zero value is the "default" TeamID and never names a real team.
type TeamID struct {
	CompetitionIdentifier string
	TeamNumber            int
}

// NewTeamID builds a TeamID, validating both parts.
func NewTeamID(competition string, number int) (TeamID, error) {
	if number < 0 || number > 9999 {
		return TeamID{}, InvalidArgumentf("team number %d out of range", number)
	}
	id := TeamID{CompetitionIdentifier: competition, TeamNumber: number}
	if _, err := ParseTeamID(id.String()); err != nil {
		return TeamID{}, err
	}
	return id, nil
}

// ParseTeamID parses "CODE-NNNN" text.
func ParseTeamID(s string) (TeamID, error) {
	m := teamIDPattern.FindStringSubmatch(s)
	if m == nil {
		return TeamID{}, InvalidArgumentf("malformed team ID %q", s)
	}
	code := m[1]
	if code[0] < '0' || code[0] > '9' {
		if _, ok := knownLetterCodes[code]; !ok {
			return TeamID{}, InvalidArgumentf("unknown competition code %q", code)
		}
	}
	number, err := strconv.Atoi(m[2])
	if err != nil {
		return TeamID{}, InvalidArgumentf("malformed team number in %q", s)
	}
	return TeamID{CompetitionIdentifier: code, TeamNumber: number}, nil
}

// MustParseTeamID is ParseTeamID for constants; it panics on bad input.
func MustParseTeamID(s string) TeamID {
	id, err := ParseTeamID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsZero reports whether t is the default TeamID.
func (t TeamID) IsZero() bool {
	return t.CompetitionIdentifier == "" && t.TeamNumber == 0
}

func (t TeamID) String() string {
	return fmt.Sprintf("%s-%04d", t.CompetitionIdentifier, t.TeamNumber)
}

// Compare orders two team IDs by team number. Both must belong to the same competition.
func (t TeamID) Compare(other TeamID) (int, error) {
	if t.CompetitionIdentifier != other.CompetitionIdentifier {
		return 0, InvalidArgumentf("cannot compare team IDs from competitions %q and %q",
			t.CompetitionIdentifier, other.CompetitionIdentifier)
	}
	switch {
	case t.TeamNumber < other.TeamNumber:
		return -1, nil
	case t.TeamNumber > other.TeamNumber:
		return 1, nil
	default:
		return 0, nil
	}
}

// Less is a total order used for deterministic sorting: competition first, then number.
func (t TeamID) Less(other TeamID) bool {
	if t.CompetitionIdentifier != other.CompetitionIdentifier {
		return t.CompetitionIdentifier < other.CompetitionIdentifier
	}
	return t.TeamNumber < other.TeamNumber
}

func (t TeamID) MarshalText() ([]byte, error) {
	if t.IsZero() {
		return []byte{}, nil
	}
	return []byte(t.String()), nil
}

func (t *TeamID) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*t = TeamID{}
		return nil
	}
	id, err := ParseTeamID(string(text))
	if err != nil {
		return err
	}
	*t = id
	return nil
}
