package scoretypes

import (
	"strings"
)

// Division is a CyberPatriot competition division. The zero value means "not set".
type Division int

const (
	DivisionNone Division = iota
	DivisionOpen
	DivisionAllService
	DivisionMiddleSchool
)

var divisionNames = map[Division]string{
	DivisionOpen:         "Open",
	DivisionAllService:   "All Service",
	DivisionMiddleSchool: "Middle School",
}

func (d Division) String() string {
	if name, ok := divisionNames[d]; ok {
		return name
	}
	return ""
}

// ParseDivision accepts display names and common abbreviations, case-insensitively.
func ParseDivision(s string) (Division, error) {
	switch normalizeEnumText(s) {
	case "":
		return DivisionNone, nil
	case "open", "o":
		return DivisionOpen, nil
	case "allservice", "as", "service":
		return DivisionAllService, nil
	case "middleschool", "ms", "middle":
		return DivisionMiddleSchool, nil
	}
	return DivisionNone, InvalidArgumentf("unknown division %q", s)
}

func (d Division) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Division) UnmarshalText(text []byte) error {
	v, err := ParseDivision(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Tier is the scoring tier a team competes in. The zero value means "not set".
type Tier int

const (
	TierNone Tier = iota
	TierPlatinum
	TierGold
	TierSilver
	TierMiddleSchool
)

var tierNames = map[Tier]string{
	TierPlatinum:     "Platinum",
	TierGold:         "Gold",
	TierSilver:       "Silver",
	TierMiddleSchool: "Middle School",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return ""
}

// ParseTier parses a tier name case-insensitively.
func ParseTier(s string) (Tier, error) {
	switch normalizeEnumText(s) {
	case "":
		return TierNone, nil
	case "platinum", "plat":
		return TierPlatinum, nil
	case "gold":
		return TierGold, nil
	case "silver":
		return TierSilver, nil
	case "middleschool", "ms":
		return TierMiddleSchool, nil
	}
	return TierNone, InvalidArgumentf("unknown tier %q", s)
}

func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Tier) UnmarshalText(text []byte) error {
	v, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Advancement records whether a team advances past the current round.
type Advancement int

const (
	AdvancementNone Advancement = iota
	AdvancementAdvances
	AdvancementWildcard
	AdvancementEliminated
)

var advancementNames = map[Advancement]string{
	AdvancementAdvances:   "Advances",
	AdvancementWildcard:   "Wildcard",
	AdvancementEliminated: "Eliminated",
}

func (a Advancement) String() string {
	if name, ok := advancementNames[a]; ok {
		return name
	}
	return ""
}

// ParseAdvancement parses an advancement status.
func ParseAdvancement(s string) (Advancement, error) {
	switch normalizeEnumText(s) {
	case "":
		return AdvancementNone, nil
	case "advances", "advanced", "yes":
		return AdvancementAdvances, nil
	case "wildcard":
		return AdvancementWildcard, nil
	case "eliminated", "no":
		return AdvancementEliminated, nil
	}
	return AdvancementNone, InvalidArgumentf("unknown advancement status %q", s)
}

func (a Advancement) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Advancement) UnmarshalText(text []byte) error {
	v, err := ParseAdvancement(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ScoreWarnings is a bitset of scoreboard warning flags.
type ScoreWarnings uint8

const (
	WarningTimeOver ScoreWarnings = 1 << iota
	WarningMultiImage
	WarningWithdrawn
)

// Has reports whether every flag in w2 is set.
func (w ScoreWarnings) Has(w2 ScoreWarnings) bool { return w&w2 == w2 }

// String renders the scoreboard's compact form, e.g. "MT".
func (w ScoreWarnings) String() string {
	var b strings.Builder
	if w.Has(WarningMultiImage) {
		b.WriteByte('M')
	}
	if w.Has(WarningTimeOver) {
		b.WriteByte('T')
	}
	if w.Has(WarningWithdrawn) {
		b.WriteByte('W')
	}
	return b.String()
}

// ParseScoreWarnings parses the compact form. Unknown letters are an error.
func ParseScoreWarnings(s string) (ScoreWarnings, error) {
	var w ScoreWarnings
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		switch r {
		case 'T':
			w |= WarningTimeOver
		case 'M':
			w |= WarningMultiImage
		case 'W':
			w |= WarningWithdrawn
		case ' ', ',':
		default:
			return 0, InvalidArgumentf("unknown warning flag %q in %q", r, s)
		}
	}
	return w, nil
}

func (w ScoreWarnings) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

func (w *ScoreWarnings) UnmarshalText(text []byte) error {
	v, err := ParseScoreWarnings(string(text))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

// CompetitionRound is serialized as its integer value in archives.
type CompetitionRound int

const (
	RoundUnknown CompetitionRound = iota
	Round1
	Round2
	Round3
	RoundSemifinals
)

func (r CompetitionRound) String() string {
	switch r {
	case Round1:
		return "Round 1"
	case Round2:
		return "Round 2"
	case Round3:
		return "Round 3"
	case RoundSemifinals:
		return "Semifinals"
	}
	return "Unknown"
}

// ParseCompetitionRound accepts "1".."3", "round 2", "semifinals" and similar.
func ParseCompetitionRound(s string) (CompetitionRound, error) {
	switch normalizeEnumText(s) {
	case "", "unknown", "0":
		return RoundUnknown, nil
	case "1", "round1", "r1":
		return Round1, nil
	case "2", "round2", "r2":
		return Round2, nil
	case "3", "round3", "r3", "state":
		return Round3, nil
	case "4", "semifinals", "semis", "semifinal":
		return RoundSemifinals, nil
	}
	return RoundUnknown, InvalidArgumentf("unknown competition round %q", s)
}

func normalizeEnumText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}
