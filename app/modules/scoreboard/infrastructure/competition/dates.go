package competition

import (
	"strings"
	"time"

	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var absoluteLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	time.DateOnly,
	"01/02/2006",
}

var naturalParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseRoundDate parses a schedule date. Absolute dates are tried first and
// interpreted in base's location; anything else goes through natural-language
// parsing relative to base (for example "next saturday 9am").
func ParseRoundDate(input string, base time.Time) (time.Time, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return time.Time{}, scoretypes.InvalidArgumentf("empty date")
	}

	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, text, base.Location()); err == nil {
			return t, nil
		}
	}

	r, err := naturalParser.Parse(strings.ToLower(text), base)
	if err != nil {
		return time.Time{}, scoretypes.InvalidArgumentf("unrecognised date %q: %v", input, err)
	}
	if r == nil {
		return time.Time{}, scoretypes.InvalidArgumentf("unrecognised date %q", input)
	}
	return r.Time, nil
}
