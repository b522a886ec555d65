package competition

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"

	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
)

// MapCategoryProvider resolves team categories from an in-memory map.
type MapCategoryProvider struct {
	mu         sync.RWMutex
	categories map[scoretypes.TeamID]string
}

// NewMapCategoryProvider copies categories into a new provider.
func NewMapCategoryProvider(categories map[scoretypes.TeamID]string) *MapCategoryProvider {
	m := make(map[scoretypes.TeamID]string, len(categories))
	for k, v := range categories {
		m[k] = v
	}
	return &MapCategoryProvider{categories: m}
}

// GetCategory returns the category for team, if known.
func (p *MapCategoryProvider) GetCategory(team scoretypes.TeamID) (string, bool) {
	if p == nil {
		return "", false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.categories[team]
	return c, ok
}

// Len returns the number of known categories.
func (p *MapCategoryProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.categories)
}

// ParseCategoryMap reads "TEAMID<sep>Category" lines, where sep is a comma,
// tab, colon, or equals sign. Blank lines, comments, and lines that do not
// parse are skipped: category data is enrichment and may be incomplete.
func ParseCategoryMap(r io.Reader) map[scoretypes.TeamID]string {
	out := make(map[scoretypes.TeamID]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexAny(line, ",\t:=")
		if idx < 0 {
			continue
		}
		team, err := scoretypes.ParseTeamID(strings.TrimSpace(line[:idx]))
		if err != nil {
			continue
		}
		category := strings.TrimSpace(line[idx+1:])
		if category == "" {
			continue
		}
		out[team] = category
	}
	return out
}

// LoadCategoryMap reads a category map file. A missing file yields an empty provider.
func LoadCategoryMap(path string) (*MapCategoryProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewMapCategoryProvider(nil), nil
		}
		return nil, err
	}
	defer f.Close()
	return &MapCategoryProvider{categories: ParseCategoryMap(f)}, nil
}
