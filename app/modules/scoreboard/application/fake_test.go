package scoreboardservice

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	scoretypes "github.com/matthewzring/CyberScores-sub000/app/modules/scoreboard/domain/types"
)

// ------------------------
// Fake Source
// ------------------------

type FakeSource struct {
	mu    sync.Mutex
	trace []string

	GetScoreboardFunc func(ctx context.Context, filter scoretypes.ScoreboardFilterInfo) (*scoretypes.CompleteScoreboardSummary, error)
	GetDetailsFunc    func(ctx context.Context, team scoretypes.TeamID) (*scoretypes.ScoreDetails, error)
	RoundValue        scoretypes.CompetitionRound
	MetadataValue     scoretypes.Metadata

	scoreboardCalls atomic.Int32
	detailCalls     atomic.Int32
	closeCalls      atomic.Int32
}

func NewFakeSource() *FakeSource {
	return &FakeSource{
		trace:         []string{},
		MetadataValue: scoretypes.Metadata{Kind: scoretypes.SourceKindJSONArchive},
	}
}

func (f *FakeSource) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

// --- Source Interface Implementation ---

func (f *FakeSource) GetScoreboard(ctx context.Context, filter scoretypes.ScoreboardFilterInfo) (*scoretypes.CompleteScoreboardSummary, error) {
	f.record("GetScoreboard")
	f.scoreboardCalls.Add(1)
	if f.GetScoreboardFunc != nil {
		return f.GetScoreboardFunc(ctx, filter)
	}
	return &scoretypes.CompleteScoreboardSummary{TeamList: []scoretypes.ScoreSummaryEntry{}}, nil
}

func (f *FakeSource) GetDetails(ctx context.Context, team scoretypes.TeamID) (*scoretypes.ScoreDetails, error) {
	f.record("GetDetails")
	f.detailCalls.Add(1)
	if f.GetDetailsFunc != nil {
		return f.GetDetailsFunc(ctx, team)
	}
	return &scoretypes.ScoreDetails{Summary: scoretypes.ScoreSummaryEntry{TeamID: team}}, nil
}

func (f *FakeSource) Round() scoretypes.CompetitionRound { return f.RoundValue }

func (f *FakeSource) Metadata() scoretypes.Metadata { return f.MetadataValue }

func (f *FakeSource) Close() error {
	f.record("Close")
	f.closeCalls.Add(1)
	return nil
}

// --- Accessors for assertions ---

func (f *FakeSource) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeSource) ScoreboardCalls() int { return int(f.scoreboardCalls.Load()) }
func (f *FakeSource) DetailCalls() int     { return int(f.detailCalls.Load()) }
func (f *FakeSource) CloseCalls() int      { return int(f.closeCalls.Load()) }

var _ Source = (*FakeSource)(nil)

// ------------------------
// Fake Clock
// ------------------------

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2019, 11, 2, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ------------------------
// Fake Publisher
// ------------------------

type publishedMessage struct {
	topic   string
	payload []byte
}

type FakePublisher struct {
	mu        sync.Mutex
	published []publishedMessage
}

func (p *FakePublisher) record(topic string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, publishedMessage{topic: topic, payload: payload})
}

func (p *FakePublisher) Messages() []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedMessage, len(p.published))
	copy(out, p.published)
	return out
}

func (p *FakePublisher) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		p.record(topic, msg.Payload)
	}
	return nil
}

func (p *FakePublisher) Close() error { return nil }

var _ message.Publisher = (*FakePublisher)(nil)
