package feature

import (
	"math"
	"sort"
	"strings"

	"github.com/rraasi/coin-service/internal/feature/domain"
)

// Feature ids shared with callers that bill outside the catalog.
const (
	SatsangSessionID = "satsang_session"
)

var defaultFeatures = []domain.FeatureCost{
	// astrology
	{ID: "basic_chat", Cost: 5, Name: "Basic Chat", Category: "chat", FreeTierAvailable: true, SubscriptionUnlimited: true},
	{ID: "compatibility_check", Cost: 15, Name: "Compatibility Check", Category: "compatibility", SubscriptionUnlimited: true},
	{ID: "birth_chart", Cost: 25, Name: "Birth Chart Analysis", Category: "charts", SubscriptionUnlimited: true},
	{ID: "matchmaking_chat", Cost: 20, Name: "Matchmaking Chat", Category: "matchmaking", SubscriptionUnlimited: true},
	{ID: "group_compatibility", Cost: 30, Name: "Group Compatibility", Category: "compatibility", SubscriptionUnlimited: true},
	{ID: "daily_horoscope", Cost: 2, Name: "Daily Horoscope", Category: "horoscope", FreeTierAvailable: true, SubscriptionUnlimited: true},
	{ID: "advanced_analysis", Cost: 50, Name: "Advanced Analysis", Category: "analysis", SubscriptionUnlimited: true},
	{ID: "personalized_report", Cost: 100, Name: "Personalized Report", Category: "reports", SubscriptionUnlimited: true},
	{ID: "livekit_room", Cost: 10, Name: "Real-time Chat Room", Category: "livekit", SubscriptionUnlimited: true},
	{ID: "voice_consultation", Cost: 25, Name: "Voice Consultation", Category: "livekit", SubscriptionUnlimited: true},
	{ID: "group_voice_chat", Cost: 35, Name: "Group Voice Chat", Category: "livekit", SubscriptionUnlimited: true},

	// conversations
	{ID: "guru_chat_basic", Cost: 0, Name: "Basic Guru Chat (10min/day)", Category: "conversations", FreeTierAvailable: true, SubscriptionUnlimited: true},
	{ID: "guru_chat_extended", Cost: 15, Name: "Extended Guru Chat (30min)", Category: "conversations", SubscriptionUnlimited: true},
	{ID: "guru_voice_chat", Cost: 20, Name: "Voice Conversation with Guru", Category: "conversations", SubscriptionUnlimited: true},
	{ID: "multi_guru_chat", Cost: 10, Name: "Chat with Multiple Gurus", Category: "conversations", SubscriptionUnlimited: true},
	{ID: "osho_discourse", Cost: 15, Name: "Osho Discourse Chat", Category: "conversations", SubscriptionUnlimited: true},
	{ID: "hindu_guru_chat", Cost: 12, Name: "Hindu Guru Chat", Category: "conversations", SubscriptionUnlimited: true},

	// music
	{ID: "music_generation", Cost: 50, Name: "Generate Spiritual Music", Category: "music", SubscriptionUnlimited: true},
	{ID: "music_download_hd", Cost: 10, Name: "Download Music (HD)", Category: "music", SubscriptionUnlimited: true},
	{ID: "personalized_chant", Cost: 30, Name: "Personalized Chant Creation", Category: "music", SubscriptionUnlimited: true},
	{ID: "music_remix", Cost: 20, Name: "Music Remix/Variations", Category: "music", SubscriptionUnlimited: true},

	// divination
	{ID: "daily_tarot", Cost: 5, Name: "Daily Tarot Reading", Category: "divination", FreeTierAvailable: true, SubscriptionUnlimited: true},
	{ID: "tarot_detailed", Cost: 15, Name: "Detailed Tarot Reading", Category: "divination", SubscriptionUnlimited: true},
	{ID: "tarot_career", Cost: 20, Name: "Career Tarot Reading", Category: "divination", SubscriptionUnlimited: true},
	{ID: "tarot_love", Cost: 20, Name: "Love Tarot Reading", Category: "divination", SubscriptionUnlimited: true},
	{ID: "tarot_finance", Cost: 20, Name: "Finance Tarot Reading", Category: "divination", SubscriptionUnlimited: true},
	{ID: "group_tarot", Cost: 35, Name: "Group Tarot Session", Category: "divination", SubscriptionUnlimited: true},

	// consciousness
	{ID: "psychedelic_journey", Cost: 25, Name: "Psychedelic Journey Guide", Category: "consciousness", SubscriptionUnlimited: true},
	{ID: "et_consciousness", Cost: 18, Name: "ET Consciousness Chat", Category: "consciousness", SubscriptionUnlimited: true},

	// premium
	{ID: "custom_guru_creation", Cost: 100, Name: "Custom Guru Creation", Category: "premium", SubscriptionUnlimited: true},
	{ID: "private_satsang_room", Cost: 50, Name: "Private Satsang Room (per hour)", Category: "premium", SubscriptionUnlimited: true},
	{ID: "spiritual_report", Cost: 75, Name: "Personalized Spiritual Report", Category: "reports", SubscriptionUnlimited: true},
	{ID: "conversation_archive", Cost: 40, Name: "Saved Conversation Archive", Category: "storage", SubscriptionUnlimited: true},
}

type catalog struct {
	byID  map[string]domain.FeatureCost
	order []string
	stats domain.Stats
}

// New returns the compiled-in catalog.
func New() domain.Catalog {
	return newCatalog(defaultFeatures)
}

func newCatalog(features []domain.FeatureCost) *catalog {
	c := &catalog{
		byID:  make(map[string]domain.FeatureCost, len(features)),
		order: make([]string, 0, len(features)),
	}
	for _, f := range features {
		if _, dup := c.byID[f.ID]; dup {
			continue
		}
		c.byID[f.ID] = f
		c.order = append(c.order, f.ID)
	}
	c.stats = computeStats(c.List())
	return c
}

func (c *catalog) Get(featureID string) (domain.FeatureCost, bool) {
	f, ok := c.byID[strings.TrimSpace(featureID)]
	return f, ok
}

// All returns a copy; callers may not mutate the catalog.
func (c *catalog) All() map[string]domain.FeatureCost {
	out := make(map[string]domain.FeatureCost, len(c.byID))
	for id, f := range c.byID {
		out[id] = f
	}
	return out
}

func (c *catalog) List() []domain.FeatureCost {
	out := make([]domain.FeatureCost, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *catalog) Stats() domain.Stats {
	stats := c.stats
	stats.Categories = append([]string(nil), c.stats.Categories...)
	return stats
}

func computeStats(features []domain.FeatureCost) domain.Stats {
	stats := domain.Stats{TotalFeatures: len(features)}
	seen := map[string]struct{}{}
	var total int64
	for _, f := range features {
		total += f.Cost
		if f.FreeTierAvailable {
			stats.FreeTierFeatures++
		}
		if f.SubscriptionUnlimited {
			stats.SubscriptionUnlimitedFeatures++
		}
		if _, ok := seen[f.Category]; !ok {
			seen[f.Category] = struct{}{}
			stats.Categories = append(stats.Categories, f.Category)
		}
	}
	sort.Strings(stats.Categories)
	if len(features) > 0 {
		stats.AverageCost = math.Round(float64(total)/float64(len(features))*100) / 100
	}
	return stats
}
