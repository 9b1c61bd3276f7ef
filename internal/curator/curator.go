// Package curator assembles the curated photo set into publishable posts
// under four strategies: premium showcases, diversity-optimized sets,
// per-category themes and a chronological remainder.
package curator

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/phenix995/ai-instagram-organizer/internal/scoring"
)

// Config controls post assembly.
type Config struct {
	PostSize        int
	MaxPremiumPosts int
	MaxDiversePosts int
	// MinThemeSize is how many photos a category needs before it gets a
	// theme post.
	MinThemeSize int
}

// Diversity weights of the greedy post selection.
const (
	categoryNoveltyWeight = 0.3
	moodNoveltyWeight     = 0.2
	timeNoveltyWeight     = 0.2
	settingNoveltyWeight  = 0.15
	qualityWeight         = 0.15
)

// enriched carries a record together with its derived traits so the
// diversity loop does not recompute them per comparison.
type enriched struct {
	scoring.Record
	setting   string
	timeOfDay string
}

// Curator turns scored records into a post plan.
type Curator struct {
	log zerolog.Logger
	cfg Config
}

func New(logger zerolog.Logger, cfg Config) *Curator {
	if cfg.PostSize < 1 {
		cfg.PostSize = 10
	}
	if cfg.MaxPremiumPosts < 1 {
		cfg.MaxPremiumPosts = 3
	}
	if cfg.MaxDiversePosts < 1 {
		cfg.MaxDiversePosts = 5
	}
	if cfg.MinThemeSize < 1 {
		cfg.MinThemeSize = cfg.PostSize
	}
	return &Curator{
		log: logger.With().Str("component", "curator").Logger(),
		cfg: cfg,
	}
}

// Assemble buckets records by tier and builds posts strategy by strategy:
// premium showcases from the premium tier, diversity-optimized posts from
// the excellent and premium tiers, one theme post per qualifying
// category, then chronological posts from whatever worthy photos remain
// unused. Only premium, excellent and good photos participate. The plan
// is deterministic for a given input order.
func (c *Curator) Assemble(records []scoring.Record) Plan {
	buckets := map[string][]enriched{}
	for _, r := range records {
		tier := r.Tier
		if tier != scoring.TierPremium && tier != scoring.TierExcellent &&
			tier != scoring.TierGood && tier != scoring.TierPoor {
			tier = scoring.TierAverage
		}
		buckets[tier] = append(buckets[tier], enriched{
			Record:    r,
			setting:   Setting(r),
			timeOfDay: TimeOfDay(r),
		})
	}

	tierOrder := []string{
		scoring.TierPremium, scoring.TierExcellent, scoring.TierGood,
		scoring.TierAverage, scoring.TierPoor,
	}
	tiers := map[string]int{}
	for _, tier := range tierOrder {
		tiers[tier] = len(buckets[tier])
		c.log.Info().Str("tier", tier).Int("photos", len(buckets[tier])).Msg("tier bucket")
	}

	worthy := make([]enriched, 0, len(records))
	worthy = append(worthy, buckets[scoring.TierPremium]...)
	worthy = append(worthy, buckets[scoring.TierExcellent]...)
	worthy = append(worthy, buckets[scoring.TierGood]...)

	plan := Plan{Stats: Stats{Worthy: len(worthy), Tiers: tiers}}
	if len(worthy) == 0 {
		c.log.Warn().Msg("no high-quality photos to post")
		return plan
	}

	diversePool := make([]enriched, 0, len(buckets[scoring.TierExcellent])+len(buckets[scoring.TierPremium]))
	diversePool = append(diversePool, buckets[scoring.TierExcellent]...)
	diversePool = append(diversePool, buckets[scoring.TierPremium]...)

	plan.Premium = makePosts(StrategyPremium, c.premiumPosts(buckets[scoring.TierPremium]))
	plan.Diverse = makePosts(StrategyDiverse, c.diversePosts(diversePool))
	plan.Theme = makePosts(StrategyTheme, c.themePosts(worthy))

	remaining := unusedPhotos(worthy, plan.All())
	plan.Chronological = makePosts(StrategyChronological, c.chronologicalPosts(remaining))

	for _, post := range plan.All() {
		plan.Stats.TotalPosts++
		plan.Stats.PhotosUsed += len(post.Records)
	}

	c.log.Info().
		Int("premium", len(plan.Premium)).
		Int("diverse", len(plan.Diverse)).
		Int("theme", len(plan.Theme)).
		Int("chronological", len(plan.Chronological)).
		Int("photos_used", plan.Stats.PhotosUsed).
		Msg("post assembly finished")
	return plan
}

// premiumPosts chunks the premium tier, best first, into full posts.
func (c *Curator) premiumPosts(premium []enriched) [][]enriched {
	if len(premium) < c.cfg.PostSize {
		return nil
	}

	sorted := append([]enriched(nil), premium...)
	sortByComposite(sorted)

	maxPosts := len(sorted) / c.cfg.PostSize
	if maxPosts > c.cfg.MaxPremiumPosts {
		maxPosts = c.cfg.MaxPremiumPosts
	}

	posts := make([][]enriched, 0, maxPosts)
	for i := 0; i < maxPosts; i++ {
		start := i * c.cfg.PostSize
		posts = append(posts, sorted[start:start+c.cfg.PostSize])
	}
	return posts
}

// diversePosts greedily picks maximum-variety sets out of the pool until
// the cap or the pool runs out.
func (c *Curator) diversePosts(pool []enriched) [][]enriched {
	if len(pool) < c.cfg.PostSize {
		return nil
	}

	available := append([]enriched(nil), pool...)
	maxPosts := len(pool) / c.cfg.PostSize
	if maxPosts > c.cfg.MaxDiversePosts {
		maxPosts = c.cfg.MaxDiversePosts
	}

	var posts [][]enriched
	for len(posts) < maxPosts && len(available) >= c.cfg.PostSize {
		post := selectDiverseSet(available, c.cfg.PostSize)
		posts = append(posts, post)
		available = removeRecords(available, post)
	}
	return posts
}

// selectDiverseSet seeds a post with the best photo, then repeatedly adds
// the candidate contributing the most diversity.
func selectDiverseSet(records []enriched, postSize int) []enriched {
	seedIdx := 0
	for i := range records {
		if records[i].Composite > records[seedIdx].Composite {
			seedIdx = i
		}
	}

	selected := []enriched{records[seedIdx]}
	remaining := make([]enriched, 0, len(records)-1)
	remaining = append(remaining, records[:seedIdx]...)
	remaining = append(remaining, records[seedIdx+1:]...)

	for len(selected) < postSize && len(remaining) > 0 {
		bestIdx := 0
		bestScore := -1.0
		for i, candidate := range remaining {
			if score := diversityScore(selected, candidate); score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// diversityScore rates how much variety a candidate adds to an already
// selected set, scaled by the candidate's own quality. Repeats of an
// attribute the set already contains are worth a fraction of a novel one.
func diversityScore(selected []enriched, candidate enriched) float64 {
	categoryNovelty := 1.0
	moodNovelty := 1.0
	timeNovelty := 1.0
	settingNovelty := 1.0
	var qualitySum float64

	for _, s := range selected {
		if s.Category == candidate.Category {
			categoryNovelty = 0.3
		}
		if s.Mood == candidate.Mood {
			moodNovelty = 0.5
		}
		if s.timeOfDay == candidate.timeOfDay {
			timeNovelty = 0.4
		}
		if s.setting == candidate.setting {
			settingNovelty = 0.6
		}
		qualitySum += s.Composite
	}

	avgQuality := qualitySum / float64(len(selected))
	qualityConsistency := 1.0 - math.Abs(candidate.Composite-avgQuality)/10.0

	score := categoryNovelty*categoryNoveltyWeight +
		moodNovelty*moodNoveltyWeight +
		timeNovelty*timeNoveltyWeight +
		settingNovelty*settingNoveltyWeight +
		qualityConsistency*qualityWeight

	return score * (candidate.Composite / 10.0)
}

// themePosts builds one post per category that has enough photos, taking
// the category's best. Categories keep first-seen order.
func (c *Curator) themePosts(worthy []enriched) [][]enriched {
	groups := map[string][]enriched{}
	var order []string
	for _, r := range worthy {
		if _, ok := groups[r.Category]; !ok {
			order = append(order, r.Category)
		}
		groups[r.Category] = append(groups[r.Category], r)
	}

	var posts [][]enriched
	for _, category := range order {
		group := groups[category]
		if len(group) < c.cfg.MinThemeSize {
			continue
		}

		sorted := append([]enriched(nil), group...)
		sortByComposite(sorted)
		if len(sorted) > c.cfg.PostSize {
			sorted = sorted[:c.cfg.PostSize]
		}
		posts = append(posts, sorted)
	}
	return posts
}

// chronologicalPosts chunks the leftover photos by capture time. Partial
// chunks are dropped; a post is full or not made.
func (c *Curator) chronologicalPosts(photos []enriched) [][]enriched {
	if len(photos) < c.cfg.PostSize {
		return nil
	}

	sorted := append([]enriched(nil), photos...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CaptureTime.Before(sorted[j].CaptureTime)
	})

	var posts [][]enriched
	for i := 0; i+c.cfg.PostSize <= len(sorted); i += c.cfg.PostSize {
		posts = append(posts, sorted[i:i+c.cfg.PostSize])
	}
	return posts
}

// unusedPhotos filters worthy photos already placed in a post, keeping
// input order.
func unusedPhotos(worthy []enriched, posts []Post) []enriched {
	used := map[string]bool{}
	for _, post := range posts {
		for _, r := range post.Records {
			used[r.PhotoID] = true
		}
	}

	var remaining []enriched
	for _, r := range worthy {
		if !used[r.PhotoID] {
			remaining = append(remaining, r)
		}
	}
	return remaining
}

func removeRecords(available, taken []enriched) []enriched {
	used := map[string]bool{}
	for _, r := range taken {
		used[r.PhotoID] = true
	}

	kept := make([]enriched, 0, len(available)-len(taken))
	for _, r := range available {
		if !used[r.PhotoID] {
			kept = append(kept, r)
		}
	}
	return kept
}

func sortByComposite(records []enriched) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Composite > records[j].Composite
	})
}
