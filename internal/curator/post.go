package curator

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/phenix995/ai-instagram-organizer/internal/scoring"
)

// Post assembly strategies, in output order.
const (
	StrategyPremium       = "Premium_Showcase"
	StrategyDiverse       = "Diverse_Excellence"
	StrategyTheme         = "Theme_Based"
	StrategyChronological = "Chronological"
)

// Post is an ordered set of photos published together.
type Post struct {
	ID       string
	Strategy string
	Name     string
	Records  []scoring.Record
}

// AverageScore is the mean composite score of the post's photos.
func (p Post) AverageScore() float64 {
	if len(p.Records) == 0 {
		return 0
	}
	var sum float64
	for _, r := range p.Records {
		sum += r.Composite
	}
	return sum / float64(len(p.Records))
}

// Tiers lists the tier of each photo, in post order.
func (p Post) Tiers() []string {
	tiers := make([]string, len(p.Records))
	for i, r := range p.Records {
		tiers[i] = r.Tier
	}
	return tiers
}

// Categories lists the category of each photo, in post order.
func (p Post) Categories() []string {
	categories := make([]string, len(p.Records))
	for i, r := range p.Records {
		categories[i] = r.Category
	}
	return categories
}

// Plan holds every assembled post, grouped by strategy.
type Plan struct {
	Premium       []Post
	Diverse       []Post
	Theme         []Post
	Chronological []Post

	Stats Stats
}

// All returns every post in strategy order.
func (p Plan) All() []Post {
	all := make([]Post, 0, len(p.Premium)+len(p.Diverse)+len(p.Theme)+len(p.Chronological))
	all = append(all, p.Premium...)
	all = append(all, p.Diverse...)
	all = append(all, p.Theme...)
	all = append(all, p.Chronological...)
	return all
}

// Stats counts post assembly outcomes for the run report.
type Stats struct {
	Worthy     int            `json:"worthy"`
	TotalPosts int            `json:"total_posts"`
	PhotosUsed int            `json:"photos_used"`
	Tiers      map[string]int `json:"tier_distribution"`
}

func makePosts(strategy string, groups [][]enriched) []Post {
	posts := make([]Post, 0, len(groups))
	for i, group := range groups {
		records := make([]scoring.Record, len(group))
		for j, e := range group {
			records[j] = e.Record
		}
		posts = append(posts, Post{
			ID:       uuid.NewString(),
			Strategy: strategy,
			Name:     fmt.Sprintf("%s_Post_%d", strategy, i+1),
			Records:  records,
		})
	}
	return posts
}
