package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phenix995/ai-instagram-organizer/internal/curator"
	"github.com/phenix995/ai-instagram-organizer/internal/scoring"
)

// maxHashtags caps the derived tag list per post.
const maxHashtags = 20

// organize copies every post's photos into its own folder under the
// output root and writes the caption scaffold and metadata next to them.
func (p *Pipeline) organize(plan curator.Plan) error {
	for _, post := range plan.All() {
		if err := p.writePost(post); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) writePost(post curator.Post) error {
	postDir := filepath.Join(p.opts.Output, post.Strategy, post.Name)
	if err := os.MkdirAll(postDir, 0750); err != nil {
		return fmt.Errorf("failed to create post folder: %w", err)
	}
	p.log.Info().Str("post", post.Name).Int("photos", len(post.Records)).Msg("creating post")

	files := make([]string, len(post.Records))
	for i, r := range post.Records {
		name := fmt.Sprintf("%02d_%s", i+1, filepath.Base(r.Path))
		if err := copyFile(r.Path, filepath.Join(postDir, name)); err != nil {
			return err
		}
		files[i] = name
	}

	if err := os.WriteFile(filepath.Join(postDir, "captions.txt"), renderCaptions(post), 0600); err != nil {
		return fmt.Errorf("failed to write captions for %s: %w", post.Name, err)
	}

	meta, err := json.MarshalIndent(newPostMetadata(post, files), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata for %s: %w", post.Name, err)
	}
	if err := os.WriteFile(filepath.Join(postDir, "metadata.json"), meta, 0600); err != nil {
		return fmt.Errorf("failed to write metadata for %s: %w", post.Name, err)
	}
	return nil
}

type postMetadata struct {
	PostName     string           `json:"post_name"`
	PostStrategy postStrategyInfo `json:"post_strategy"`
	Photos       []postPhotoInfo  `json:"photos"`
}

type postStrategyInfo struct {
	Type       string   `json:"type"`
	PhotoTiers []string `json:"photo_tiers"`
	Categories []string `json:"categories"`
	AvgScore   float64  `json:"avg_score"`
}

type postPhotoInfo struct {
	File        string    `json:"file"`
	PhotoID     string    `json:"photo_id"`
	Composite   float64   `json:"composite_score"`
	Tier        string    `json:"tier"`
	Category    string    `json:"category"`
	Mood        string    `json:"mood"`
	CaptureTime time.Time `json:"capture_time"`
}

func newPostMetadata(post curator.Post, files []string) postMetadata {
	photos := make([]postPhotoInfo, len(post.Records))
	for i, r := range post.Records {
		photos[i] = postPhotoInfo{
			File:        files[i],
			PhotoID:     r.PhotoID,
			Composite:   r.Composite,
			Tier:        r.Tier,
			Category:    r.Category,
			Mood:        r.Mood,
			CaptureTime: r.CaptureTime,
		}
	}
	return postMetadata{
		PostName: post.Name,
		PostStrategy: postStrategyInfo{
			Type:       post.Strategy,
			PhotoTiers: post.Tiers(),
			Categories: post.Categories(),
			AvgScore:   math.Round(post.AverageScore()*100) / 100,
		},
		Photos: photos,
	}
}

// renderCaptions writes the caption scaffold for a post. Caption text
// generation proper stays an external concern; the scaffold carries the
// analysis fields a caption writer needs.
func renderCaptions(post curator.Post) []byte {
	styles := make([]string, 0, len(post.Records))
	times := make([]string, 0, len(post.Records))
	for _, r := range post.Records {
		styles = append(styles, r.CaptionStyle)
		times = append(times, r.BestTime)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "=== %s ===\n\n", strings.ToUpper(post.Name))
	fmt.Fprintf(&buf, "THEME: %s\n", dominant(post.Categories()))
	if style := dominant(styles); style != "" {
		fmt.Fprintf(&buf, "CAPTION STYLE: %s\n", style)
	}
	if best := dominant(times); best != "" {
		fmt.Fprintf(&buf, "BEST TIME TO POST: %s\n", best)
	}

	buf.WriteString("\n--- PHOTOS ---\n\n")
	for i, r := range post.Records {
		fmt.Fprintf(&buf, "%d. %s (%s, %.1f/10)\n", i+1, filepath.Base(r.Path), r.Tier, r.Composite)
	}

	buf.WriteString("\n--- HASHTAGS ---\n\n")
	buf.WriteString(strings.Join(hashtags(post.Records), " "))
	buf.WriteString("\n")
	return buf.Bytes()
}

// dominant returns the most frequent non-empty value; the first value
// to reach the top count wins ties.
func dominant(values []string) string {
	counts := map[string]int{}
	best := ""
	for _, v := range values {
		if v == "" {
			continue
		}
		counts[v]++
		if best == "" || counts[v] > counts[best] {
			best = v
		}
	}
	return best
}

// hashtags derives a tag list from the analysis fields of the post's
// photos, deduplicated in first-seen order.
func hashtags(records []scoring.Record) []string {
	seen := map[string]bool{}
	var tags []string
	add := func(value string) {
		tag := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(value), " ", ""))
		tag = strings.TrimPrefix(tag, "#")
		if tag == "" || seen[tag] || len(tags) >= maxHashtags {
			return
		}
		seen[tag] = true
		tags = append(tags, "#"+tag)
	}
	for _, r := range records {
		add(r.Category)
		add(r.Subcategory)
		add(r.Mood)
		add(r.HashtagFocus)
	}
	return tags
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer dstFile.Close()

	if _, err = io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}
