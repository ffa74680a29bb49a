package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/nickh0112/insta-captions/internal/services"
)

// Count pairs a term with how often it appeared across transcripts.
type Count struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Report is the aggregate view over every transcript in a directory.
type Report struct {
	TotalTranscripts int      `json:"total_transcripts"`
	TopTopics        []Count  `json:"top_topics"`
	Questions        []Count  `json:"questions"`
	Keywords         []Count  `json:"keywords"`
	Ideas            []string `json:"ideas"`
	FullText         string   `json:"full_text"`
}

const (
	topTopicLimit    = 10
	topQuestionLimit = 10
	topKeywordLimit  = 20
)

var transcriptBody = regexp.MustCompile(`(?s)Transcribed: (.+?)\n\n===`)

// topicPatterns maps a content theme to the vocabulary that signals it.
var topicPatterns = []struct {
	topic   string
	pattern *regexp.Regexp
}{
	{"product reviews", regexp.MustCompile(`\b(review|test|try|buy|purchase|recommend)\b`)},
	{"tutorials", regexp.MustCompile(`\b(how to|tutorial|guide|step|learn|teach)\b`)},
	{"lifestyle", regexp.MustCompile(`\b(life|daily|routine|morning|night|day)\b`)},
	{"fitness", regexp.MustCompile(`\b(workout|exercise|fitness|gym|train|health)\b`)},
	{"cooking", regexp.MustCompile(`\b(cook|recipe|food|kitchen|ingredient|meal)\b`)},
	{"travel", regexp.MustCompile(`\b(travel|trip|visit|go|place|location)\b`)},
	{"fashion", regexp.MustCompile(`\b(fashion|style|outfit|wear|clothes|dress)\b`)},
	{"beauty", regexp.MustCompile(`\b(beauty|makeup|skincare|hair|product)\b`)},
	{"tech", regexp.MustCompile(`\b(tech|technology|app|software|device|phone)\b`)},
	{"business", regexp.MustCompile(`\b(business|work|job|career|money|income)\b`)},
}

var questionPattern = regexp.MustCompile(`[^.!?]*\?`)

var wordPattern = regexp.MustCompile(`\b[a-z]{3,}\b`)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "have": {}, "has": {},
	"had": {}, "do": {}, "does": {}, "did": {}, "will": {}, "would": {},
	"could": {}, "should": {}, "may": {}, "might": {}, "this": {},
	"that": {}, "these": {}, "those": {}, "i": {}, "you": {}, "he": {},
	"she": {}, "it": {}, "we": {}, "they": {}, "me": {}, "him": {},
	"her": {}, "us": {}, "them": {}, "my": {}, "your": {}, "his": {},
	"its": {}, "our": {}, "their": {}, "mine": {}, "yours": {},
	"hers": {}, "ours": {}, "theirs": {},
}

// AnalyzeDir reads every .txt transcript under dir and builds a report.
func AnalyzeDir(dir string) (*Report, error) {
	entries, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "analysis", "glob", "invalid transcript directory", err)
	}
	if len(entries) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "analysis", "scan", fmt.Sprintf("no transcript files found in %s", dir), nil)
	}
	sort.Strings(entries)

	var (
		fullText  strings.Builder
		topics    = map[string]int{}
		questions = map[string]int{}
		keywords  = map[string]int{}
	)
	for _, path := range entries {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, services.Wrap(services.ErrWorkspace, "analysis", "read", "failed to read transcript", err)
		}
		body := extractBody(string(data))
		if body == "" {
			continue
		}
		fullText.WriteString(body)
		fullText.WriteString(" ")

		for _, topic := range extractTopics(body) {
			topics[topic]++
		}
		for _, question := range extractQuestions(body) {
			questions[question]++
		}
		for _, keyword := range extractKeywords(body) {
			keywords[keyword]++
		}
	}

	report := &Report{
		TotalTranscripts: len(entries),
		TopTopics:        topCounts(topics, topTopicLimit),
		Questions:        topCounts(questions, topQuestionLimit),
		Keywords:         topCounts(keywords, topKeywordLimit),
		FullText:         fullText.String(),
	}
	report.Ideas = contentIdeas(report)
	return report, nil
}

// WriteReport saves the report as indented JSON next to the transcripts.
func WriteReport(report *Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return services.Wrap(services.ErrWorkspace, "analysis", "write", "failed to write report", err)
	}
	return nil
}

// extractBody pulls the plain transcript text out of a transcript file,
// stopping before the segmented section.
func extractBody(content string) string {
	if match := transcriptBody.FindStringSubmatch(content); match != nil {
		return strings.TrimSpace(match[1])
	}
	// A file without segments still carries the plain text.
	if _, after, found := strings.Cut(content, "Transcribed: "); found {
		return strings.TrimSpace(after)
	}
	return ""
}

func extractTopics(text string) []string {
	lower := strings.ToLower(text)
	var topics []string
	for _, entry := range topicPatterns {
		if entry.pattern.MatchString(lower) {
			topics = append(topics, entry.topic)
		}
	}
	return topics
}

func extractQuestions(text string) []string {
	var questions []string
	for _, match := range questionPattern.FindAllString(text, -1) {
		question := strings.TrimSpace(match)
		if len(question) > 10 {
			questions = append(questions, question)
		}
	}
	return questions
}

func extractKeywords(text string) []string {
	var keywords []string
	for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if _, skip := stopWords[word]; skip {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}

// topCounts orders a frequency map by count descending, breaking ties by
// term so output is stable.
func topCounts(counts map[string]int, limit int) []Count {
	out := make([]Count, 0, len(counts))
	for term, count := range counts {
		out = append(out, Count{Term: term, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func contentIdeas(report *Report) []string {
	var ideas []string
	for i, topic := range report.TopTopics {
		if i >= 3 {
			break
		}
		ideas = append(ideas,
			fmt.Sprintf("Create a comprehensive %s guide", topic.Term),
			fmt.Sprintf("Share your %s journey/story", topic.Term),
			fmt.Sprintf("Review different %s options", topic.Term),
		)
	}
	if len(report.Questions) > 0 {
		ideas = append(ideas,
			"Answer common questions in a Q&A format",
			"Create a FAQ video based on viewer questions",
		)
	}
	if len(report.Keywords) > 0 {
		top := report.Keywords
		if len(top) > 3 {
			top = top[:3]
		}
		terms := make([]string, 0, len(top))
		for _, kw := range top {
			terms = append(terms, kw.Term)
		}
		ideas = append(ideas, "Create content around: "+strings.Join(terms, ", "))
	}
	ideas = append(ideas,
		"Share behind-the-scenes content",
		"Create a 'day in the life' video",
		"Make a tutorial based on your expertise",
		"Share tips and tricks you've learned",
		"Create a 'before and after' comparison",
	)
	if len(ideas) > 10 {
		ideas = ideas[:10]
	}
	return ideas
}
