package analysis

import (
	"fmt"
	"strings"
)

const initialQuestion = "Give an initial analysis of this website: what it is for, who it targets, " +
	"how clear the content and structure are, and the most important SEO and accessibility improvements."

// systemPrompt embeds the snapshot so every turn of the chat sees the page.
func systemPrompt(s *Snapshot) string {
	var sb strings.Builder
	sb.WriteString("You are a website analyst. Answer questions about the page below using only the snapshot; ")
	sb.WriteString("say so when the snapshot does not contain the answer. Reply in Markdown.\n\n")
	fmt.Fprintf(&sb, "URL: %s\n", s.URL)
	if s.FinalURL != "" && s.FinalURL != s.URL {
		fmt.Fprintf(&sb, "Final URL: %s\n", s.FinalURL)
	}
	fmt.Fprintf(&sb, "HTTP status: %d\n", s.Status)
	fmt.Fprintf(&sb, "Title: %s\n", orNone(s.Title))
	fmt.Fprintf(&sb, "Meta description: %s\n", orNone(s.Description))
	fmt.Fprintf(&sb, "Language: %s\n", orNone(s.Language))
	fmt.Fprintf(&sb, "Load time: %d ms (via %s)\n", s.LoadTimeMs, s.Via)
	fmt.Fprintf(&sb, "Links: %d (%d external)\n", s.Links, s.ExternalLinks)
	fmt.Fprintf(&sb, "Images: %d (%d missing alt text)\n", s.Images, s.ImagesMissingAlt)
	fmt.Fprintf(&sb, "Word count: %d\n", s.WordCount)
	if len(s.Headings) > 0 {
		sb.WriteString("Headings:\n")
		for _, h := range s.Headings {
			fmt.Fprintf(&sb, "%s- h%d: %s\n", strings.Repeat("  ", h.Level-1), h.Level, h.Text)
		}
	}
	sb.WriteString("\nPage text")
	if s.Truncated {
		sb.WriteString(" (truncated)")
	}
	sb.WriteString(":\n")
	sb.WriteString(s.Text)
	return sb.String()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
