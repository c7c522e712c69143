package report

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// Summary returns a one-line summary of the report.
func (r *Report) Summary() string {
	counts := r.Counts()
	return fmt.Sprintf("%s: %d layers, %d hash index passed, %d failed, %d findings",
		r.Conclusion.Indication, len(r.Layers),
		counts[StatusPassed], counts[StatusFailed], len(r.Findings))
}

// ToJSON returns the report as indented JSON.
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ToXML returns the report as indented XML.
func (r *Report) ToXML() ([]byte, error) {
	data, err := xml.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), data...), nil
}

// Formatter renders reports.
type Formatter struct {
	IncludeFindings bool
	DateFormat      string
}

// NewFormatter creates a formatter with defaults.
func NewFormatter() *Formatter {
	return &Formatter{
		IncludeFindings: true,
		DateFormat:      time.RFC3339,
	}
}

// FormatAsText formats the report as plain text.
func (f *Formatter) FormatAsText(r *Report) string {
	var sb strings.Builder

	sb.WriteString("=== VALIDATION REPORT ===\n")
	sb.WriteString(fmt.Sprintf("Document: %s (%s, %d bytes)\n", r.DocumentID, r.Format, r.Length))
	sb.WriteString(fmt.Sprintf("Generated: %s\n", r.GeneratedAt.Format(f.DateFormat)))

	sb.WriteString(fmt.Sprintf("\nOverall Result: %s", r.Conclusion.Indication))
	if r.Conclusion.SubIndication != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", r.Conclusion.SubIndication))
	}
	sb.WriteString("\n")

	for _, l := range r.Layers {
		sb.WriteString(fmt.Sprintf("\n--- Layer %d (#%d) ---\n", l.Position+1, l.ID))
		sb.WriteString(fmt.Sprintf("Kind: %s\n", l.Kind))
		if l.GenerationTime != nil {
			sb.WriteString(fmt.Sprintf("Generation Time: %s\n", l.GenerationTime.Format(f.DateFormat)))
		}
		if l.ByteRange != "" {
			sb.WriteString(fmt.Sprintf("Byte Range: %s\n", l.ByteRange))
		}
		if l.EmbeddedIn != nil {
			sb.WriteString(fmt.Sprintf("Embedded In: #%d\n", *l.EmbeddedIn))
		}
		sb.WriteString(fmt.Sprintf("Covers: %s\n", formatIDs(l.CoverageSet)))
		sb.WriteString(fmt.Sprintf("Hash Index: %s", l.HashIndex.Status))
		if l.HashIndex.Version != "" {
			sb.WriteString(fmt.Sprintf(" (%s, %s, %d records)", l.HashIndex.Version, l.HashIndex.Algorithm, l.HashIndex.Records))
		}
		sb.WriteString("\n")
		if l.Imprint.Status != "" && l.Imprint.Status != StatusNotApplicable {
			sb.WriteString(fmt.Sprintf("Imprint: %s", l.Imprint.Status))
			if l.Imprint.Algorithm != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", l.Imprint.Algorithm))
			}
			sb.WriteString("\n")
		}
		if l.Collision {
			sb.WriteString("Collision: yes\n")
		}
	}

	if f.IncludeFindings && len(r.Findings) > 0 {
		sb.WriteString("\nFindings:\n")
		for _, fr := range r.Findings {
			sb.WriteString(fmt.Sprintf("  - [%s] %s\n", fr.Kind, fr.Message))
		}
	}

	return sb.String()
}

// FormatAsMarkdown formats the report as Markdown.
func (f *Formatter) FormatAsMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Validation Report\n\n")
	sb.WriteString(fmt.Sprintf("**Document:** %s (%s)\n\n", r.DocumentID, r.Format))
	sb.WriteString(fmt.Sprintf("**Result:** %s", r.Conclusion.Indication))
	if r.Conclusion.SubIndication != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", r.Conclusion.SubIndication))
	}
	sb.WriteString("\n\n")

	sb.WriteString("| # | ID | Kind | Generation Time | Covers | Hash Index |\n")
	sb.WriteString("|---|----|------|-----------------|--------|------------|\n")
	for _, l := range r.Layers {
		genTime := "-"
		if l.GenerationTime != nil {
			genTime = l.GenerationTime.Format(f.DateFormat)
		}
		sb.WriteString(fmt.Sprintf("| %d | %d | %s | %s | %s | %s |\n",
			l.Position+1, l.ID, l.Kind, genTime, formatIDs(l.CoverageSet), l.HashIndex.Status))
	}

	if f.IncludeFindings && len(r.Findings) > 0 {
		sb.WriteString("\n## Findings\n\n")
		for _, fr := range r.Findings {
			sb.WriteString(fmt.Sprintf("- **%s**: %s\n", fr.Kind, fr.Message))
		}
	}

	return sb.String()
}

// WriteTo writes the formatted report to the given writer.
func (f *Formatter) WriteTo(w io.Writer, r *Report, format string) error {
	var output string
	switch strings.ToLower(format) {
	case "markdown", "md":
		output = f.FormatAsMarkdown(r)
	case "json":
		data, err := r.ToJSON()
		if err != nil {
			return err
		}
		output = string(data) + "\n"
	case "xml":
		data, err := r.ToXML()
		if err != nil {
			return err
		}
		output = string(data) + "\n"
	default:
		output = f.FormatAsText(r)
	}

	_, err := io.WriteString(w, output)
	return err
}

func formatIDs(ids []int) string {
	if len(ids) == 0 {
		return "none"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return strings.Join(parts, ", ")
}
