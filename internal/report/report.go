// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report renders a human-readable Markdown summary of a GEO
// dataset's complete snapshot: title, ladder position, per-publication
// download history, and a references list. It is pure presentation over
// data the Registry already holds, adapted from the teacher's
// internal/draft outline/reference-loading idiom.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

// Build assembles a types.Report from a dataset's complete snapshot.
func Build(data types.CompleteGEOData) types.Report {
	r := types.Report{
		GEOID:        data.Dataset.GEOID,
		Title:        data.Dataset.Title,
		Completeness: data.Dataset.Completeness,
	}

	r.Sections = append(r.Sections, overviewSection(data))
	r.Sections = append(r.Sections, publicationsSection(data))
	if section, ok := downloadHistorySection(data); ok {
		r.Sections = append(r.Sections, section)
	}

	r.References = buildReferences(data.Publications)
	return r
}

func overviewSection(data types.CompleteGEOData) types.ReportSection {
	d := data.Dataset
	var b strings.Builder
	fmt.Fprintf(&b, "- **Organism:** %s\n", valueOr(d.Organism, "unknown"))
	fmt.Fprintf(&b, "- **Platform:** %s\n", valueOr(d.Platform, "unknown"))
	fmt.Fprintf(&b, "- **Completeness:** %s\n", d.Completeness)
	if d.Frozen {
		fmt.Fprintf(&b, "- **Status:** frozen after %d failed attempts\n", d.RetryCount)
	}
	fmt.Fprintf(&b, "- **Publications discovered:** %d\n", len(data.Publications))
	fmt.Fprintf(&b, "- **Parsed full texts:** %d\n", len(data.Parsed))
	return types.ReportSection{Title: "Overview", Body: b.String()}
}

func publicationsSection(data types.CompleteGEOData) types.ReportSection {
	pubs := append([]types.Publication(nil), data.Publications...)
	sort.SliceStable(pubs, func(i, j int) bool {
		if pubs[i].Relationship != pubs[j].Relationship {
			return pubs[i].Relationship == types.RelationOriginating
		}
		return pubs[i].Title < pubs[j].Title
	})

	var b strings.Builder
	for _, pub := range pubs {
		fmt.Fprintf(&b, "- [%s] %s (%s)", pub.Key, pub.Title, pub.Relationship)
		if pub.QualityBand != "" {
			fmt.Fprintf(&b, " — quality: %s", pub.QualityBand)
		}
		b.WriteString("\n")
	}
	return types.ReportSection{Title: "Publications", Body: b.String()}
}

func downloadHistorySection(data types.CompleteGEOData) (types.ReportSection, bool) {
	if len(data.Attempts) == 0 {
		return types.ReportSection{}, false
	}

	var b strings.Builder
	for _, a := range data.Attempts {
		fmt.Fprintf(&b, "- `%s` — %s", a.PublicationKey, a.Outcome)
		if a.Outcome == types.AttemptSucceeded {
			fmt.Fprintf(&b, " (%d bytes, sha256 %s)", a.Bytes, shortHash(a.ContentSHA256))
		} else if a.Error != "" {
			fmt.Fprintf(&b, " (%s)", a.Error)
		}
		b.WriteString("\n")
	}
	return types.ReportSection{Title: "Download History", Body: b.String()}, true
}

func buildReferences(pubs []types.Publication) []types.ReportReferenceEntry {
	refs := make([]types.ReportReferenceEntry, 0, len(pubs))
	for _, pub := range pubs {
		refs = append(refs, types.ReportReferenceEntry{
			Key:          pub.Key,
			Title:        pub.Title,
			Authors:      pub.Authors,
			Year:         pub.Date.Year(),
			Venue:        pub.Journal,
			Relationship: string(pub.Relationship),
		})
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Key < refs[j].Key })
	return refs
}

// RenderMarkdown produces the final Markdown document for a Report.
func RenderMarkdown(r types.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s — %s\n\n", r.GEOID, valueOr(r.Title, "untitled dataset"))

	for _, section := range r.Sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n", section.Title, section.Body)
	}

	if len(r.References) > 0 {
		b.WriteString("## References\n\n")
		for _, ref := range r.References {
			fmt.Fprintf(&b, "- **[%s]** %s", ref.Key, ref.Title)
			if len(ref.Authors) > 0 {
				fmt.Fprintf(&b, ", %s", strings.Join(ref.Authors, ", "))
			}
			if ref.Year > 0 {
				fmt.Fprintf(&b, " (%d)", ref.Year)
			}
			if ref.Venue != "" {
				fmt.Fprintf(&b, ". %s", ref.Venue)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}
