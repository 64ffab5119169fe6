// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify assigns a type and priority boost to a candidate
// full-text URL without making any network calls.
//
// See SPEC_FULL.md § 4.2.
package classify

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/geo-enrich/pkg/types"
)

// Boost values applied on top of a source's base priority, per URL type.
const (
	BoostDirectPDF   = -2
	BoostHTMLFull    = 0
	BoostLandingPage = 1
	BoostDOIResolver = 3
	BoostUnknown     = 1
)

// directPDFPattern matches URLs that plausibly serve a PDF directly: a
// ".pdf" extension, or a host-specific PDF endpoint path.
var directPDFPattern = regexp.MustCompile(`(?i)(\.pdf(\?.*)?$|/pdf/|pdfft\?|type=printable)`)

// doiResolverPattern matches doi.org and dx.doi.org resolver links.
var doiResolverPattern = regexp.MustCompile(`(?i)^https?://(dx\.)?doi\.org/`)

// htmlFullTextHosts are hosts known to serve readable HTML full text rather
// than a PDF or a bare landing page.
var htmlFullTextHosts = []string{
	"ncbi.nlm.nih.gov/pmc",
	"pmc.ncbi.nlm.nih.gov",
	"europepmc.org/article",
	"biorxiv.org/content",
}

// pmcHostPattern recognizes both the legacy and current PMC hosts.
var pmcHostPattern = regexp.MustCompile(`(?i)^(www\.)?(ncbi\.nlm\.nih\.gov/pmc|pmc\.ncbi\.nlm\.nih\.gov)`)

// IsPMCHost reports whether rawURL points at PubMed Central, under either
// its legacy ncbi.nlm.nih.gov/pmc path or its modern pmc.ncbi.nlm.nih.gov
// host. Kept alongside Classify so the two host tables cannot drift apart.
func IsPMCHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Host
	if u.Path != "" {
		host = host + u.Path
	}
	return pmcHostPattern.MatchString(strings.TrimPrefix(host, "www."))
}

// Classify determines the URLType of rawURL and the priority boost that
// type earns (lower boost values sort earlier in the download waterfall).
func Classify(rawURL string) (types.URLType, int) {
	switch {
	case directPDFPattern.MatchString(rawURL):
		return types.URLDirectPDF, BoostDirectPDF
	case doiResolverPattern.MatchString(rawURL):
		return types.URLDOIResolver, BoostDOIResolver
	case hasAnyHost(rawURL, htmlFullTextHosts):
		return types.URLHTMLFullText, BoostHTMLFull
	default:
		u, err := url.Parse(rawURL)
		if err != nil || u.Scheme == "" {
			return types.URLUnknown, BoostUnknown
		}
		return types.URLLandingPage, BoostLandingPage
	}
}

func hasAnyHost(rawURL string, needles []string) bool {
	lower := strings.ToLower(rawURL)
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}
