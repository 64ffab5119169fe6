// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging writes the single-line, grep-friendly log format shared
// by every stage of the enrichment pipeline.
package logging

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Logf writes one line to w in the form:
//
//	[tag] status message (k1=v1 k2=v2)
//
// kv must contain an even number of elements, alternating key and value.
// Keys are sorted for deterministic output, matching the line format every
// stage in this pipeline emits.
func Logf(w io.Writer, tag, status, msg string, kv ...any) {
	pairs := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		pairs[key] = fmt.Sprint(kv[i+1])
	}

	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) == 0 {
		fmt.Fprintf(w, "[%s] %s %s\n", tag, status, msg)
		return
	}

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + pairs[k]
	}
	fmt.Fprintf(w, "[%s] %s %s (%s)\n", tag, status, msg, strings.Join(parts, " "))
}
