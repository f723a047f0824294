package store

import (
	"strings"

	"github.com/snapetech/chancat/internal/catalog"
)

// Filter describes a dynamic channel query. Zero-valued fields are not
// applied; all applied conditions AND together. Count and Query build their
// WHERE clause from the same Filter, so a count always agrees with the rows
// the matching Query would return.
type Filter struct {
	// Name supports three expression forms, detected in this order:
	//   "a AND b"  — every term must appear
	//   "a OR b"   — at least one term must appear
	//   "NOT a"    — the term must not appear
	// Anything else is a plain case-insensitive substring.
	Name string

	// Group is a case-insensitive substring; "a|b|c" matches any of the
	// pipe-separated alternatives.
	Group string

	// Resolution is a quality bucket (SD, HD, FHD, 4K, case-insensitive)
	// resolved against the stored resolution markers. An unrecognized value
	// falls back to a raw substring match.
	Resolution string

	// Reachable, when non-nil, matches the exact probe state, including
	// ReachUnknown for never-probed channels.
	Reachable *catalog.Reachability

	// HasGuideData, when non-nil, matches on guide linkage.
	HasGuideData *bool
}

// whereClause renders the filter as a SQL WHERE fragment (with leading
// " WHERE ", or "" when no condition applies) plus its bind arguments.
func (f Filter) whereClause() (string, []any) {
	var conds []string
	var args []any

	if c, a := nameCond(f.Name); c != "" {
		conds, args = append(conds, c), append(args, a...)
	}
	if c, a := groupCond(f.Group); c != "" {
		conds, args = append(conds, c), append(args, a...)
	}
	if c, a := resolutionCond(f.Resolution); c != "" {
		conds, args = append(conds, c), append(args, a...)
	}
	if f.Reachable != nil {
		conds = append(conds, "reachable = ?")
		args = append(args, int(*f.Reachable))
	}
	if f.HasGuideData != nil {
		conds = append(conds, "has_guide_data = ?")
		args = append(args, boolToInt(*f.HasGuideData))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func containsName() string { return "instr(lower(name), lower(?)) > 0" }

func nameCond(expr string) (string, []any) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", nil
	}
	switch {
	case strings.Contains(expr, " AND "):
		terms := splitTerms(expr, " AND ")
		conds := make([]string, 0, len(terms))
		args := make([]any, 0, len(terms))
		for _, t := range terms {
			conds = append(conds, containsName())
			args = append(args, t)
		}
		return "(" + strings.Join(conds, " AND ") + ")", args
	case strings.Contains(expr, " OR "):
		terms := splitTerms(expr, " OR ")
		conds := make([]string, 0, len(terms))
		args := make([]any, 0, len(terms))
		for _, t := range terms {
			conds = append(conds, containsName())
			args = append(args, t)
		}
		return "(" + strings.Join(conds, " OR ") + ")", args
	case strings.HasPrefix(expr, "NOT "):
		term := strings.TrimSpace(strings.TrimPrefix(expr, "NOT "))
		if term == "" {
			return "", nil
		}
		return "instr(lower(name), lower(?)) = 0", []any{term}
	default:
		return containsName(), []any{expr}
	}
}

func splitTerms(expr, sep string) []string {
	var out []string
	for _, t := range strings.Split(expr, sep) {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func groupCond(expr string) (string, []any) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", nil
	}
	var conds []string
	var args []any
	for _, alt := range strings.Split(expr, "|") {
		if alt = strings.TrimSpace(alt); alt == "" {
			continue
		}
		conds = append(conds, "instr(lower(grp), lower(?)) > 0")
		args = append(args, alt)
	}
	if len(conds) == 0 {
		return "", nil
	}
	if len(conds) == 1 {
		return conds[0], args
	}
	return "(" + strings.Join(conds, " OR ") + ")", args
}

// hdMarkers are the stored resolution markers that indicate at least 720p.
var hdMarkers = []string{"720p", "1080p", "2160p", "hd", "fhd", "uhd", "4k"}

func resolutionCond(bucket string) (string, []any) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return "", nil
	}
	anyMarker := func(markers ...string) (string, []any) {
		conds := make([]string, 0, len(markers))
		args := make([]any, 0, len(markers))
		for _, m := range markers {
			conds = append(conds, "instr(lower(resolution), ?) > 0")
			args = append(args, m)
		}
		return "(" + strings.Join(conds, " OR ") + ")", args
	}
	switch strings.ToUpper(bucket) {
	case "4K":
		return anyMarker("2160p", "4k", "uhd")
	case "FHD":
		return anyMarker("1080p", "fhd")
	case "HD":
		return anyMarker("720p", "1080p", "hd", "fhd")
	case "SD":
		// Explicit SD markers, or nothing identifying HD quality at all.
		c, a := anyMarker(hdMarkers...)
		sd, sdArgs := anyMarker("480p", "576p", "sd")
		cond := "(" + sd + " OR NOT " + c + ")"
		return cond, append(sdArgs, a...)
	default:
		return "instr(lower(resolution), lower(?)) > 0", []any{bucket}
	}
}
