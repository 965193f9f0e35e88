package judge

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"debatebench/internal/schema"
)

// parseScores runs the multi-strategy pipeline over a judge reply:
// whole-response JSON, then the first embedded {...} block (tolerating
// YAML-flavored quoting), then regex extraction. The first strategy
// that yields scores for both sides wins.
func parseScores(raw string, dims []string) (pro, con map[string]int, ok bool) {
	if pro, con, ok = wholeJSON(raw); ok {
		return pro, con, true
	}
	if pro, con, ok = firstJSONBlock(raw); ok {
		return pro, con, true
	}
	return regexExtract(raw, dims)
}

func wholeJSON(raw string) (map[string]int, map[string]int, bool) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return nil, nil, false
	}
	return decodePayload(payload)
}

// firstJSONBlock extracts the first balanced top-level {...} substring
// and parses it, falling back from JSON to YAML to tolerate single
// quotes and unquoted keys.
func firstJSONBlock(raw string) (map[string]int, map[string]int, bool) {
	start := strings.Index(raw, "{")
	if start < 0 {
		return nil, nil, false
	}
	depth := 0
	end := -1
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return nil, nil, false
	}
	snippet := raw[start : end+1]

	var payload map[string]any
	if err := json.Unmarshal([]byte(snippet), &payload); err != nil {
		payload = nil
		if err := yaml.Unmarshal([]byte(snippet), &payload); err != nil {
			return nil, nil, false
		}
	}
	return decodePayload(payload)
}

// decodePayload accepts both {"scores": {"pro": ..., "con": ...}} and
// the flat {"pro": ..., "con": ...} shape.
func decodePayload(payload map[string]any) (map[string]int, map[string]int, bool) {
	if payload == nil {
		return nil, nil, false
	}
	if nested, ok := payload["scores"].(map[string]any); ok {
		payload = nested
	}
	pro := coerceScoreMap(payload[schema.SidePro])
	con := coerceScoreMap(payload[schema.SideCon])
	if len(pro) == 0 || len(con) == 0 {
		return nil, nil, false
	}
	return pro, con, true
}

func coerceScoreMap(v any) map[string]int {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, raw := range m {
		if n, ok := coerceInt(raw); ok {
			out[k] = n
		}
	}
	return out
}

func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return int(f), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}

var sideLabelRe = regexp.MustCompile(`(?i)\b(pro|con)\s*:`)

// regexExtract is the last-resort strategy: "<dimension> <side> <n>"
// and "<side> <dimension> <n>" patterns, then PRO:/CON: labeled blocks
// for anything still missing. Accepted only if every dimension was
// found for both sides.
func regexExtract(raw string, dims []string) (map[string]int, map[string]int, bool) {
	pro := make(map[string]int)
	con := make(map[string]int)
	sides := map[string]map[string]int{schema.SidePro: pro, schema.SideCon: con}

	for _, dim := range dims {
		d := regexp.QuoteMeta(dim)
		for side, target := range sides {
			patterns := []string{
				fmt.Sprintf(`(?i)\b%s\b\W{0,5}%s\b\D{0,10}?(-?\d+)`, d, side),
				fmt.Sprintf(`(?i)\b%s\b\W{0,5}%s\b\D{0,10}?(-?\d+)`, side, d),
			}
			for _, p := range patterns {
				if m := regexp.MustCompile(p).FindStringSubmatch(raw); m != nil {
					if n, err := strconv.Atoi(m[1]); err == nil {
						target[dim] = n
						break
					}
				}
			}
		}
	}

	// Labeled blocks fill in whatever the inline patterns missed.
	for side, block := range sideBlocks(raw) {
		target := sides[side]
		for _, dim := range dims {
			if _, done := target[dim]; done {
				continue
			}
			p := fmt.Sprintf(`(?i)\b%s\b\D{0,10}?(-?\d+)`, regexp.QuoteMeta(dim))
			if m := regexp.MustCompile(p).FindStringSubmatch(block); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil {
					target[dim] = n
				}
			}
		}
	}

	for _, dim := range dims {
		if _, ok := pro[dim]; !ok {
			return nil, nil, false
		}
		if _, ok := con[dim]; !ok {
			return nil, nil, false
		}
	}
	return pro, con, true
}

// sideBlocks segments the response at PRO:/CON: labels, mapping each
// side to the text that follows its label.
func sideBlocks(raw string) map[string]string {
	matches := sideLabelRe.FindAllStringSubmatchIndex(raw, -1)
	blocks := make(map[string]string)
	for i, m := range matches {
		side := strings.ToLower(raw[m[2]:m[3]])
		start := m[1]
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		if _, seen := blocks[side]; !seen {
			blocks[side] = raw[start:end]
		}
	}
	return blocks
}
