package gemini

import (
	"strings"

	"github.com/spigell/resume-ranker/internal/records"
)

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	// Tolerate prose around the object.
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start > 0 && end > start {
		raw = raw[start : end+1]
	}
	return raw
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func trimSkills(skills []records.Skill) []records.Skill {
	out := make([]records.Skill, 0, len(skills))
	for _, s := range skills {
		if s.SkillName = strings.TrimSpace(s.SkillName); s.SkillName != "" {
			out = append(out, s)
		}
	}
	return out
}
