package repository

import (
	"encoding/json"
	"strings"

	"gorm.io/gorm"
)

var likeEscaper = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)

// tagPattern matches one element of a JSON string array column. The tag is
// encoded the way the column stores it and LIKE wildcards are escaped with '!'.
func tagPattern(tag string) string {
	encoded, err := json.Marshal(tag)
	if err != nil {
		encoded = []byte(`"` + tag + `"`)
	}
	return "%" + likeEscaper.Replace(string(encoded)) + "%"
}

func withTags(q *gorm.DB, tags []string) *gorm.DB {
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag == "" {
			continue
		}
		q = q.Where("tags LIKE ? ESCAPE '!'", tagPattern(tag))
	}
	return q
}
