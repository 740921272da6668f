package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var placeholderPattern = regexp.MustCompile(`\{\{(\w+(?:\.\w+)*)\}\}`)

// Substitute replaces every {{dotted.path}} placeholder in template with the value found by
// walking data. Unresolvable placeholders are left verbatim. Substituted values are not rescanned.
func Substitute(template string, data map[string]any) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		path := token[2 : len(token)-2]
		value, ok := lookupPath(data, strings.Split(path, "."))
		if !ok {
			return token
		}
		return stringify(value)
	})
}

// lookupPath walks segments through nested maps. A missing key, a non-map intermediate
// or a nil leaf reports ok=false.
func lookupPath(data map[string]any, segments []string) (any, bool) {
	var current any = data
	for _, segment := range segments {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		default:
			return nil, false
		}
		if current == nil {
			return nil, false
		}
	}
	return current, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case *string:
		if v == nil {
			return ""
		}
		return *v
	default:
		return fmt.Sprint(v)
	}
}
