package app

import (
	"net/url"
	"strings"
)

// normalizeDBURL appends disable_prepared_binary_result=yes when the
// deployment asks for it and the DSN does not set it already. Some managed
// Postgres poolers reject the binary result protocol on prepared statements.
func normalizeDBURL(raw string, disablePreparedBinaryResult bool) string {
	if !disablePreparedBinaryResult {
		return raw
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil {
		return raw
	}

	query := parsed.Query()
	if query.Get("disable_prepared_binary_result") == "" {
		query.Set("disable_prepared_binary_result", "yes")
		parsed.RawQuery = query.Encode()
	}

	return parsed.String()
}

// dbNameFromURL extracts the database name from a URL-style or key=value
// style DSN for trace attributes. Returns "" when no name is present.
func dbNameFromURL(raw string) string {
	trimmed := strings.TrimSpace(raw)

	parsed, err := url.Parse(trimmed)
	if err == nil && parsed != nil && parsed.Scheme != "" {
		name := strings.TrimSpace(strings.TrimPrefix(parsed.Path, "/"))
		if name != "" {
			return name
		}
	}

	for _, token := range strings.Fields(trimmed) {
		if !strings.HasPrefix(token, "dbname=") {
			continue
		}
		name := strings.Trim(strings.TrimPrefix(token, "dbname="), `"'`)
		if name != "" {
			return name
		}
	}

	return ""
}
