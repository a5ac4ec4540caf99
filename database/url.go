package database

import (
	"net/url"
	"strings"
)

// ConstructDatabaseURL joins a server URL with a database name. Local
// connections default to sslmode=disable unless the URL already picks a mode.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	base, query, _ := strings.Cut(strings.TrimRight(baseURL, "/"), "?")
	// Strip the trailing slash again in case the query followed one
	base = strings.TrimRight(base, "/")

	values, err := url.ParseQuery(query)
	if err != nil {
		values = url.Values{}
	}
	if values.Get("sslmode") == "" {
		values.Set("sslmode", "disable")
	}

	return base + "/" + databaseName + "?" + values.Encode()
}
