package tracking

import (
	"net/url"
	"strings"

	"chanlinks-go/internal/common/models"
)

const utmPrefix = "utm_"

// ExtractUTM picks the utm_* parameters out of a query string. Only the first
// value of a repeated key counts and empty values are ignored.
func ExtractUTM(query url.Values) models.UTMParams {
	params := models.UTMParams{}
	for key, values := range query {
		if !strings.HasPrefix(key, utmPrefix) || len(values) == 0 || values[0] == "" {
			continue
		}
		params[key] = values[0]
	}
	return params
}
