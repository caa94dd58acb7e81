package tracking

import (
	"net/url"
	"strings"
)

// DeepLink builds the Mini App deep link that hands the token to the bot
func DeepLink(botUsername, token string) string {
	return "https://t.me/" + strings.TrimPrefix(botUsername, "@") + "/app?startapp=" + url.QueryEscape(token)
}
