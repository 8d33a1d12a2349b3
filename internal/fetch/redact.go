package fetch

import (
	"errors"
	"net/url"
	"strings"
)

const redacted = "REDACTED"

// secretParams are query parameters that carry credentials.
var secretParams = []string{"access_token", "api_key", "apikey", "key", "token"}

// redact returns rawURL with credential query values replaced, for logs and
// errors. A URL that does not parse has its whole query dropped.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexByte(rawURL, '?'); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}
	if u.RawQuery == "" {
		return rawURL
	}
	q := u.Query()
	changed := false
	for key := range q {
		if isSecretParam(key) {
			q.Set(key, redacted)
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func isSecretParam(key string) bool {
	for _, s := range secretParams {
		if strings.EqualFold(key, s) {
			return true
		}
	}
	return false
}

// redactURLError scrubs the URL carried by a *url.Error, which net/http
// returns for transport and request-construction failures.
func redactURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return &url.Error{Op: ue.Op, URL: redact(ue.URL), Err: ue.Err}
	}
	return err
}
