package registry

import (
	"net/url"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/idna"
)

var idnaProfile = idna.Lookup

// NormalizePhone returns the E.164 form of raw, or "" when it is not a valid
// number for region.
func NormalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if region == "" {
		region = DefaultPhoneRegion
	}

	number, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return ""
	}
	if !phonenumbers.IsPossibleNumber(number) || !phonenumbers.IsValidNumber(number) {
		return ""
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// NormalizeEmail trims and lower-cases an email. Blank values become unset.
func NormalizeEmail(email NullString) NullString {
	if !email.Present() {
		return NullString{}
	}
	return StringOf(strings.ToLower(strings.TrimSpace(email.String)))
}

// NormalizeWebsite converts the host of an absolute URL to its ASCII (IDNA)
// form. Values without a scheme or that fail to parse are only trimmed.
func NormalizeWebsite(website NullString) NullString {
	if !website.Valid {
		return website
	}

	raw := strings.TrimSpace(website.String)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return StringOf(raw)
	}

	host := u.Hostname()
	ascii, err := idnaProfile.ToASCII(host)
	if err != nil {
		return StringOf(raw)
	}

	if port := u.Port(); port != "" {
		u.Host = ascii + ":" + port
	} else {
		u.Host = ascii
	}

	return StringOf(u.String())
}
