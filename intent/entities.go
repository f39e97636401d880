package intent

import "regexp"

// Entities are structured references pulled from a query regardless of which
// intent it resolves to.
type Entities struct {
	Emails       []string
	Usernames    []string
	Repositories []string
}

var (
	emailAddrRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	usernameRe  = regexp.MustCompile(`@(\w+)`)
	repoRe      = regexp.MustCompile(`\b(\w+)/(\w+)\b`)
)

// ExtractEntities applies fixed-format expressions for email addresses,
// @-style usernames, and owner/repo references. Usernames that are part of an
// email address are not reported separately.
func ExtractEntities(query string) Entities {
	entities := Entities{
		Emails:       []string{},
		Usernames:    []string{},
		Repositories: []string{},
	}

	entities.Emails = append(entities.Emails, emailAddrRe.FindAllString(query, -1)...)

	stripped := emailAddrRe.ReplaceAllString(query, "")
	for _, m := range usernameRe.FindAllStringSubmatch(stripped, -1) {
		entities.Usernames = append(entities.Usernames, m[1])
	}

	for _, m := range repoRe.FindAllStringSubmatch(query, -1) {
		entities.Repositories = append(entities.Repositories, m[1]+"/"+m[2])
	}

	return entities
}
