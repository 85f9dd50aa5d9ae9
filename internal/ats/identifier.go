package ats

import (
	"net/url"
	"regexp"
	"strings"
)

// PlatformUnknown is returned when no known ATS pattern matches.
const PlatformUnknown = "unknown"

type platformPatterns struct {
	name     string
	patterns []*regexp.Regexp
}

// Patterns are checked in order; the first platform with any matching
// pattern wins. Matching runs against the lowercased host+path with a
// leading "www." stripped.
var knownPlatforms = []platformPatterns{
	{"greenhouse", compile(`boards\.greenhouse\.io`, `greenhouse\.io/embed`)},
	{"lever", compile(`jobs\.lever\.co`, `lever\.co/apply`)},
	{"ashbyhq", compile(`jobs\.ashbyhq\.com`)},
	// Workday can be tricky due to custom subdomains
	{"workday", compile(`\.wd[0-9]+\.myworkdayjobs\.com`, `myworkdayjobs\.com`, `workday\.com/.*careers`, `workday\.com/.*jobs`)},
	{"bamboohr", compile(`\.bamboohr\.com/careers`, `\.bamboohr\.com/jobs`)},
	{"icims", compile(`icims\.com`)},
	{"smartrecruiters", compile(`smartrecruiters\.com`)},
	{"taleo", compile(`taleo\.net`)},
	{"jobvite", compile(`jobs\.jobvite\.com`)},
	// Oracle tenant hosts look like <tenant>.fa.<region>.oraclecloud.com
	{"oraclecloud", compile(`fa\.[a-z0-9]+\.oraclecloud\.com`, `fa\.oraclecloud\.com`, `oraclecloud\.com/hcmui/candidateexperience`)},
	{"sap_successfactors", compile(`successfactors\.com`, `sf\.careers`)},
}

func compile(exprs ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		compiled[i] = regexp.MustCompile(e)
	}
	return compiled
}

// Identify maps an application URL to an ATS platform name.
// Parameters:
//   - rawURL: the application URL to classify.
// Returns:
//   - string: lowercase platform name, or PlatformUnknown if no pattern matches
//     or the URL cannot be parsed. Never returns an error; unknown is a valid,
//     non-fatal outcome.
func Identify(rawURL string) string {
	if rawURL == "" {
		return PlatformUnknown
	}

	parsed, err := url.Parse(strings.ToLower(rawURL))
	if err != nil {
		return PlatformUnknown
	}
	hostPath := strings.TrimPrefix(parsed.Host, "www.") + parsed.Path

	for _, p := range knownPlatforms {
		for _, re := range p.patterns {
			if re.MatchString(hostPath) {
				return p.name
			}
		}
	}
	return PlatformUnknown
}
