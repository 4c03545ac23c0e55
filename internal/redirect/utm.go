package redirect

import (
	"cmp"
	"net/url"
	"slices"
	"strings"

	"github.com/abdusco/linkhub/internal"
)

// MatchRule returns the rule with the longest pattern that equals param or
// is a prefix of it ending on a segment boundary. Rules with patterns of
// equal length keep their given order.
func MatchRule(param string, rules []internal.ParamUtmRule) (internal.ParamUtmRule, bool) {
	if param == "" || len(rules) == 0 {
		return internal.ParamUtmRule{}, false
	}

	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, func(a, b internal.ParamUtmRule) int {
		return cmp.Compare(len(b.ParamPattern), len(a.ParamPattern))
	})

	for _, rule := range sorted {
		if rule.ParamPattern == "" {
			continue
		}
		if param == rule.ParamPattern || strings.HasPrefix(param, rule.ParamPattern+"/") {
			return rule, true
		}
	}
	return internal.ParamUtmRule{}, false
}

// ResolveUTM applies the matching rule for param on top of the link defaults.
func ResolveUTM(defaults internal.UTM, param string, rules []internal.ParamUtmRule) internal.UTM {
	rule, ok := MatchRule(param, rules)
	if !ok {
		return defaults
	}
	return defaults.Override(rule.UTM)
}

// AppendUTM adds the set UTM values to rawURL without touching parameters
// already present in its query. The existing query is kept verbatim. If
// rawURL cannot be parsed it is returned unchanged.
func AppendUTM(rawURL string, utm internal.UTM) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	existing := u.Query()
	var added []string
	for _, p := range utm.Pairs() {
		if existing.Has(p[0]) {
			continue
		}
		added = append(added, url.QueryEscape(p[0])+"="+url.QueryEscape(p[1]))
	}
	if len(added) == 0 {
		return rawURL
	}

	encoded := strings.Join(added, "&")
	if u.RawQuery == "" {
		u.RawQuery = encoded
	} else {
		u.RawQuery = u.RawQuery + "&" + encoded
	}
	return u.String()
}
