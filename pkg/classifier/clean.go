package classifier

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ArionMiles/beanbill/pkg/api"
)

var quoteStripper = strings.NewReplacer(
	`"`, "", "'", "", "`", "",
	"“", "", "”", "", "‘", "", "’", "",
	"「", "", "」", "", "《", "", "》", "",
	"。", "", "，", "",
)

// Clean reduces a model answer to a bare account name: the first non-empty
// line outside any code fence, without quotes or trailing punctuation.
func Clean(answer string) string {
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		line = quoteStripper.Replace(line)
		line = strings.TrimRight(line, ".,;:：；、 ")
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

// Degrade picks the fallback account: the first sorted allowed account with
// prefix, else the first sorted account overall.
func Degrade(allowed []string, prefix string) (string, error) {
	sorted := sortedUnique(allowed)
	if len(sorted) == 0 {
		return "", fmt.Errorf("%w: no allowed accounts to fall back to", api.ErrClassification)
	}
	for _, acct := range sorted {
		if strings.HasPrefix(acct, prefix) {
			return acct, nil
		}
	}
	return sorted[0], nil
}

func sortedUnique(accounts []string) []string {
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
