package discovery

import "strings"

// categoryTable classifies a chain name into its resource category.
var categoryTable = map[string][]string{
	"l1":          {"bitcoin", "avalanche", "near", "flow", "stellar", "ton", "aleo", "aptos", "movement"},
	"evm":         {"ethereum", "arbitrum", "optimism", "polygon", "base", "bsc", "gnosis", "mantle", "blast", "aurora", "boba", "ronin", "ink", "swell", "kaia", "rise", "monad", "core", "mezo"},
	"ibc":         {"cosmos", "osmosis", "terra", "thorchain", "axelar", "maya"},
	"svm":         {"solana", "eclipse"},
	"multi-chain": {"crosschain", "external"},
	"internal":    {"kairos"},
}

// abbrevTable holds well-known short names added as aliases.
var abbrevTable = map[string][]string{
	"bitcoin":   {"btc"},
	"ethereum":  {"eth"},
	"polygon":   {"matic", "poly"},
	"avalanche": {"avax"},
	"bsc":       {"bnb", "binance"},
	"solana":    {"sol"},
	"arbitrum":  {"arb"},
	"optimism":  {"op"},
}

// baseName strips the repository suffix from a repo name.
func baseName(repoName, suffix string) string {
	return strings.TrimSuffix(repoName, suffix)
}

// displayName generates a human-readable name from a repo name.
func displayName(repoName, suffix string) string {
	if strings.HasSuffix(repoName, suffix) {
		return titleCase(baseName(repoName, suffix)) + " Models"
	}
	return titleCase(strings.ReplaceAll(repoName, "-", " "))
}

// categorize maps a chain name to its category, "unknown" when unlisted.
func categorize(base string) string {
	lower := strings.ToLower(base)
	for category, chains := range categoryTable {
		for _, c := range chains {
			if lower == c {
				return category
			}
		}
	}
	return "unknown"
}

// aliases generates the alias set for a discovered repo: the base name, its
// underscore/dash variants, and any well-known abbreviations. The repo name
// itself is the resource id and needs no alias.
func aliases(repoName, suffix string) []string {
	var out []string
	seen := map[string]bool{strings.ToLower(repoName): true}
	add := func(a string) {
		lower := strings.ToLower(a)
		if !seen[lower] {
			seen[lower] = true
			out = append(out, a)
		}
	}

	base := baseName(repoName, suffix)
	if base != repoName {
		add(base)
		add(base + "_models")
		add(base + "-models")
	}
	for _, abbr := range abbrevTable[strings.ToLower(base)] {
		add(abbr)
	}
	return out
}

func titleCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '-' || r == '_' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
