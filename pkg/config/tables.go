package config

// ClassificationTables holds the static country classifications used by the
// rarity classifier and the geography categories. They are plain data so
// callers (and tests) can substitute their own.
type ClassificationTables struct {
	// Geopolitical factor 3.
	ConflictAuthoritarian []string `yaml:"conflict_authoritarian"`
	// Geopolitical factor 2.
	IslandLandlockedDeveloping []string `yaml:"island_landlocked_developing"`
	// Geopolitical factor 1.
	Developing []string `yaml:"developing"`

	// Regional factor 2.
	UnderrepresentedRegions []string `yaml:"underrepresented_regions"`
	// Regional factor 1.
	EmergingRegions []string `yaml:"emerging_regions"`

	EU []string `yaml:"eu"`
}

func DefaultTables() *ClassificationTables {
	return &ClassificationTables{
		ConflictAuthoritarian: []string{
			"af", "by", "cd", "cf", "cn", "cu", "er", "et", "ir", "iq", "kp", "lb", "ly", "ml",
			"mm", "ni", "ps", "ru", "sd", "so", "ss", "sy", "tm", "ua", "ve", "ye",
		},
		IslandLandlockedDeveloping: []string{
			"bf", "bi", "bo", "bt", "bw", "fj", "ht", "jm", "kg", "ki", "km", "la", "ls", "mg",
			"mn", "mu", "mv", "mw", "ne", "np", "pg", "py", "rw", "sb", "sz", "td", "tj", "tl",
			"to", "tt", "tv", "ug", "uz", "vu", "ws", "zm", "zw",
		},
		Developing: []string{
			"al", "am", "ao", "az", "ba", "bd", "bj", "cm", "co", "dz", "ec", "eg", "ge", "gh",
			"gt", "hn", "id", "in", "jo", "ke", "kh", "lk", "ma", "md", "me", "mk", "mz", "ng",
			"pe", "ph", "pk", "rs", "sn", "sv", "tn", "tz", "vn",
		},
		UnderrepresentedRegions: []string{
			// Africa
			"ao", "bf", "bi", "bj", "bw", "cd", "cf", "cm", "dz", "eg", "er", "et", "gh", "km",
			"ke", "ls", "ly", "ma", "mg", "ml", "mu", "mw", "mz", "na", "ne", "ng", "rw", "sd",
			"sn", "so", "ss", "sz", "td", "tn", "tz", "ug", "zm", "zw",
			// Central Asia
			"kg", "kz", "tj", "tm", "uz",
			// Pacific islands
			"fj", "ki", "pg", "sb", "to", "tv", "vu", "ws",
		},
		EmergingRegions: []string{
			// Latin America
			"ar", "bo", "br", "cl", "co", "cr", "do", "ec", "gt", "hn", "jm", "mx", "ni", "pa",
			"pe", "py", "sv", "tt", "uy", "ve",
			// South and Southeast Asia
			"bd", "bt", "id", "kh", "la", "lk", "mm", "my", "np", "ph", "pk", "th", "tl", "vn",
		},
		EU: []string{
			"at", "be", "bg", "cy", "cz", "de", "dk", "ee", "es", "fi", "fr", "gr", "hr", "hu",
			"ie", "it", "lt", "lu", "lv", "mt", "nl", "pl", "pt", "ro", "se", "si", "sk",
		},
	}
}

// DefaultJurisdictions returns the intelligence-sharing alliances used for
// jurisdiction clustering, keyed by display name.
func DefaultJurisdictions() map[string][]string {
	return map[string][]string{
		"Five Eyes":     {"au", "ca", "gb", "nz", "us"},
		"Nine Eyes":     {"au", "ca", "dk", "fr", "gb", "nl", "no", "nz", "us"},
		"Fourteen Eyes": {"au", "be", "ca", "de", "dk", "es", "fr", "gb", "it", "nl", "no", "nz", "se", "us"},
	}
}
