package dxcc

// FlagEmojis maps canonical cty.dat prefixes (after alias rewrite) to an
// emoji flag. It covers the most common amateur radio entities.
var FlagEmojis = map[string]string{
	// North America
	"VE":  "🇨🇦", // Canada
	"K":   "🇺🇸", // United States
	"XE":  "🇲🇽", // Mexico
	"CO":  "🇨🇺", // Cuba
	"KG4": "🇺🇸", // Guantanamo Bay (US territory)
	"KP4": "🇵🇷", // Puerto Rico

	// South America
	"LU": "🇦🇷", // Argentina
	"PY": "🇧🇷", // Brazil
	"CX": "🇺🇾", // Uruguay
	"CE": "🇨🇱", // Chile
	"HK": "🇨🇴", // Colombia
	"OA": "🇵🇪", // Peru
	"YV": "🇻🇪", // Venezuela
	"HC": "🇪🇨", // Ecuador
	"8R": "🇬🇾", // Guyana
	"ZP": "🇵🇾", // Paraguay
	"FY": "🇬🇫", // French Guiana

	// Europe
	"PA": "🇳🇱", // Netherlands
	"OE": "🇦🇹", // Austria
	"ON": "🇧🇪", // Belgium
	"OK": "🇨🇿", // Czech Republic
	"OZ": "🇩🇰", // Denmark
	"OH": "🇫🇮", // Finland
	"F":  "🇫🇷", // France
	"DL": "🇩🇪", // Germany
	"SV": "🇬🇷", // Greece
	"HA": "🇭🇺", // Hungary
	"TF": "🇮🇸", // Iceland
	"EI": "🇮🇪", // Ireland
	"I":  "🇮🇹", // Italy
	"3A": "🇲🇨", // Monaco
	"LA": "🇳🇴", // Norway
	"SP": "🇵🇱", // Poland
	"CT": "🇵🇹", // Portugal
	"UA": "🇷🇺", // European Russia
	"EA": "🇪🇸", // Spain
	"SM": "🇸🇪", // Sweden
	"HB": "🇨🇭", // Switzerland
	"UR": "🇺🇦", // Ukraine
	"G":  "🇬🇧", // England
	"GM": "🏴󠁧󠁢󠁳󠁣󠁴󠁿", // Scotland
	"GW": "🏴󠁧󠁢󠁷󠁬󠁳󠁿", // Wales
	"LZ": "🇧🇬", // Bulgaria
	"YO": "🇷🇴", // Romania
	"TA": "🇹🇷", // Turkey
	"JW": "🇸🇯", // Svalbard

	// Asia
	"JA":  "🇯🇵", // Japan
	"BY":  "🇨🇳", // China
	"HL":  "🇰🇷", // Korea, Republic of
	"VU":  "🇮🇳", // India
	"HS":  "🇹🇭", // Thailand
	"3W":  "🇻🇳", // Vietnam
	"YB":  "🇮🇩", // Indonesia
	"DU":  "🇵🇭", // Philippines
	"9V":  "🇸🇬", // Singapore
	"9M2": "🇲🇾", // West Malaysia
	"BV":  "🇹🇼", // Taiwan
	"VR":  "🇭🇰", // Hong Kong

	// Oceania
	"VK":  "🇦🇺", // Australia
	"ZL":  "🇳🇿", // New Zealand
	"3D2": "🇫🇯", // Fiji
	"P2":  "🇵🇬", // Papua New Guinea
	"YJ":  "🇻🇺", // Vanuatu
	"FK":  "🇳🇨", // New Caledonia
	"FO":  "🇵🇫", // French Polynesia
	"KH6": "🇺🇸", // Hawaii

	// Africa
	"ZS":  "🇿🇦", // South Africa
	"SU":  "🇪🇬", // Egypt
	"5Z":  "🇰🇪", // Kenya
	"5N":  "🇳🇬", // Nigeria
	"CN":  "🇲🇦", // Morocco
	"3V":  "🇹🇳", // Tunisia
	"5R":  "🇲🇬", // Madagascar
	"FR":  "🇷🇪", // Reunion
	"3B8": "🇲🇺", // Mauritius

	// Special/Antarctic
	"CE9": "🇦🇶", // Antarctica
}

// Flag returns the emoji flag for a canonical prefix, or "" if unknown.
func Flag(prefix string) string {
	return FlagEmojis[CanonicalPrefix(prefix)]
}
