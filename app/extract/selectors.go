package extract

// Tweet page selectors.
// X changes its markup often; update these when extraction starts returning
// sentinels for pages that clearly contain a post.

const (
	// Post text
	TextStructured   = `div[data-testid="tweetText"]`
	TextLegacy       = `div.tweet-text`
	TextLegacyJS     = `div.js-tweet-text-container`
	TextStyled       = `div.css-901oao`
	TextMetaFallback = `meta[property="og:description"]`

	// Author and handle
	AuthorStructured   = `div[data-testid="User-Name"]`
	AuthorLegacy       = `div.username`
	AuthorMetaFallback = `meta[property="og:title"]`
	AuthorStyled       = `div.css-901oao`

	// Timestamp
	TimestampMachine      = `time[datetime]`
	TimestampLegacy       = `span.timestamp`
	TimestampMetaFallback = `meta[property="article:published_time"]`
	TimestampAnyTime      = `time`

	// Media
	MediaPhoto          = `img[data-testid="tweetPhoto"]`
	MediaPhotoContainer = `div[data-testid="tweetPhoto"]`
	MediaStyled         = `img.css-9pa8cd`
	MediaLegacyAdaptive = `div.AdaptiveMedia-container`
	MediaChildImage     = `img`

	// Media meta fallbacks, used only when no media element matched
	MediaOpenGraph       = `meta[property="og:image"]`
	MediaTwitterCard     = `meta[property="twitter:image"]`
	MediaTwitterCardName = `meta[name="twitter:image"]`
)

// Sentinels for fields the cascades could not fill.
const (
	TextNotFound     = "not found"
	UnknownAuthor    = "Unknown"
	UnknownTimestamp = "Unknown"
)

// rejectedMediaPatterns mark non-content imagery (profile photos, icons, ...).
var rejectedMediaPatterns = []string{
	"profile_images",
	"/profile/",
	"twimg.com/profile",
	"default_profile",
	"avatar",
	"emoji",
	".svg",
	"favicon",
	"logo",
}

var textCascade = Cascade{
	Field:  "text",
	Policy: FirstMatch,
	Selectors: []Selector{
		{Query: TextStructured, Value: ContentOrText},
		{Query: TextLegacy, Value: ContentOrText},
		{Query: TextLegacyJS, Value: ContentOrText},
		{Query: TextStyled, Value: ContentOrText},
		{Query: TextMetaFallback, Value: ContentOrText},
	},
}

var authorCascade = Cascade{
	Field:  "author",
	Policy: FirstMatch,
	Selectors: []Selector{
		{Query: AuthorStructured, Value: ContentOrText},
		{Query: AuthorLegacy, Value: ContentOrText},
		{Query: AuthorMetaFallback, Value: ContentOrText},
		{Query: AuthorStyled, Value: ContentOrText},
	},
}

var timestampCascade = Cascade{
	Field:  "timestamp",
	Policy: FirstMatch,
	Selectors: []Selector{
		{Query: TimestampMachine, Value: DatetimeOrContentOrText},
		{Query: TimestampLegacy, Value: DatetimeOrContentOrText},
		{Query: TimestampMetaFallback, Value: DatetimeOrContentOrText},
		{Query: TimestampAnyTime, Value: DatetimeOrContentOrText},
	},
}

var mediaCascade = Cascade{
	Field:  "media",
	Policy: UnionAll,
	Selectors: []Selector{
		{Query: MediaPhoto, Value: Src},
		{Query: MediaPhotoContainer, Child: MediaChildImage, Value: Src},
		{Query: MediaStyled, Value: Src},
		{Query: MediaLegacyAdaptive, Child: MediaChildImage, Value: Src},
	},
	Accept: normalizeMediaURL,
}

var mediaMetaCascade = Cascade{
	Field:  "media_meta",
	Policy: FirstMatch,
	Selectors: []Selector{
		{Query: MediaOpenGraph, Value: Content},
		{Query: MediaTwitterCard, Value: Content},
		{Query: MediaTwitterCardName, Value: Content},
	},
	Accept: normalizeMediaURL,
}
