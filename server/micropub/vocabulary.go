package micropub

// Micropub and Microformats2 vocabulary

// Wire property names
const (
	NameProperty        = "name"
	ContentProperty     = "content"
	CategoryProperty    = "category"
	PhotoProperty       = "photo"
	SlugProperty        = "mp-slug"
	LegacySlugProperty  = "post-slug"
	StatusProperty      = "post-status"
	SyndicateToProperty = "mp-syndicate-to"
	ReplyToProperty     = "in-reply-to"
	LikeOfProperty      = "like-of"
	RepostOfProperty    = "repost-of"
	BookmarkOfProperty  = "bookmark-of"
)

// Store field names the wire properties translate to
const (
	FieldName        = "name"
	FieldContent     = "content"
	FieldTags        = "tags"
	FieldSlug        = "slug"
	FieldStatus      = "status"
	FieldURL         = "url"
	FieldSyndicateTo = "syndicate_to"
)

// Protocol actions
const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionUndelete = "undelete"
)

// Post types
const (
	TypeNote     = "note"
	TypeArticle  = "article"
	TypeReply    = "reply"
	TypeLike     = "like"
	TypeRepost   = "repost"
	TypeBookmark = "bookmark"
	TypeRSVP     = "rsvp"
)

// EntryType is the only Microformats2 object type this endpoint accepts.
const EntryType = "h-entry"

// TagSeparator joins a multi-valued tag list into the single stored string.
const TagSeparator = ", "

// wireFields maps wire property names to store field names.
var wireFields = map[string]string{
	NameProperty:        FieldName,
	ContentProperty:     FieldContent,
	CategoryProperty:    FieldTags,
	SlugProperty:        FieldSlug,
	LegacySlugProperty:  FieldSlug,
	StatusProperty:      FieldStatus,
	SyndicateToProperty: FieldSyndicateTo,
	ReplyToProperty:     FieldURL,
	LikeOfProperty:      FieldURL,
	RepostOfProperty:    FieldURL,
	BookmarkOfProperty:  FieldURL,
}

// FieldFor translates a wire property name to its store field name.
func FieldFor(name string) (string, bool) {
	field, ok := wireFields[name]
	return field, ok
}

// plurals maps a post type to its permalink path segment.
var plurals = map[string]string{
	TypeNote:     "notes",
	TypeArticle:  "articles",
	TypeReply:    "replies",
	TypeLike:     "likes",
	TypeRepost:   "reposts",
	TypeBookmark: "bookmarks",
	TypeRSVP:     "rsvps",
}

// Plural returns the permalink path segment for a post type.
func Plural(postType string) string {
	if p, ok := plurals[postType]; ok {
		return p
	}
	return postType + "s"
}
