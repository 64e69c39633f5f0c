package micropub

// KnownAction reports whether the action is part of the protocol.
func KnownAction(action string) bool {
	switch action {
	case ActionCreate, ActionUpdate, ActionDelete, ActionUndelete:
		return true
	}
	return false
}

// replyProperties are the reply-context properties that each imply a
// post type when exactly one of them is present.
var replyProperties = []struct {
	property string
	postType string
}{
	{ReplyToProperty, TypeReply},
	{LikeOfProperty, TypeLike},
	{RepostOfProperty, TypeRepost},
}

// ClassifyPostType infers the post type of a create request from which
// recognized properties are present, returning the type and, for the
// URL-bearing types, the value promoted to the canonical url field.
func ClassifyPostType(props Properties) (postType string, targetURL string) {
	if props.Has(NameProperty) && props.Has(ContentProperty) {
		return TypeArticle, ""
	}
	if props.Has(BookmarkOfProperty) {
		return TypeBookmark, props.Scalar(BookmarkOfProperty)
	}
	var matched []int
	for i, ref := range replyProperties {
		if props.Has(ref.property) {
			matched = append(matched, i)
		}
	}
	if len(matched) == 1 {
		ref := replyProperties[matched[0]]
		return ref.postType, props.Scalar(ref.property)
	}
	return TypeNote, ""
}
