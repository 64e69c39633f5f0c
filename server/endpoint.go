package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/blturner/micropub-go/server/micropub"
	"github.com/blturner/micropub-go/server/storage"
	"github.com/blturner/micropub-go/server/telemetry"
)

// maxBodyBytes caps how much of a request body we are willing to read.
const maxBodyBytes = 1 << 20

// maxUploadBytes caps the in-memory portion of a multipart upload.
const maxUploadBytes = 32 << 20

// MicropubEndpoint handles the Micropub protocol requests for the site.
type MicropubEndpoint struct {
	config   Config
	posts    storage.Posts
	media    *MediaResolver
	verifier TokenVerifier
}

// PostHTTP handles POST requests to the endpoint: create, update,
// delete, and undelete actions in either wire encoding.
func (e *MicropubEndpoint) PostHTTP(w http.ResponseWriter, r *http.Request) {
	telemetry.Request(r, "MicropubEndpoint.PostHTTP")
	telemetry.Increment("micropub_posts", 1)

	req, files, perr := e.decode(r)
	if perr != nil {
		writeError(w, perr)
		return
	}

	auth, err := authorize(r.Context(), e.verifier, r.Header.Get("Authorization"), req.Token)
	if err != nil {
		writeError(w, micropub.AsError(err))
		return
	}

	if !micropub.KnownAction(req.Action) {
		writeError(w, micropub.InvalidRequest(fmt.Sprintf("unknown action [%s]", req.Action)))
		return
	}
	if !auth.HasScope(req.Action) {
		telemetry.Increment("scope_denials", 1)
		writeError(w, micropub.InsufficientScope(req.Action))
		return
	}

	switch req.Action {
	case micropub.ActionCreate:
		e.create(w, req, files)
	case micropub.ActionUpdate:
		e.update(w, req)
	case micropub.ActionDelete:
		e.delete(w, req)
	case micropub.ActionUndelete:
		e.undelete(w, req)
	}
}

// decode parses the request body into a normalized Micropub request,
// choosing the parsing path by content kind. Multipart photo parts are
// returned alongside for the media resolver.
func (e *MicropubEndpoint) decode(r *http.Request) (*micropub.Request, []*multipart.FileHeader, *micropub.Error) {
	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return nil, nil, micropub.InvalidRequest("could not read the request body")
		}
		req, err := micropub.ParseJSON(body)
		if err != nil {
			return nil, nil, micropub.AsError(err)
		}
		return req, nil, nil
	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, nil, micropub.InvalidRequest("could not parse the form body")
		}
		req := micropub.ParseForm(url.Values(r.MultipartForm.Value))
		return req, r.MultipartForm.File[micropub.PhotoProperty], nil
	default:
		if err := r.ParseForm(); err != nil {
			return nil, nil, micropub.InvalidRequest("could not parse the form body")
		}
		return micropub.ParseForm(r.PostForm), nil, nil
	}
}

func (e *MicropubEndpoint) create(w http.ResponseWriter, req *micropub.Request, files []*multipart.FileHeader) {
	if req.Type != "" && req.Type != micropub.EntryType {
		writeError(w, micropub.InvalidRequest(fmt.Sprintf("unsupported type [%s]", req.Type)))
		return
	}

	postType, targetURL := micropub.ClassifyPostType(req.Properties)
	if !req.Properties.Has(micropub.ContentProperty) && targetURL == "" {
		writeError(w, micropub.InvalidRequest("content, in-reply-to, like-of, bookmark-of, or repost-of are required"))
		return
	}

	slug := req.Properties.Scalar(micropub.SlugProperty)
	if slug == "" {
		slug = req.Properties.Scalar(micropub.LegacySlugProperty)
	}

	post := &storage.Post{
		PostType: postType,
		Name:     req.Properties.Scalar(micropub.NameProperty),
		Slug:     slug,
		Content:  req.Properties.Scalar(micropub.ContentProperty),
		Tags:     strings.Join(req.Properties.All(micropub.CategoryProperty), micropub.TagSeparator),
		Status:   storage.StatusPublished,
		URL:      targetURL,
	}
	if status := req.Properties.Scalar(micropub.StatusProperty); status != "" {
		post.Status = status
	}

	if req.Properties.Has(micropub.SyndicateToProperty) {
		uids := req.Properties.All(micropub.SyndicateToProperty)
		for _, uid := range uids {
			if _, ok := e.config.Target(uid); !ok {
				writeError(w, micropub.InvalidRequest(fmt.Sprintf("unknown syndication target [%s]", uid)))
				return
			}
		}
		post.SyndicateTo = strings.Join(uids, micropub.TagSeparator)
	}

	if err := e.posts.SavePost(post); err != nil {
		telemetry.Error(err, "saving post")
		writeError(w, micropub.InvalidRequest("could not save the post"))
		return
	}
	telemetry.Increment("posts_created", 1)

	// Media resolution happens after the post exists so records can be
	// linked, but a failed reference must not leave an orphaned post.
	if err := e.media.Attach(post, req.Properties[micropub.PhotoProperty], files); err != nil {
		if rerr := e.posts.RemovePost(post.Identifier); rerr != nil {
			telemetry.Error(rerr, "rolling back post [%d]", post.Identifier)
		}
		telemetry.Increment("creates_rolled_back", 1)
		writeError(w, micropub.AsError(err))
		return
	}

	w.Header().Set("Location", e.config.Permalink(micropub.PermalinkPath(post.PostType, post.Identifier)))
	w.WriteHeader(http.StatusCreated)
}

func (e *MicropubEndpoint) update(w http.ResponseWriter, req *micropub.Request) {
	post, perr := e.lookup(req.URL, false)
	if perr != nil {
		writeError(w, perr)
		return
	}

	current := micropub.Fields{
		micropub.FieldName:        post.Name,
		micropub.FieldContent:     post.Content,
		micropub.FieldTags:        post.Tags,
		micropub.FieldSlug:        post.Slug,
		micropub.FieldStatus:      post.Status,
		micropub.FieldURL:         post.URL,
		micropub.FieldSyndicateTo: post.SyndicateTo,
	}

	fields, err := req.Updates.Apply(current)
	if err != nil {
		writeError(w, micropub.AsError(err))
		return
	}

	changes := make(map[string]any)
	for name, value := range fields {
		if current[name] != value {
			changes[name] = value
		}
	}
	if len(changes) > 0 {
		if err := e.posts.UpdatePostFields(post.Identifier, changes); err != nil {
			telemetry.Error(err, "updating post [%d]", post.Identifier)
			writeError(w, micropub.InvalidRequest("could not update the post"))
			return
		}
	}
	telemetry.Increment("posts_updated", 1)
	w.WriteHeader(http.StatusNoContent)
}

func (e *MicropubEndpoint) delete(w http.ResponseWriter, req *micropub.Request) {
	post, perr := e.lookup(req.URL, false)
	if perr != nil {
		writeError(w, perr)
		return
	}
	if err := e.posts.SoftDeletePost(post.Identifier); err != nil {
		telemetry.Error(err, "deleting post [%d]", post.Identifier)
		writeError(w, micropub.InvalidRequest("could not delete the post"))
		return
	}
	telemetry.Increment("posts_deleted", 1)
	w.WriteHeader(http.StatusNoContent)
}

func (e *MicropubEndpoint) undelete(w http.ResponseWriter, req *micropub.Request) {
	post, perr := e.lookup(req.URL, true)
	if perr != nil {
		writeError(w, perr)
		return
	}
	if err := e.posts.UndeletePost(post.Identifier); err != nil {
		telemetry.Error(err, "undeleting post [%d]", post.Identifier)
		writeError(w, micropub.InvalidRequest("could not undelete the post"))
		return
	}
	telemetry.Increment("posts_undeleted", 1)
	w.WriteHeader(http.StatusNoContent)
}

// lookup resolves a post URL to a stored post. A url that doesn't
// resolve is a client error, not a 404, per Micropub convention.
func (e *MicropubEndpoint) lookup(rawurl string, includeDeleted bool) (*storage.Post, *micropub.Error) {
	if rawurl == "" {
		return nil, micropub.InvalidRequest("url is required")
	}
	identifier, err := micropub.ParsePermalink(rawurl)
	if err != nil {
		return nil, micropub.InvalidRequest("the url does not identify a post")
	}

	var post *storage.Post
	if includeDeleted {
		post, err = e.posts.FindPostAny(identifier)
	} else {
		post, err = e.posts.FindPost(identifier)
	}
	if err != nil {
		telemetry.Error(err, "finding post [%d]", identifier)
		return nil, micropub.InvalidRequest("could not load the post")
	}
	if post == nil {
		return nil, micropub.InvalidRequest("no post found for the url")
	}
	return post, nil
}

func writeError(w http.ResponseWriter, perr *micropub.Error) {
	telemetry.Increment("request_errors", 1)
	perr.WriteResponse(w)
}
