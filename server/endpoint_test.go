package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/blturner/micropub-go/server/micropub"
	"github.com/blturner/micropub-go/server/storage"
)

const testIdentifier = int64(1552000000)

func newTestEndpoint(posts *mockPosts, media *mockMedia, scope string) *MicropubEndpoint {
	cfg := Config{
		URL:   "https://example.com",
		Media: mediaConfig{Dir: "uploads", URLPath: "/uploads/"},
		Targets: []SyndicationTarget{
			{UID: "https://mastodon.example/@ben", Name: "Mastodon"},
		},
	}
	verifier := &stubVerifier{
		auth: Authorization{Me: "https://example.com/", Scope: strings.Fields(scope)},
	}
	return &MicropubEndpoint{
		config:   cfg,
		posts:    posts,
		media:    NewMediaResolver(cfg, media, posts, verifier),
		verifier: verifier,
	}
}

// stampIdentifier mimics what the real store does on save.
func stampIdentifier(args mock.Arguments) {
	p := args.Get(0).(*storage.Post)
	p.CreatedAt = time.Unix(testIdentifier, 0).UTC()
	p.Identifier = testIdentifier
}

func postJSON(endpoint *MicropubEndpoint, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest("POST", "/micropub", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Authorization", "Bearer 123")
	w := httptest.NewRecorder()
	endpoint.PostHTTP(w, r)
	return w
}

func postForm(endpoint *MicropubEndpoint, values url.Values, bearer bool) *httptest.ResponseRecorder {
	r := httptest.NewRequest("POST", "/micropub", strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if bearer {
		r.Header.Set("Authorization", "Bearer 123")
	}
	w := httptest.NewRecorder()
	endpoint.PostHTTP(w, r)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) micropub.Error {
	t.Helper()
	var perr micropub.Error
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &perr))
	return perr
}

func TestCreate_JSON(t *testing.T) {
	posts := &mockPosts{}
	var saved *storage.Post
	posts.On("SavePost", mock.Anything).Run(func(args mock.Arguments) {
		stampIdentifier(args)
		saved = args.Get(0).(*storage.Post)
	}).Return(nil).Once()

	endpoint := newTestEndpoint(posts, &mockMedia{}, "create")
	w := postJSON(endpoint, `{"type":["h-entry"],"properties":{"content":["bananas"]}}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "https://example.com/notes/1552000000/", w.Header().Get("Location"))
	require.NotNil(t, saved)
	assert.Equal(t, "bananas", saved.Content)
	assert.Equal(t, micropub.TypeNote, saved.PostType)
	assert.Equal(t, storage.StatusPublished, saved.Status)
	posts.AssertExpectations(t)
}

func TestCreate_Form(t *testing.T) {
	posts := &mockPosts{}
	var saved *storage.Post
	posts.On("SavePost", mock.Anything).Run(func(args mock.Arguments) {
		stampIdentifier(args)
		saved = args.Get(0).(*storage.Post)
	}).Return(nil).Once()

	endpoint := newTestEndpoint(posts, &mockMedia{}, "create")
	w := postForm(endpoint, url.Values{
		"h":          {"entry"},
		"content":    {"a post with some tags"},
		"category[]": {"apple", "orange"},
	}, true)

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, saved)
	assert.Equal(t, "apple, orange", saved.Tags)
	posts.AssertExpectations(t)
}

func TestCreate_Article(t *testing.T) {
	posts := &mockPosts{}
	var saved *storage.Post
	posts.On("SavePost", mock.Anything).Run(func(args mock.Arguments) {
		stampIdentifier(args)
		saved = args.Get(0).(*storage.Post)
	}).Return(nil).Once()

	endpoint := newTestEndpoint(posts, &mockMedia{}, "create")
	w := postJSON(endpoint, `{"type":["h-entry"],"properties":{
		"name":["hello world"],
		"content":["post body"],
		"mp-slug":["hello-world"]
	}}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "https://example.com/articles/1552000000/", w.Header().Get("Location"))
	require.NotNil(t, saved)
	assert.Equal(t, micropub.TypeArticle, saved.PostType)
	assert.Equal(t, "hello-world", saved.Slug)
}

func TestCreate_Reply(t *testing.T) {
	posts := &mockPosts{}
	var saved *storage.Post
	posts.On("SavePost", mock.Anything).Run(func(args mock.Arguments) {
		stampIdentifier(args)
		saved = args.Get(0).(*storage.Post)
	}).Return(nil).Once()

	endpoint := newTestEndpoint(posts, &mockMedia{}, "create")
	w := postJSON(endpoint, `{"type":["h-entry"],"properties":{"in-reply-to":["https://example.org/post"]}}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, saved)
	assert.Equal(t, micropub.TypeReply, saved.PostType)
	assert.Equal(t, "https://example.org/post", saved.URL)
}

func TestCreate_InsufficientScope(t *testing.T) {
	posts := &mockPosts{}
	endpoint := newTestEndpoint(posts, &mockMedia{}, "")

	w := postJSON(endpoint, `{"type":["h-entry"],"properties":{"content":["bananas"]}}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
	perr := decodeError(t, w)
	assert.Equal(t, micropub.CodeInsufficientScope, perr.Code)
	assert.Equal(t, "create", perr.Scope)
	posts.AssertNotCalled(t, "SavePost", mock.Anything)
}

func TestCreate_ConflictingCredentials(t *testing.T) {
	posts := &mockPosts{}
	endpoint := newTestEndpoint(posts, &mockMedia{}, "create")

	w := postForm(endpoint, url.Values{
		"h":            {"entry"},
		"content":      {"bananas"},
		"access_token": {"456"},
	}, true)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, micropub.CodeInvalidRequest, decodeError(t, w).Code)
	posts.AssertNotCalled(t, "SavePost", mock.Anything)
}

func TestCreate_MissingContent(t *testing.T) {
	endpoint := newTestEndpoint(&mockPosts{}, &mockMedia{}, "create")
	w := postJSON(endpoint, `{"type":["h-entry"],"properties":{"mp-slug":["empty"]}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	perr := decodeError(t, w)
	assert.Contains(t, perr.Description, "content")
}

func TestCreate_UnsupportedType(t *testing.T) {
	endpoint := newTestEndpoint(&mockPosts{}, &mockMedia{}, "create")
	w := postJSON(endpoint, `{"type":["h-event"],"properties":{"content":["a party"]}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreate_UnknownSyndicationTarget(t *testing.T) {
	posts := &mockPosts{}
	endpoint := newTestEndpoint(posts, &mockMedia{}, "create")
	w := postJSON(endpoint, `{"type":["h-entry"],"properties":{
		"content":["bananas"],
		"mp-syndicate-to":["https://nowhere.example/feed"]
	}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	posts.AssertNotCalled(t, "SavePost", mock.Anything)
}

func TestCreate_MediaRollback(t *testing.T) {
	posts := &mockPosts{}
	posts.On("SavePost", mock.Anything).Run(stampIdentifier).Return(nil).Once()
	posts.On("RemovePost", testIdentifier).Return(nil).Once()

	media := &mockMedia{}
	media.On("FindMediaByFile", "missing.jpg").Return(nil, nil).Once()

	endpoint := newTestEndpoint(posts, media, "create")
	w := postJSON(endpoint, `{"type":["h-entry"],"properties":{
		"content":["a photo"],
		"photo":["https://example.com/uploads/missing.jpg"]
	}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Media does not exist", decodeError(t, w).Description)
	posts.AssertExpectations(t)
	media.AssertExpectations(t)
}

func TestCreate_PhotoReference(t *testing.T) {
	record := &storage.Media{ID: 7, File: "abc-cat.jpg"}

	posts := &mockPosts{}
	posts.On("SavePost", mock.Anything).Run(stampIdentifier).Return(nil).Once()
	posts.On("AttachMedia", mock.Anything, record).Return(nil).Once()

	media := &mockMedia{}
	media.On("FindMediaByFile", "abc-cat.jpg").Return(record, nil).Once()

	endpoint := newTestEndpoint(posts, media, "create")
	w := postJSON(endpoint, `{"type":["h-entry"],"properties":{
		"content":["a photo"],
		"photo":["https://example.com/uploads/abc-cat.jpg"]
	}}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	posts.AssertExpectations(t)
	media.AssertExpectations(t)
}

func TestUpdate_ReplaceContent(t *testing.T) {
	posts := &mockPosts{}
	posts.On("FindPost", testIdentifier).Return(&storage.Post{
		Identifier: testIdentifier,
		PostType:   micropub.TypeNote,
		Name:       "first post",
		Content:    "hello world",
		Status:     storage.StatusPublished,
	}, nil).Once()
	posts.On("UpdatePostFields", testIdentifier, map[string]any{
		"content": "hello moon",
	}).Return(nil).Once()

	endpoint := newTestEndpoint(posts, &mockMedia{}, "update")
	w := postJSON(endpoint, `{
		"action": "update",
		"url": "https://example.com/notes/1552000000/",
		"replace": {"content": ["hello moon"]}
	}`)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Location"))
	posts.AssertExpectations(t)
}

func TestUpdate_AddCategory(t *testing.T) {
	posts := &mockPosts{}
	posts.On("FindPost", testIdentifier).Return(&storage.Post{
		Identifier: testIdentifier,
		Tags:       "test1",
		Status:     storage.StatusPublished,
	}, nil).Once()
	posts.On("UpdatePostFields", testIdentifier, map[string]any{
		"tags": "test1, test2",
	}).Return(nil).Once()

	endpoint := newTestEndpoint(posts, &mockMedia{}, "update")
	w := postJSON(endpoint, `{
		"action": "update",
		"url": "https://example.com/notes/1552000000/",
		"add": {"category": ["test2"]}
	}`)

	assert.Equal(t, http.StatusNoContent, w.Code)
	posts.AssertExpectations(t)
}

func TestUpdate_MalformedReplaceShape(t *testing.T) {
	posts := &mockPosts{}
	posts.On("FindPost", testIdentifier).Return(&storage.Post{
		Identifier: testIdentifier,
		Content:    "hello world",
	}, nil).Once()

	endpoint := newTestEndpoint(posts, &mockMedia{}, "update")
	w := postJSON(endpoint, `{
		"action": "update",
		"url": "https://example.com/notes/1552000000/",
		"replace": {"content": "not-a-list"}
	}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	posts.AssertNotCalled(t, "UpdatePostFields", mock.Anything, mock.Anything)
}

func TestUpdate_MissingInstructions(t *testing.T) {
	posts := &mockPosts{}
	posts.On("FindPost", testIdentifier).Return(&storage.Post{Identifier: testIdentifier}, nil).Once()

	endpoint := newTestEndpoint(posts, &mockMedia{}, "update")
	w := postJSON(endpoint, `{"action":"update","url":"https://example.com/notes/1552000000/"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Description, "missing replace, add, or delete key")
}

func TestUpdate_PostNotFound(t *testing.T) {
	posts := &mockPosts{}
	posts.On("FindPost", testIdentifier).Return(nil, nil).Once()

	endpoint := newTestEndpoint(posts, &mockMedia{}, "update")
	w := postJSON(endpoint, `{
		"action": "update",
		"url": "https://example.com/notes/1552000000/",
		"replace": {"content": ["hello moon"]}
	}`)

	// an unresolvable url is a client error, not a 404
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDelete(t *testing.T) {
	posts := &mockPosts{}
	posts.On("FindPost", testIdentifier).Return(&storage.Post{Identifier: testIdentifier}, nil).Once()
	posts.On("SoftDeletePost", testIdentifier).Return(nil).Once()

	endpoint := newTestEndpoint(posts, &mockMedia{}, "delete")
	w := postJSON(endpoint, `{"action":"delete","url":"https://example.com/notes/1552000000/"}`)

	assert.Equal(t, http.StatusNoContent, w.Code)
	posts.AssertExpectations(t)
}

func TestDelete_Form(t *testing.T) {
	posts := &mockPosts{}
	posts.On("FindPost", testIdentifier).Return(&storage.Post{Identifier: testIdentifier}, nil).Once()
	posts.On("SoftDeletePost", testIdentifier).Return(nil).Once()

	endpoint := newTestEndpoint(posts, &mockMedia{}, "delete")
	w := postForm(endpoint, url.Values{
		"action": {"delete"},
		"url":    {"https://example.com/notes/1552000000/"},
	}, true)

	assert.Equal(t, http.StatusNoContent, w.Code)
	posts.AssertExpectations(t)
}

func TestDelete_MissingURL(t *testing.T) {
	endpoint := newTestEndpoint(&mockPosts{}, &mockMedia{}, "delete")
	w := postJSON(endpoint, `{"action":"delete"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Description, "url is required")
}

func TestUndelete(t *testing.T) {
	posts := &mockPosts{}
	posts.On("FindPostAny", testIdentifier).Return(&storage.Post{
		Identifier: testIdentifier,
		Deleted:    true,
	}, nil).Once()
	posts.On("UndeletePost", testIdentifier).Return(nil).Once()

	endpoint := newTestEndpoint(posts, &mockMedia{}, "undelete")
	w := postJSON(endpoint, `{"action":"undelete","url":"https://example.com/notes/1552000000/"}`)

	assert.Equal(t, http.StatusNoContent, w.Code)
	posts.AssertExpectations(t)
}

func TestUnknownAction(t *testing.T) {
	endpoint := newTestEndpoint(&mockPosts{}, &mockMedia{}, "create")
	w := postJSON(endpoint, `{"action":"destroy","url":"https://example.com/notes/1552000000/"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Description, "unknown action")
}

func TestMalformedJSONBody(t *testing.T) {
	endpoint := newTestEndpoint(&mockPosts{}, &mockMedia{}, "create")
	w := postJSON(endpoint, `{"properties": `)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, micropub.CodeInvalidRequest, decodeError(t, w).Code)
}

func TestForbiddenToken(t *testing.T) {
	posts := &mockPosts{}
	endpoint := newTestEndpoint(posts, &mockMedia{}, "create")
	endpoint.verifier = &stubVerifier{err: micropub.Forbidden("token has been revoked")}

	w := postJSON(endpoint, `{"type":["h-entry"],"properties":{"content":["bananas"]}}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, micropub.CodeForbidden, decodeError(t, w).Code)
	posts.AssertNotCalled(t, "SavePost", mock.Anything)
}
