package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/karlseguin/ccache/v3"

	"github.com/blturner/micropub-go/server/micropub"
	"github.com/blturner/micropub-go/server/storage"
	"github.com/blturner/micropub-go/server/telemetry"
)

// mediaCacheTTL bounds how long a resolved media record is reused.
// Media rows are immutable once written, so a short TTL only limits
// memory, not correctness.
const mediaCacheTTL = 5 * time.Minute

// MediaResolver stores uploads and resolves photo references against
// previously stored media.
type MediaResolver struct {
	config   Config
	store    storage.MediaStore
	posts    storage.Posts
	verifier TokenVerifier
	cache    *ccache.Cache[*storage.Media]
}

func NewMediaResolver(cfg Config, store storage.MediaStore, posts storage.Posts, verifier TokenVerifier) *MediaResolver {
	return &MediaResolver{
		config:   cfg,
		store:    store,
		posts:    posts,
		verifier: verifier,
		cache:    ccache.New(ccache.Configure[*storage.Media]()),
	}
}

// PostHTTP handles uploads to the media endpoint. The stored file is
// immediately available for photo references on later creates.
func (m *MediaResolver) PostHTTP(w http.ResponseWriter, r *http.Request) {
	telemetry.Request(r, "MediaResolver.PostHTTP")
	telemetry.Increment("media_uploads", 1)

	auth, err := authorize(r.Context(), m.verifier, r.Header.Get("Authorization"), "")
	if err != nil {
		writeError(w, micropub.AsError(err))
		return
	}
	if !auth.HasScope(micropub.ActionCreate) && !auth.HasScope("media") {
		writeError(w, micropub.InsufficientScope(micropub.ActionCreate))
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, micropub.InvalidRequest("could not parse the upload body"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, micropub.InvalidRequest("file is required"))
		return
	}
	defer file.Close()

	media, err := m.save(header.Filename, file)
	if err != nil {
		telemetry.Error(err, "storing upload [%s]", header.Filename)
		writeError(w, micropub.InvalidRequest("could not store the file"))
		return
	}

	w.Header().Set("Location", m.config.MediaURL(media.File))
	w.WriteHeader(http.StatusCreated)
}

// save writes an upload under a uuid-derived name and records it.
func (m *MediaResolver) save(original string, src io.Reader) (*storage.Media, error) {
	name := uuid.NewString() + filepath.Ext(original)
	if err := os.MkdirAll(m.config.Media.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}
	dst, err := os.Create(filepath.Join(m.config.Media.Dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating media file: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return nil, fmt.Errorf("writing media file: %w", err)
	}

	media := &storage.Media{File: name}
	if err := m.store.SaveMedia(media); err != nil {
		return nil, fmt.Errorf("saving media record: %w", err)
	}
	return media, nil
}

// Attach links a create request's photos to the post: uploaded parts
// are stored and attached unconditionally, while referenced URLs must
// resolve to stored media. Any unresolved reference fails the whole
// create; the caller rolls the post back.
func (m *MediaResolver) Attach(post *storage.Post, photos micropub.Property, files []*multipart.FileHeader) error {
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			return micropub.InvalidRequest("could not read the uploaded photo")
		}
		media, err := m.save(header.Filename, file)
		file.Close()
		if err != nil {
			telemetry.Error(err, "storing uploaded photo [%s]", header.Filename)
			return micropub.InvalidRequest("could not store the uploaded photo")
		}
		if err := m.posts.AttachMedia(post, media); err != nil {
			telemetry.Error(err, "attaching photo [%s]", media.File)
			return micropub.InvalidRequest("could not attach the uploaded photo")
		}
	}

	for _, value := range photos.Values {
		media, perr := m.resolve(value.Text)
		if perr != nil {
			return perr
		}
		if value.Alt != "" && media.Alt == "" {
			media.Alt = value.Alt
			if err := m.store.SaveMedia(media); err != nil {
				telemetry.Error(err, "saving alt text for [%s]", media.File)
			}
		}
		if err := m.posts.AttachMedia(post, media); err != nil {
			telemetry.Error(err, "attaching photo [%s]", media.File)
			return micropub.InvalidRequest("could not attach the photo")
		}
	}
	return nil
}

// resolve matches a photo URL against stored media by the file name
// left after stripping the configured media path.
func (m *MediaResolver) resolve(rawurl string) (*storage.Media, *micropub.Error) {
	name := m.fileName(rawurl)
	if name == "" {
		return nil, micropub.InvalidRequest("Media does not exist")
	}

	if item := m.cache.Get(name); item != nil && !item.Expired() {
		return item.Value(), nil
	}

	media, err := m.store.FindMediaByFile(name)
	if err != nil {
		telemetry.Error(err, "finding media [%s]", name)
		return nil, micropub.InvalidRequest("could not load media")
	}
	if media == nil {
		telemetry.Increment("media_misses", 1)
		return nil, micropub.InvalidRequest("Media does not exist")
	}

	m.cache.Set(name, media, mediaCacheTTL)
	return media, nil
}

func (m *MediaResolver) fileName(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil || u.Path == "" || u.Path == "/" {
		return ""
	}
	name := strings.TrimPrefix(u.Path, m.config.Media.URLPath)
	return path.Base(name)
}
