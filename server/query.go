package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/blturner/micropub-go/server/micropub"
	"github.com/blturner/micropub-go/server/telemetry"
)

// GetHTTP handles the query-style GET sub-endpoints: q=config,
// q=syndicate-to, and q=source. Each requires authentication.
func (e *MicropubEndpoint) GetHTTP(w http.ResponseWriter, r *http.Request) {
	telemetry.Request(r, "MicropubEndpoint.GetHTTP")
	telemetry.Increment("micropub_queries", 1)

	query := r.URL.Query()
	if _, err := authorize(r.Context(), e.verifier, r.Header.Get("Authorization"), query.Get("access_token")); err != nil {
		writeError(w, micropub.AsError(err))
		return
	}

	switch q := query.Get("q"); q {
	case "config":
		writeJSON(w, map[string]any{
			"media-endpoint": e.config.MediaEndpoint(),
			"syndicate-to":   e.targets(),
		})
	case "syndicate-to":
		writeJSON(w, map[string]any{"syndicate-to": e.targets()})
	case "source":
		e.source(w, r)
	case "":
		writeError(w, micropub.InvalidRequest("q is required"))
	default:
		writeError(w, micropub.InvalidRequest(fmt.Sprintf("unknown query [%s]", q)))
	}
}

func (e *MicropubEndpoint) targets() []SyndicationTarget {
	if e.config.Targets == nil {
		return []SyndicationTarget{}
	}
	return e.config.Targets
}

// source returns a minimal Microformats2 projection of a post, filtered
// by any properties[] parameters.
func (e *MicropubEndpoint) source(w http.ResponseWriter, r *http.Request) {
	post, perr := e.lookup(r.URL.Query().Get("url"), false)
	if perr != nil {
		writeError(w, perr)
		return
	}

	filter := r.URL.Query()["properties[]"]
	include := func(name string) bool {
		// Without a filter only content is projected.
		if len(filter) == 0 {
			return name == micropub.ContentProperty
		}
		for _, f := range filter {
			if f == name {
				return true
			}
		}
		return false
	}

	props := make(micropub.Properties)
	if include(micropub.ContentProperty) {
		props[micropub.ContentProperty] = micropub.Property{
			Values: []micropub.Value{{Text: post.Content}},
		}
	}
	if include(micropub.CategoryProperty) {
		prop := micropub.Property{List: true}
		for _, tag := range post.TagList() {
			prop.Values = append(prop.Values, micropub.Value{Text: tag})
		}
		props[micropub.CategoryProperty] = prop
	}

	writeJSON(w, map[string]any{
		"type":       []string{micropub.EntryType},
		"properties": props,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		telemetry.Error(err, "marshaling query response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(jsonBytes)
}
