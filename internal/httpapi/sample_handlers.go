package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"myapp.dev/internal/apperr"
	"myapp.dev/internal/cache"
	"myapp.dev/internal/mail"
)

type mailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

type cacheRequest struct {
	Key   string `json:"cachekey"`
	Value string `json:"cachevalue"`
	// TTL in seconds; zero keeps the entry until evicted.
	TTL int `json:"cachettl"`
}

func (a *API) handleEmoji(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []string{"😀", "😳", "🙄"})
}

func (a *API) handleChat(w http.ResponseWriter, r *http.Request) {
	body, err := mail.Render("email-confirmation.html", map[string]string{
		"username": "Dixit",
		"link":     "https://www.youtube.com",
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (a *API) handleMail(w http.ResponseWriter, r *http.Request) {
	var req mailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if a.deps.Mailer == nil {
		writeError(w, r, apperr.Internal(errors.New("mailer not configured")))
		return
	}
	err := a.deps.Mailer.Send(r.Context(), mail.Message{To: req.To, Subject: req.Subject, Text: req.Text, HTML: req.HTML})
	if err != nil {
		e := apperr.Internal(err)
		e.Message = "Mail not sent !"
		writeError(w, r, e)
		return
	}
	writeSuccess(w, http.StatusOK, "Mail sent successfully !", nil, nil)
}

func (a *API) handleCacheWrite(w http.ResponseWriter, r *http.Request) {
	var req cacheRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		writeError(w, r, apperr.MalformedRequest("Missing cache key", map[string]string{"cachekey": "required"}))
		return
	}
	ttl := time.Duration(req.TTL) * time.Second
	if err := a.deps.Cache.Set(r.Context(), req.Key, req.Value, ttl); err != nil {
		e := apperr.Internal(err)
		e.Message = "Cache test failed !"
		writeError(w, r, e)
		return
	}
	writeSuccess(w, http.StatusOK, "Cache test successful !", nil, nil)
}

func (a *API) handleCacheRead(w http.ResponseWriter, r *http.Request) {
	var req cacheRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var value *string
	v, err := a.deps.Cache.Get(r.Context(), req.Key)
	switch {
	case err == nil:
		value = &v
	case errors.Is(err, cache.ErrNotFound):
	default:
		e := apperr.Internal(err)
		e.Message = "Cache read failed !"
		writeError(w, r, e)
		return
	}
	writeSuccess(w, http.StatusOK, "Cache read successful !", map[string]any{"cacheValue": value}, nil)
}

func (a *API) handleDatabase(w http.ResponseWriter, r *http.Request) {
	if a.deps.Ready.DB == nil {
		writeError(w, r, apperr.Internal(errors.New("database not configured")))
		return
	}
	start := time.Now()
	if err := a.deps.Ready.DB.PingContext(r.Context()); err != nil {
		writeError(w, r, apperr.Internal(err))
		return
	}
	writeSuccess(w, http.StatusOK, "test successful !", map[string]any{
		"latency_ms": time.Since(start).Milliseconds(),
	}, nil)
}
