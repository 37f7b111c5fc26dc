package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/tweetshelf/app/bookmarks"
	"github.com/lysyi3m/tweetshelf/app/database"
	"github.com/lysyi3m/tweetshelf/app/extract"
	"github.com/lysyi3m/tweetshelf/app/feed"
)

type staticChecker map[string]string

func (s staticChecker) Check(username, password string) bool {
	p, ok := s[username]
	return ok && p == password
}

type stubFetcher struct{}

func (stubFetcher) Run(ctx context.Context, u string) ([]byte, error) {
	if strings.Contains(u, "down") {
		return nil, errors.New("connection refused")
	}
	return []byte(`<div data-testid="tweetText">Hello @World</div>
<img data-testid="tweetPhoto" src="https://pbs.twimg.com/media/pic.jpg">`), nil
}

type stubMirror struct{}

func (stubMirror) RunAll(ctx context.Context, urls []string) []string {
	refs := make([]string, len(urls))
	for i, u := range urls {
		refs[i] = "/media/" + filepath.Base(u)
	}
	return refs
}

func (stubMirror) Remove(ref string) error { return nil }

type testServer struct {
	engine   *gin.Engine
	service  *bookmarks.Service
	mediaDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	db, err := database.NewConnection(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	service := bookmarks.NewService(database.NewCategoryRepository(db), database.NewPostRepository(db),
		stubFetcher{}, extract.NewExtractor(), stubMirror{})

	mediaDir := filepath.Join(dir, "media")
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		t.Fatal(err)
	}

	engine := NewServer(NewHandler(service, feed.NewGenerator("http://shelf.test", "test"), "test"), staticChecker{"alice": "secret"},
		MediaConfig{Dir: mediaDir, Prefix: "/media"})

	return &testServer{engine: engine, service: service, mediaDir: mediaDir}
}

func (s *testServer) do(t *testing.T, method, path string, body string, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.SetBasicAuth("alice", "secret")

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) form(t *testing.T, path string, values url.Values) *httptest.ResponseRecorder {
	return s.do(t, http.MethodPost, path, values.Encode(), "application/x-www-form-urlencoded")
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return body
}

func TestBasicAuth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without credentials, got %d", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); got != `Basic realm="Login Required"` {
		t.Errorf("Unexpected WWW-Authenticate header: %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("alice", "wrong")
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong password, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected health to be public, got %d", w.Code)
	}
}

func TestAddCategoryAndGallery(t *testing.T) {
	s := newTestServer(t)

	w := s.form(t, "/add_category", url.Values{"name": {"Art"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["success"] != true {
		t.Errorf("Expected success, got %v", body)
	}

	if w := s.form(t, "/add_category", url.Values{"name": {"Art"}}); w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate, got %d", w.Code)
	}
	if w := s.form(t, "/add_category", url.Values{"name": {"  "}}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty name, got %d", w.Code)
	}

	w = s.do(t, http.MethodGet, "/", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var gallery struct {
		Categories []struct {
			ID    int64             `json:"id"`
			Name  string            `json:"name"`
			Posts []json.RawMessage `json:"posts"`
		} `json:"categories"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &gallery); err != nil {
		t.Fatal(err)
	}
	if len(gallery.Categories) != 1 || gallery.Categories[0].Name != "Art" {
		t.Errorf("Unexpected gallery: %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"posts":[]`) {
		t.Errorf("Expected an empty category to list posts as [], got %s", w.Body.String())
	}
}

func TestAddAndDeleteTweet(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	art, err := s.service.CreateCategory(ctx, "Art")
	if err != nil {
		t.Fatal(err)
	}

	w := s.form(t, "/add_tweet", url.Values{
		"tweet_url":   {"https://x.com/someone/status/1"},
		"category_id": {jsonID(art.ID)},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created struct {
		Success bool `json:"success"`
		Post    struct {
			ID         int64    `json:"id"`
			CategoryID int64    `json:"category_id"`
			Text       string   `json:"text"`
			Author     string   `json:"author"`
			MediaURLs  []string `json:"media_urls"`
			AddedBy    string   `json:"added_by"`
		} `json:"post"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Post.CategoryID != art.ID || created.Post.Text != "Hello @World" || created.Post.Author != "Unknown" {
		t.Errorf("Unexpected post: %+v", created.Post)
	}
	if created.Post.AddedBy != "alice" {
		t.Errorf("Expected added_by alice, got %q", created.Post.AddedBy)
	}
	if len(created.Post.MediaURLs) != 1 || created.Post.MediaURLs[0] != "/media/pic.jpg" {
		t.Errorf("Unexpected media: %v", created.Post.MediaURLs)
	}

	tests := []struct {
		name     string
		values   url.Values
		expected int
	}{
		{"missing url", url.Values{"category_id": {jsonID(art.ID)}}, http.StatusBadRequest},
		{"missing category", url.Values{"tweet_url": {"https://x.com/a/status/2"}}, http.StatusBadRequest},
		{"bad category id", url.Values{"tweet_url": {"https://x.com/a/status/2"}, "category_id": {"abc"}}, http.StatusBadRequest},
		{"unknown category", url.Values{"tweet_url": {"https://x.com/a/status/2"}, "category_id": {"99"}}, http.StatusNotFound},
		{"fetch failure", url.Values{"tweet_url": {"https://x.com/down/status/2"}, "category_id": {jsonID(art.ID)}}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := s.form(t, "/add_tweet", tt.values); w.Code != tt.expected {
				t.Errorf("Expected %d, got %d: %s", tt.expected, w.Code, w.Body.String())
			}
		})
	}

	path := "/delete_tweet/" + jsonID(created.Post.ID)
	if w := s.do(t, http.MethodPost, path, "", ""); w.Code != http.StatusOK {
		t.Errorf("Expected 200 on delete, got %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, path, "", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on second delete, got %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/delete_tweet/abc", "", ""); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid id, got %d", w.Code)
	}
}

func TestDeleteCategory(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	art, _ := s.service.CreateCategory(ctx, "Art")
	if _, err := s.service.SaveFromURL(ctx, bookmarks.SaveRequest{URL: "https://x.com/a/status/1", CategoryID: art.ID}); err != nil {
		t.Fatal(err)
	}

	if w := s.do(t, http.MethodPost, "/delete_category/"+jsonID(art.ID), "", ""); w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodPost, "/delete_category/"+jsonID(art.ID), "", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for deleted category, got %d", w.Code)
	}
}

func TestUpdateCategoryOrder(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	c1, _ := s.service.CreateCategory(ctx, "one")
	c2, _ := s.service.CreateCategory(ctx, "two")
	c3, _ := s.service.CreateCategory(ctx, "three")

	body := `{"order": [` + jsonID(c3.ID) + `, "` + jsonID(c1.ID) + `", ` + jsonID(c2.ID) + `]}`
	w := s.do(t, http.MethodPost, "/update_category_order", body, "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decode(t, w); resp["success"] != true {
		t.Errorf("Expected success, got %v", resp)
	}

	gallery, err := s.service.Gallery(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if gallery[0].ID != c3.ID || gallery[1].ID != c1.ID || gallery[2].ID != c2.ID {
		t.Errorf("Unexpected order after update: %d %d %d", gallery[0].ID, gallery[1].ID, gallery[2].ID)
	}

	w = s.do(t, http.MethodPost, "/update_category_order", `{"order": []}`, "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty order, got %d", w.Code)
	}
	if resp := decode(t, w); resp["success"] != false || resp["error"] == nil {
		t.Errorf("Expected failure body, got %v", resp)
	}

	w = s.do(t, http.MethodPost, "/update_category_order", `{"order": [true]}`, "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid ids, got %d", w.Code)
	}
}

func TestStaticMedia(t *testing.T) {
	s := newTestServer(t)

	if err := os.WriteFile(filepath.Join(s.mediaDir, "abc.jpg"), []byte("jpegdata"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := s.do(t, http.MethodGet, "/media/abc.jpg", "", "")
	if w.Code != http.StatusOK || w.Body.String() != "jpegdata" {
		t.Errorf("Expected media file to be served, got %d %q", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/media/abc.jpg", nil)
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected media to require auth, got %d", w.Code)
	}
}

func TestCategoryFeed(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	category, err := s.service.CreateCategory(ctx, "Art")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.service.SaveFromURL(ctx, bookmarks.SaveRequest{URL: "https://x.com/a/status/1", CategoryID: category.ID}); err != nil {
		t.Fatal(err)
	}

	w := s.do(t, http.MethodGet, "/feed/"+jsonID(category.ID), "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Errorf("Unexpected content type %q", ct)
	}
	if w.Header().Get("X-Feed-Items") != "1" {
		t.Errorf("Expected X-Feed-Items 1, got %q", w.Header().Get("X-Feed-Items"))
	}
	if !strings.Contains(w.Body.String(), `<enclosure url="http://shelf.test/media/pic.jpg"`) {
		t.Errorf("Expected mirrored media enclosure, got %s", w.Body.String())
	}

	if w := s.do(t, http.MethodGet, "/feed/999", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown category, got %d", w.Code)
	}
}

func TestFlexID(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
		valid    bool
	}{
		{`3`, 3, true},
		{`"7"`, 7, true},
		{`" 12 "`, 12, true},
		{`"abc"`, 0, false},
		{`1.5`, 0, false},
		{`null`, 0, false},
	}

	for _, tt := range tests {
		var id flexID
		err := json.Unmarshal([]byte(tt.input), &id)
		if tt.valid && (err != nil || int64(id) != tt.expected) {
			t.Errorf("Unmarshal(%s) = %d, %v; expected %d", tt.input, id, err, tt.expected)
		}
		if !tt.valid && err == nil {
			t.Errorf("Expected error for %s", tt.input)
		}
	}
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
