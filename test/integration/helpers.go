package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
)

type ghAsset struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Size        int    `json:"size"`
	ContentType string `json:"content_type"`
	URL         string `json:"browser_download_url"`
}

type ghRelease struct {
	ID      int64      `json:"id"`
	TagName string     `json:"tag_name"`
	Name    string     `json:"name"`
	Assets  []*ghAsset `json:"assets"`
}

// githubServer emulates the slice of the GitHub releases API gda uses.
type githubServer struct {
	*httptest.Server

	mu        sync.Mutex
	releases  map[string]*ghRelease
	blobs     map[int64][]byte
	nextID    int64
	downloads int
}

func newGitHubServer(t *testing.T) *githubServer {
	t.Helper()
	gh := &githubServer{
		releases: make(map[string]*ghRelease),
		blobs:    make(map[int64][]byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/{owner}/{repo}/releases/tags/{tag}", gh.getRelease)
	mux.HandleFunc("POST /repos/{owner}/{repo}/releases", gh.createRelease)
	mux.HandleFunc("POST /repos/{owner}/{repo}/releases/{id}/assets", gh.uploadAsset)
	mux.HandleFunc("DELETE /repos/{owner}/{repo}/releases/assets/{id}", gh.deleteAsset)
	mux.HandleFunc("GET /download/{id}", gh.download)

	gh.Server = httptest.NewServer(mux)
	t.Cleanup(gh.Close)
	return gh
}

func repoKey(r *http.Request) string {
	return r.PathValue("owner") + "/" + r.PathValue("repo")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
}

func (gh *githubServer) getRelease(w http.ResponseWriter, r *http.Request) {
	gh.mu.Lock()
	defer gh.mu.Unlock()
	rel, ok := gh.releases[repoKey(r)+"@"+r.PathValue("tag")]
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (gh *githubServer) createRelease(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TagName string `json:"tag_name"`
		Name    string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	gh.mu.Lock()
	defer gh.mu.Unlock()
	key := repoKey(r) + "@" + body.TagName
	if _, exists := gh.releases[key]; exists {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "Validation Failed"})
		return
	}
	gh.nextID++
	rel := &ghRelease{ID: gh.nextID, TagName: body.TagName, Name: body.Name, Assets: []*ghAsset{}}
	gh.releases[key] = rel
	writeJSON(w, http.StatusCreated, rel)
}

func (gh *githubServer) findRelease(id int64) *ghRelease {
	for _, rel := range gh.releases {
		if rel.ID == id {
			return rel
		}
	}
	return nil
}

func (gh *githubServer) uploadAsset(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	gh.mu.Lock()
	defer gh.mu.Unlock()
	rel := gh.findRelease(id)
	if rel == nil {
		notFound(w)
		return
	}
	name := r.URL.Query().Get("name")
	for _, a := range rel.Assets {
		if a.Name == name {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "already_exists"})
			return
		}
	}

	gh.nextID++
	asset := &ghAsset{
		ID:          gh.nextID,
		Name:        name,
		Size:        len(data),
		ContentType: r.Header.Get("Content-Type"),
		URL:         fmt.Sprintf("%s/download/%d", gh.URL, gh.nextID),
	}
	rel.Assets = append(rel.Assets, asset)
	gh.blobs[asset.ID] = data
	writeJSON(w, http.StatusCreated, asset)
}

func (gh *githubServer) deleteAsset(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	gh.mu.Lock()
	defer gh.mu.Unlock()
	for _, rel := range gh.releases {
		for i, a := range rel.Assets {
			if a.ID == id {
				rel.Assets = append(rel.Assets[:i], rel.Assets[i+1:]...)
				delete(gh.blobs, id)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
	}
	notFound(w)
}

func (gh *githubServer) download(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	gh.mu.Lock()
	data, ok := gh.blobs[id]
	if ok {
		gh.downloads++
	}
	gh.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

// tamper replaces the stored bytes of the named asset in a release.
func (gh *githubServer) tamper(repo, tag, name string, data []byte) {
	gh.mu.Lock()
	defer gh.mu.Unlock()
	for _, a := range gh.releases[repo+"@"+tag].Assets {
		if a.Name == name {
			gh.blobs[a.ID] = data
		}
	}
}

func (gh *githubServer) downloadCount() int {
	gh.mu.Lock()
	defer gh.mu.Unlock()
	return gh.downloads
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}
