// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package phylo

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	// Set Gin to test mode to reduce noise
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(t *testing.T, opts HandlerOptions) (*gin.Engine, *Service) {
	t.Helper()
	svc := newTestService(t, nil)
	router := gin.New()
	router.Use(RequestID())
	RegisterRoutes(router.Group("/v1"), NewHandlers(svc, opts))
	return router, svc
}

func loadBody(t *testing.T, name, trees string) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]any{"name": name, "trees": json.RawMessage(trees)})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return bytes.NewReader(body)
}

func doRequest(router *gin.Engine, method, path string, body *bytes.Reader) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, body)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", w.Body.String(), err)
	}
}

func loadFlu(t *testing.T, router *gin.Engine) DatasetInfo {
	t.Helper()
	w := doRequest(router, http.MethodPost, "/v1/phylo/datasets", loadBody(t, "flu", fluTree))
	if w.Code != http.StatusCreated {
		t.Fatalf("load status = %d, body = %s", w.Code, w.Body.String())
	}
	var info DatasetInfo
	decodeBody(t, w, &info)
	return info
}

func TestHandlers_HandleHealth(t *testing.T) {
	router, _ := setupTestRouter(t, HandlerOptions{})

	w := doRequest(router, http.MethodGet, "/v1/phylo/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp HealthResponse
	decodeBody(t, w, &resp)
	if resp.Status != "healthy" || resp.Version != ServiceVersion {
		t.Errorf("unexpected health response %+v", resp)
	}
	if resp.DatasetLoaded {
		t.Error("dataset_loaded should be false before any load")
	}
}

func TestHandlers_NoDataset(t *testing.T) {
	router, _ := setupTestRouter(t, HandlerOptions{})

	for _, path := range []string{
		"/v1/phylo/dataset",
		"/v1/phylo/nodes/0",
		"/v1/phylo/nodes/0/path",
		"/v1/phylo/nodes?name=root",
		"/v1/phylo/tips",
		"/v1/phylo/labels",
		"/v1/phylo/mutations",
		"/v1/phylo/vaccines",
	} {
		w := doRequest(router, http.MethodGet, path, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s: expected %d, got %d", path, http.StatusNotFound, w.Code)
			continue
		}
		var resp ErrorResponse
		decodeBody(t, w, &resp)
		if resp.Code != "NO_DATASET" {
			t.Errorf("GET %s: expected code NO_DATASET, got %q", path, resp.Code)
		}
	}
}

func TestHandlers_HandleLoadDataset(t *testing.T) {
	router, svc := setupTestRouter(t, HandlerOptions{})

	info := loadFlu(t, router)
	if info.Name != "flu" || info.Summary.Nodes != 6 {
		t.Errorf("unexpected info %+v", info)
	}

	current, _, err := svc.Current()
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if current.ID != info.ID {
		t.Errorf("current ID = %q, want %q", current.ID, info.ID)
	}
}

func TestHandlers_HandleLoadDataset_Errors(t *testing.T) {
	router, _ := setupTestRouter(t, HandlerOptions{})

	tests := []struct {
		name       string
		body       *bytes.Reader
		wantStatus int
		wantCode   string
	}{
		{"malformed body", bytes.NewReader([]byte(`{"name":`)), http.StatusBadRequest, "INVALID_REQUEST"},
		{"missing trees", bytes.NewReader([]byte(`{"name":"flu"}`)), http.StatusBadRequest, "INVALID_REQUEST"},
		{"invalid name", loadBody(t, "a/b", fluTree), http.StatusBadRequest, "INVALID_NAME"},
		{"empty forest", loadBody(t, "flu", `[]`), http.StatusBadRequest, "NO_TREES"},
		{"not a tree", loadBody(t, "flu", `"tree"`), http.StatusBadRequest, "INVALID_DOCUMENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/v1/phylo/datasets", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, w.Code, w.Body.String())
			}
			var resp ErrorResponse
			decodeBody(t, w, &resp)
			if resp.Code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestHandlers_HandleLoadDataset_BodyTooLarge(t *testing.T) {
	router, _ := setupTestRouter(t, HandlerOptions{MaxBodyBytes: 64})

	w := doRequest(router, http.MethodPost, "/v1/phylo/datasets", loadBody(t, "flu", fluTree))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, w.Code)
	}
}

func TestHandlers_RateLimitUploads(t *testing.T) {
	router, _ := setupTestRouter(t, HandlerOptions{UploadRate: 0.001, UploadBurst: 1})

	loadFlu(t, router)

	w := doRequest(router, http.MethodPost, "/v1/phylo/datasets", loadBody(t, "flu", fluTree))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", http.StatusTooManyRequests, w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// Reads are not limited.
	w = doRequest(router, http.MethodGet, "/v1/phylo/labels", nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET labels: expected %d, got %d", http.StatusOK, w.Code)
	}
}

func TestHandlers_HandleGetDataset(t *testing.T) {
	router, _ := setupTestRouter(t, HandlerOptions{})
	info := loadFlu(t, router)

	w := doRequest(router, http.MethodGet, "/v1/phylo/dataset", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp struct {
		ID                    string   `json:"id"`
		AvailableBranchLabels []string `json:"available_branch_labels"`
		NodeAttrKeys          []string `json:"node_attr_keys"`
		SubtreeOffsets        []int    `json:"subtree_offsets"`
	}
	decodeBody(t, w, &resp)

	if resp.ID != info.ID {
		t.Errorf("id = %q, want %q", resp.ID, info.ID)
	}
	if strings.Join(resp.AvailableBranchLabels, ",") != "none,clade,aa" {
		t.Errorf("labels = %v", resp.AvailableBranchLabels)
	}
	if strings.Join(resp.NodeAttrKeys, ",") != "region" {
		t.Errorf("node attr keys = %v", resp.NodeAttrKeys)
	}
	if len(resp.SubtreeOffsets) != 1 || resp.SubtreeOffsets[0] != 1 {
		t.Errorf("subtree offsets = %v", resp.SubtreeOffsets)
	}
}

type nodeJSON struct {
	Name         string `json:"name"`
	ArrayIdx     int    `json:"arrayIdx"`
	Parent       int    `json:"parent"`
	FullTipCount int    `json:"fullTipCount"`
	Hidden       string `json:"hidden"`
}

func TestHandlers_Nodes(t *testing.T) {
	router, _ := setupTestRouter(t, HandlerOptions{})
	loadFlu(t, router)

	t.Run("by index", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/v1/phylo/nodes/0", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		var n nodeJSON
		decodeBody(t, w, &n)
		if n.Name != "__ROOT" || n.Hidden != "always" || n.FullTipCount != 3 {
			t.Errorf("unexpected root %+v", n)
		}
	})

	t.Run("by name", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/v1/phylo/nodes?name=tipA2", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		var n nodeJSON
		decodeBody(t, w, &n)
		if n.ArrayIdx != 4 || n.Parent != 2 {
			t.Errorf("unexpected node %+v", n)
		}
	})

	t.Run("by label", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/v1/phylo/nodes?label=clade&value=19", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		var n nodeJSON
		decodeBody(t, w, &n)
		if n.Name != "tipB" {
			t.Errorf("expected tipB, got %q", n.Name)
		}
	})

	t.Run("path to root", func(t *testing.T) {
		w := doRequest(router, http.MethodGet, "/v1/phylo/nodes/3/path", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		var resp struct {
			Nodes []nodeJSON `json:"nodes"`
			Count int        `json:"count"`
		}
		decodeBody(t, w, &resp)
		var names []string
		for _, n := range resp.Nodes {
			names = append(names, n.Name)
		}
		if strings.Join(names, ",") != "tipA1,clade-A,root,__ROOT" || resp.Count != 4 {
			t.Errorf("path = %v (count %d)", names, resp.Count)
		}
	})

	errorCases := []struct {
		path       string
		wantStatus int
		wantCode   string
	}{
		{"/v1/phylo/nodes/abc", http.StatusBadRequest, "INVALID_INDEX"},
		{"/v1/phylo/nodes/99", http.StatusNotFound, "NODE_NOT_FOUND"},
		{"/v1/phylo/nodes/-1/path", http.StatusNotFound, "NODE_NOT_FOUND"},
		{"/v1/phylo/nodes?name=nope", http.StatusNotFound, "NODE_NOT_FOUND"},
		{"/v1/phylo/nodes?label=clade&value=Z", http.StatusNotFound, "NODE_NOT_FOUND"},
		{"/v1/phylo/nodes", http.StatusBadRequest, "INVALID_QUERY"},
	}
	for _, tc := range errorCases {
		t.Run(tc.path, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, tc.path, nil)
			if w.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, w.Code)
			}
			var resp ErrorResponse
			decodeBody(t, w, &resp)
			if resp.Code != tc.wantCode {
				t.Errorf("expected code %q, got %q", tc.wantCode, resp.Code)
			}
		})
	}
}

func TestHandlers_HandleGetMutations(t *testing.T) {
	router, _ := setupTestRouter(t, HandlerOptions{})
	loadFlu(t, router)

	tests := []struct {
		query string
		want  string
	}{
		{"", "S:D614G=2,nuc:A23403G=1,nuc:C241T=1"},
		{"?top=1", "S:D614G=2"},
		{"?gene=nuc", "nuc:A23403G=1,nuc:C241T=1"},
		{"?gene=ORF1a", ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := doRequest(router, http.MethodGet, "/v1/phylo/mutations"+tt.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
			}
			var resp MutationsResponse
			decodeBody(t, w, &resp)
			var parts []string
			for _, m := range resp.Mutations {
				parts = append(parts, m.Key+"="+strconv.Itoa(m.Count))
			}
			if got := strings.Join(parts, ","); got != tt.want {
				t.Errorf("mutations = %q, want %q", got, tt.want)
			}
			if resp.Distinct != 3 {
				t.Errorf("distinct = %d, want 3", resp.Distinct)
			}
		})
	}

	w := doRequest(router, http.MethodGet, "/v1/phylo/mutations?top=-2", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative top: expected %d, got %d", http.StatusBadRequest, w.Code)
	}

	w = doRequest(router, http.MethodGet, "/v1/phylo/mutations?gene=S:D614G", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid gene: expected %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestHandlers_LabelsTipsVaccines(t *testing.T) {
	router, _ := setupTestRouter(t, HandlerOptions{})
	loadFlu(t, router)

	w := doRequest(router, http.MethodGet, "/v1/phylo/labels", nil)
	var labels LabelsResponse
	decodeBody(t, w, &labels)
	if strings.Join(labels.Labels, ",") != "none,clade,aa" {
		t.Errorf("labels = %v", labels.Labels)
	}

	w = doRequest(router, http.MethodGet, "/v1/phylo/tips", nil)
	var tips struct {
		Nodes []nodeJSON `json:"nodes"`
		Count int        `json:"count"`
	}
	decodeBody(t, w, &tips)
	if tips.Count != 3 || tips.Nodes[0].Name != "tipA1" || tips.Nodes[2].Name != "tipB" {
		t.Errorf("tips = %+v", tips)
	}

	w = doRequest(router, http.MethodGet, "/v1/phylo/vaccines", nil)
	var vaccines struct {
		Nodes []nodeJSON `json:"nodes"`
		Count int        `json:"count"`
	}
	decodeBody(t, w, &vaccines)
	if vaccines.Count != 1 || vaccines.Nodes[0].Name != "tipA1" {
		t.Errorf("vaccines = %+v", vaccines)
	}
}

func TestHandlers_Snapshots(t *testing.T) {
	t.Run("store disabled", func(t *testing.T) {
		router, _ := setupTestRouter(t, HandlerOptions{})
		for _, req := range []struct{ method, path string }{
			{http.MethodGet, "/v1/phylo/datasets"},
			{http.MethodPost, "/v1/phylo/datasets/restore"},
		} {
			w := doRequest(router, req.method, req.path, nil)
			if w.Code != http.StatusNotImplemented {
				t.Errorf("%s %s: expected %d, got %d", req.method, req.path, http.StatusNotImplemented, w.Code)
			}
		}
	})

	t.Run("store enabled", func(t *testing.T) {
		svc := newTestService(t, newTestStore(t))
		router := gin.New()
		RegisterRoutes(router.Group("/v1"), NewHandlers(svc, HandlerOptions{}))

		w := doRequest(router, http.MethodPost, "/v1/phylo/datasets/restore", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("restore before save: expected %d, got %d", http.StatusNotFound, w.Code)
		}

		info := loadFlu(t, router)

		w = doRequest(router, http.MethodGet, "/v1/phylo/datasets", nil)
		var list SnapshotsResponse
		decodeBody(t, w, &list)
		if list.Current != "flu" || len(list.Snapshots) != 1 || list.Snapshots[0].ID != info.ID {
			t.Errorf("unexpected snapshots %+v", list)
		}

		w = doRequest(router, http.MethodPost, "/v1/phylo/datasets/restore", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("restore: expected %d, got %d", http.StatusOK, w.Code)
		}
		var restored DatasetInfo
		decodeBody(t, w, &restored)
		if restored.SHA256 != info.SHA256 || !restored.Cached {
			t.Errorf("unexpected restore %+v", restored)
		}
	})
}

func TestHandlers_RequestID(t *testing.T) {
	router, _ := setupTestRouter(t, HandlerOptions{})

	req := httptest.NewRequest(http.MethodPost, "/v1/phylo/datasets", loadBody(t, "flu", fluTree))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q, want req-123", got)
	}

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"health", http.MethodGet, "/v1/phylo/health", http.StatusOK},
		{"dataset", http.MethodGet, "/v1/phylo/dataset", http.StatusOK},
		{"tips", http.MethodGet, "/v1/phylo/tips", http.StatusOK},
		{"node", http.MethodGet, "/v1/phylo/nodes/0", http.StatusOK},
		{"unknown node", http.MethodGet, "/v1/phylo/nodes/999", http.StatusNotFound},
		{"snapshots disabled", http.MethodGet, "/v1/phylo/datasets", http.StatusNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, tt.method, tt.path, nil)
			if w.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, w.Code)
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Error("response missing generated X-Request-ID")
			}
		})
	}
}

func TestNewRouter_RequestIDOnErrors(t *testing.T) {
	router := NewRouter(NewHandlers(newTestService(t, nil), HandlerOptions{}), false)

	w := doRequest(router, http.MethodGet, "/v1/phylo/dataset", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("404 response missing X-Request-ID")
	}
}

func TestNewRouter_Metrics(t *testing.T) {
	router := NewRouter(NewHandlers(newTestService(t, nil), HandlerOptions{}), false)
	loadFlu(t, router)

	w := doRequest(router, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if !strings.Contains(w.Body.String(), "phylo_service_dataset_loads_total") {
		t.Error("metrics output missing phylo_service_dataset_loads_total")
	}
}
