package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-cli/internal/gateway"
	"github.com/sells-group/catalog-cli/internal/model"
	"github.com/sells-group/catalog-cli/internal/pipeline"
	"github.com/sells-group/catalog-cli/internal/source"
	"github.com/sells-group/catalog-cli/internal/store"
)

// memStore is a minimal in-memory Store for handler tests.
type memStore struct {
	recs map[string]*model.CatalogRecord
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[string]*model.CatalogRecord)}
}

func (m *memStore) Migrate(context.Context) error { return nil }

func (m *memStore) CreateCatalog(_ context.Context, rec *model.CatalogRecord) error {
	rec.ID = "cat-1"
	rec.CreatedAt = time.Now().UTC()
	cp := *rec
	m.recs[rec.ID] = &cp
	return nil
}

func (m *memStore) ListCatalogs(context.Context) ([]model.CatalogRecord, error) {
	out := make([]model.CatalogRecord, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memStore) GetCatalog(_ context.Context, id string) (*model.CatalogRecord, error) {
	r, ok := m.recs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) UpdateCatalog(_ context.Context, rec *model.CatalogRecord) error {
	if _, ok := m.recs[rec.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *rec
	m.recs[rec.ID] = &cp
	return nil
}

func (m *memStore) UpdateSummary(_ context.Context, id, summary string) error {
	r, ok := m.recs[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Summary = &summary
	return nil
}

func (m *memStore) DeleteCatalog(_ context.Context, id string) error {
	if _, ok := m.recs[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.recs, id)
	return nil
}

func (m *memStore) Close() error { return nil }

// stubGateway returns canned extraction results.
type stubGateway struct {
	summary string
}

func (g *stubGateway) ExtractText(context.Context, []model.Page) (string, error) {
	return "stub text", nil
}

func (g *stubGateway) ExtractRecords(context.Context, []model.Page) ([]model.CarSpecification, string, error) {
	return []model.CarSpecification{{
		ID:           "r1",
		Manufacturer: model.StrPtr("Honda"),
		ModelName:    model.StrPtr("Fit"),
		Grade:        model.StrPtr("HOME"),
		Price:        model.FloatPtr(2186800),
	}}, `[]`, nil
}

func (g *stubGateway) Summarize(context.Context, string) (string, error) {
	return g.summary, nil
}

func (g *stubGateway) NewChatSession([]model.CarSpecification) (*gateway.ChatSession, error) {
	return &gateway.ChatSession{}, nil
}

func testEnv(st store.Store) *appEnv {
	gw := &stubGateway{summary: "stub summary"}
	return &appEnv{
		Store:    st,
		Gateway:  gw,
		Pipeline: pipeline.New(st, gw),
		Fetcher: source.FetcherFunc(func(context.Context, string) (string, error) {
			return "fetched content", nil
		}),
	}
}

func seedCatalog(t *testing.T, st *memStore) *model.CatalogRecord {
	t.Helper()
	rec := &model.CatalogRecord{
		SourceLabel: "lineup.pdf",
		Specs: []model.CarSpecification{{
			ID:           "r1",
			Manufacturer: model.StrPtr("Honda"),
			ModelName:    model.StrPtr("Fit"),
			Grade:        model.StrPtr("HOME"),
			Price:        model.FloatPtr(2186800),
		}},
		RawText: "text",
	}
	require.NoError(t, st.CreateCatalog(context.Background(), rec))
	return rec
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServe_Health(t *testing.T) {
	h := newRouter(testEnv(newMemStore()))
	w := doRequest(t, h, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestServe_ProgressStartsIdle(t *testing.T) {
	h := newRouter(testEnv(newMemStore()))
	w := doRequest(t, h, "GET", "/api/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var p pipeline.Progress
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, pipeline.StageIdle, p.Stage)
}

func TestServe_IngestValidation(t *testing.T) {
	h := newRouter(testEnv(newMemStore()))

	w := doRequest(t, h, "POST", "/api/ingest", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, h, "POST", "/api/ingest", map[string]string{"url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, h, "POST", "/api/ingest", map[string]string{
		"path": "a.pdf", "url": "https://example.com",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServe_IngestAccepted(t *testing.T) {
	st := newMemStore()
	h := newRouter(testEnv(st))

	w := doRequest(t, h, "POST", "/api/ingest", map[string]string{"url": "https://cars.example.com/lineup"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "cars.example.com")

	// The run is asynchronous; wait for it to land in the store.
	require.Eventually(t, func() bool {
		recs, _ := st.ListCatalogs(context.Background())
		return len(recs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec, err := st.GetCatalog(context.Background(), "cat-1")
	require.NoError(t, err)
	assert.Equal(t, "stub text", rec.RawText)
	require.NotNil(t, rec.Summary)
	assert.Equal(t, "stub summary", *rec.Summary)
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestServe_IngestUploadAccepted(t *testing.T) {
	h := newRouter(testEnv(newMemStore()))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "lineup-2026.pdf", []byte("%PDF-1.7 fake")))
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "lineup-2026.pdf", "the uploaded filename is the source label")
}

func TestServe_IngestUploadMissingFilePart(t *testing.T) {
	h := newRouter(testEnv(newMemStore()))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "file")
}

func TestIngestSource_UploadLandsInTempFile(t *testing.T) {
	s := &apiServer{env: testEnv(newMemStore()), sessions: make(map[string]*gateway.ChatSession)}
	content := []byte("%PDF-1.7 fake body")

	src, cleanup, err := s.ingestSource(uploadRequest(t, "lineup-2026.pdf", content))
	require.NoError(t, err)

	pdf, ok := src.(*source.PDFSource)
	require.True(t, ok, "uploads become PDF sources")
	assert.Equal(t, source.KindPDF, pdf.Kind())
	assert.Equal(t, "lineup-2026.pdf", pdf.Label())

	// The upload body is on disk until cleanup runs.
	require.NoError(t, pdf.Read(context.Background()))
	cleanup()
	assert.Error(t, pdf.Read(context.Background()), "cleanup removes the temp file")
}

func TestServe_IngestBusyConflict(t *testing.T) {
	env := testEnv(newMemStore())
	h := newRouter(env)

	require.True(t, env.Pipeline.Tracker().Begin())
	defer env.Pipeline.Tracker().Done()

	w := doRequest(t, h, "POST", "/api/ingest", map[string]string{"url": "https://cars.example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestServe_CatalogCRUD(t *testing.T) {
	st := newMemStore()
	rec := seedCatalog(t, st)
	h := newRouter(testEnv(st))

	w := doRequest(t, h, "GET", "/api/catalogs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, h, "GET", "/api/catalogs/"+rec.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lineup.pdf")

	w = doRequest(t, h, "GET", "/api/catalogs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Explicit save of edited records.
	edited := rec.Specs
	edited[0].Price = model.FloatPtr(9999999)
	w = doRequest(t, h, "PUT", "/api/catalogs/"+rec.ID, map[string]any{"extracted_data": edited})
	require.Equal(t, http.StatusOK, w.Code)

	got, err := st.GetCatalog(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.InDelta(t, 9999999, *got.Specs[0].Price, 0.001)

	w = doRequest(t, h, "DELETE", "/api/catalogs/"+rec.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, h, "DELETE", "/api/catalogs/"+rec.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServe_Export(t *testing.T) {
	st := newMemStore()
	rec := seedCatalog(t, st)
	h := newRouter(testEnv(st))

	w := doRequest(t, h, "GET", "/api/catalogs/"+rec.ID+"/export?format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "manufacturer,"))

	w = doRequest(t, h, "GET", "/api/catalogs/"+rec.ID+"/export?format=doc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServe_SummaryLazyGeneration(t *testing.T) {
	st := newMemStore()
	rec := seedCatalog(t, st)
	h := newRouter(testEnv(st))

	w := doRequest(t, h, "POST", "/api/catalogs/"+rec.ID+"/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stub summary")

	got, err := st.GetCatalog(context.Background(), rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "stub summary", *got.Summary)

	w = doRequest(t, h, "POST", "/api/catalogs/missing/summary", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServeUntilDone_DrainsInflightRequests(t *testing.T) {
	started := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		time.Sleep(150 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- serveUntilDone(ctx, &http.Server{Handler: handler}, ln)
	}()

	type result struct {
		code int
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			resCh <- result{err: err}
			return
		}
		defer resp.Body.Close()
		resCh <- result{code: resp.StatusCode}
	}()

	// Shut down while the request is still being handled; it must be
	// allowed to finish.
	<-started
	cancel()

	res := <-resCh
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.code)
	require.NoError(t, <-serveDone)
}

func TestServe_ChatValidation(t *testing.T) {
	st := newMemStore()
	rec := seedCatalog(t, st)
	h := newRouter(testEnv(st))

	w := doRequest(t, h, "POST", "/api/catalogs/"+rec.ID+"/chat", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, h, "POST", "/api/catalogs/missing/chat", map[string]string{"question": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
