// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/noldarim/launchpad/internal/config"
	"github.com/noldarim/launchpad/internal/orchestrator/document"
	"github.com/noldarim/launchpad/internal/orchestrator/models"
	"github.com/noldarim/launchpad/internal/orchestrator/pipelines"
	"github.com/noldarim/launchpad/internal/orchestrator/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerFunc func(ctx context.Context, v models.Variant, req models.PipelineRequest, fn pipelines.ProgressFunc) (*pipelines.Outcome, error)

func (f runnerFunc) Run(ctx context.Context, v models.Variant, req models.PipelineRequest, fn pipelines.ProgressFunc) (*pipelines.Outcome, error) {
	return f(ctx, v, req, fn)
}

func instantRunner(doc *document.Bundle) runnerFunc {
	return func(ctx context.Context, v models.Variant, req models.PipelineRequest, fn pipelines.ProgressFunc) (*pipelines.Outcome, error) {
		out := models.NewOutput(v, "test-model")
		out.Markdown = "# " + req.Subject()
		img := models.NewInlineImage("image/png", []byte("png"))
		out.Images = []models.ImageResult{{Index: 0, Prompt: "hero", Image: &img}}
		return &pipelines.Outcome{Output: out.Freeze(), Document: doc}, nil
	}
}

func blockingRunner() runnerFunc {
	return func(ctx context.Context, v models.Variant, req models.PipelineRequest, fn pipelines.ProgressFunc) (*pipelines.Outcome, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

type apiFixture struct {
	Server *httptest.Server
	Runs   *services.RunService
	Data   *services.DataService
}

func newAPIFixture(t *testing.T, runner services.Runner, cfg *config.ServerConfig) *apiFixture {
	t.Helper()
	ds := services.WithDataService(t)
	runs := services.NewRunService(runner, ds.Service, nil)
	t.Cleanup(runs.Close)

	if cfg == nil {
		cfg = &config.ServerConfig{}
	}
	srv := httptest.NewServer(NewRouter(cfg, NewClientRegistry(), NewHandlers(runs, ds.Service)))
	t.Cleanup(srv.Close)

	return &apiFixture{Server: srv, Runs: runs, Data: ds.Service}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.Server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (f *apiFixture) startRun(t *testing.T, variant string, req models.PipelineRequest) string {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/v1/variants/"+variant+"/runs", req)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	require.NotEmpty(t, body["run_id"])
	return body["run_id"]
}

func (f *apiFixture) wait(t *testing.T, runID string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.Runs.Wait(ctx, runID))
}

func TestGetVariants(t *testing.T) {
	f := newAPIFixture(t, instantRunner(nil), nil)

	resp := f.do(t, http.MethodGet, "/api/v1/variants", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string][]string](t, resp)
	assert.Contains(t, body["variants"], "landing")
	assert.Contains(t, body["variants"], "order-bumps")
}

func TestStartRun_CompletesAndServesOutput(t *testing.T) {
	f := newAPIFixture(t, instantRunner(nil), nil)

	runID := f.startRun(t, "research", models.PipelineRequest{Topic: "confeitaria"})
	f.wait(t, runID)

	resp := f.do(t, http.MethodGet, "/api/v1/runs/"+runID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	run := decodeBody[models.PipelineRun](t, resp)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	require.NotNil(t, run.Output.PipelineOutput)
	require.Len(t, run.Output.Images, 1)
	assert.Nil(t, run.Output.Images[0].Image, "stored runs do not carry images")

	resp = f.do(t, http.MethodGet, "/api/v1/runs/"+runID+"/output", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody[models.PipelineOutput](t, resp)
	assert.Equal(t, "# confeitaria", out.Markdown)
	require.Len(t, out.Images, 1)
	assert.NotNil(t, out.Images[0].Image)

	resp = f.do(t, http.MethodGet, "/api/v1/runs?limit=5", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[map[string][]models.PipelineRun](t, resp)
	require.Len(t, list["runs"], 1)
	assert.Equal(t, runID, list["runs"][0].ID)
}

func TestStartRun_Errors(t *testing.T) {
	f := newAPIFixture(t, instantRunner(nil), nil)

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
	}{
		{"unknown variant", "/api/v1/variants/poster/runs", models.PipelineRequest{Description: "x"}, http.StatusNotFound},
		{"invalid json", "/api/v1/variants/landing/runs", "{not json", http.StatusBadRequest},
		{"missing description", "/api/v1/variants/landing/runs", models.PipelineRequest{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decodeBody[map[string]string](t, resp)
			assert.NotEmpty(t, body["error"])
		})
	}

	resp := f.do(t, http.MethodGet, "/api/v1/runs?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetRun_NotFound(t *testing.T) {
	f := newAPIFixture(t, instantRunner(nil), nil)

	resp := f.do(t, http.MethodGet, "/api/v1/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/runs/missing/output", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCancelRun(t *testing.T) {
	f := newAPIFixture(t, blockingRunner(), nil)

	runID := f.startRun(t, "council", models.PipelineRequest{Topic: "finanças pessoais"})

	resp := f.do(t, http.MethodPost, "/api/v1/runs/"+runID+"/cancel", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	f.wait(t, runID)

	run, err := f.Runs.Get(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, run.Status)

	resp = f.do(t, http.MethodPost, "/api/v1/runs/"+runID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/runs/ghost/cancel", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunDocuments(t *testing.T) {
	t.Run("docx without pdf", func(t *testing.T) {
		doc := &document.Bundle{DOCX: []byte("PK-docx"), PDFError: "font missing"}
		f := newAPIFixture(t, instantRunner(doc), nil)
		runID := f.startRun(t, "production", models.PipelineRequest{Description: "Ebook de receitas"})
		f.wait(t, runID)

		resp := f.do(t, http.MethodGet, "/api/v1/runs/"+runID+"/document.docx", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "wordprocessingml")
		assert.Contains(t, resp.Header.Get("Content-Disposition"), runID+".docx")
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "PK-docx", string(data))

		resp = f.do(t, http.MethodGet, "/api/v1/runs/"+runID+"/document.pdf", nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		body := decodeBody[map[string]string](t, resp)
		assert.Equal(t, "font missing", body["context"])
	})

	t.Run("pdf", func(t *testing.T) {
		doc := &document.Bundle{DOCX: []byte("PK"), PDF: []byte("%PDF-1.4")}
		f := newAPIFixture(t, instantRunner(doc), nil)
		runID := f.startRun(t, "production", models.PipelineRequest{Description: "Curso de crochê"})
		f.wait(t, runID)

		resp := f.do(t, http.MethodGet, "/api/v1/runs/"+runID+"/document.pdf", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	})

	t.Run("run without document", func(t *testing.T) {
		f := newAPIFixture(t, instantRunner(nil), nil)
		runID := f.startRun(t, "plan", models.PipelineRequest{Description: "Mentoria"})
		f.wait(t, runID)

		resp := f.do(t, http.MethodGet, "/api/v1/runs/"+runID+"/document.docx", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestLandingPageRoutes(t *testing.T) {
	f := newAPIFixture(t, instantRunner(nil), nil)

	resp := f.do(t, http.MethodPost, "/api/v1/landing-pages", models.LandingPage{Title: " "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/landing-pages", models.LandingPage{
		Title:    "Aulas de canto",
		Sections: models.SectionList{{ID: "hero", Title: "Hero"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	page := decodeBody[models.LandingPage](t, resp)
	require.NotEmpty(t, page.ID)

	resp = f.do(t, http.MethodGet, "/api/v1/landing-pages/"+page.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[models.LandingPage](t, resp)
	assert.Equal(t, "Aulas de canto", got.Title)

	resp = f.do(t, http.MethodGet, "/api/v1/landing-pages", nil)
	list := decodeBody[map[string][]models.LandingPage](t, resp)
	assert.Len(t, list["landing_pages"], 1)

	resp = f.do(t, http.MethodDelete, "/api/v1/landing-pages/"+page.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, http.MethodDelete, "/api/v1/landing-pages/"+page.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOrderBumpRoutes(t *testing.T) {
	f := newAPIFixture(t, instantRunner(nil), nil)

	resp := f.do(t, http.MethodPost, "/api/v1/order-bumps", map[string]interface{}{"bumps": []models.OrderBump{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/order-bumps", map[string]interface{}{
		"bumps": []models.OrderBump{{Name: "Planilha", Price: -1, Category: models.BumpTool}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/order-bumps", map[string]interface{}{
		"run_id": "run-7",
		"bumps": []models.OrderBump{
			{Name: "Planilha", Price: 27, Category: models.BumpTool},
			{Name: "Comunidade VIP", Price: 47, Category: models.BumpCommunity},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[map[string][]models.OrderBumpRow](t, resp)
	require.Len(t, created["order_bumps"], 2)

	resp = f.do(t, http.MethodGet, "/api/v1/order-bumps?category=tool", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tools := decodeBody[map[string][]models.OrderBumpRow](t, resp)
	require.Len(t, tools["order_bumps"], 1)
	assert.Equal(t, "Planilha", tools["order_bumps"][0].Name)
	assert.Equal(t, "run-7", tools["order_bumps"][0].RunID)

	resp = f.do(t, http.MethodDelete, "/api/v1/order-bumps/"+tools["order_bumps"][0].ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestThemeRoutes(t *testing.T) {
	f := newAPIFixture(t, instantRunner(nil), nil)

	resp := f.do(t, http.MethodPost, "/api/v1/themes", models.Theme{
		Name:   "Terra",
		Tokens: []models.ThemeToken{{Name: "bg", Value: "#fff", Category: "texture"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/themes", models.Theme{
		Name:   "Terra",
		Tokens: []models.ThemeToken{{Name: "bg", Value: "#f5efe6", Category: models.TokenColor}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	row := decodeBody[models.ThemeRow](t, resp)

	resp = f.do(t, http.MethodGet, "/api/v1/themes/"+row.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/v1/themes", nil)
	list := decodeBody[map[string][]models.ThemeRow](t, resp)
	assert.Len(t, list["themes"], 1)

	resp = f.do(t, http.MethodDelete, "/api/v1/themes/"+row.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/api/v1/themes/"+row.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMaxBodyBytes(t *testing.T) {
	f := newAPIFixture(t, instantRunner(nil), &config.ServerConfig{MaxBodyBytes: 64})

	resp := f.do(t, http.MethodPost, "/api/v1/variants/landing/runs", models.PipelineRequest{
		Description: strings.Repeat("a", 200),
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}
