package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchapps/job-maker/internal/catalog"
	"github.com/researchapps/job-maker/internal/scheduler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadedStore(t *testing.T) *catalog.Store {
	t.Helper()
	cat, err := catalog.New(map[string]*catalog.Cluster{
		"sherlock": {
			Partitions: map[string]catalog.PartitionLimits{
				"normal": {MaxNodes: 4, MaxMemPerCPU: 4000, AllowedQos: []string{"normal", "long"}},
				"gpu":    {MaxNodes: 2},
			},
			Features:          map[string][]string{"gpu": {"gpu", "highmem"}},
			DefaultPartitions: []string{"normal"},
		},
	})
	require.NoError(t, err)
	s := catalog.NewStore(nil)
	s.Set(cat)
	return s
}

func newEngine(t *testing.T, store *catalog.Store) *gin.Engine {
	t.Helper()
	r, err := New(store, quietLogger())
	require.NoError(t, err)
	return r
}

func do(r http.Handler, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newEngine(t, loadedStore(t))
	w := do(r, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["catalog_loaded"])

	r = newEngine(t, catalog.NewStore(nil))
	w = do(r, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["catalog_loaded"])
}

func TestListClusters(t *testing.T) {
	r := newEngine(t, loadedStore(t))
	w := do(r, http.MethodGet, "/api/v1/clusters", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count   int           `json:"count"`
		Results []ClusterElem `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	cluster := resp.Results[0]
	assert.Equal(t, "sherlock", cluster.Name)
	require.Len(t, cluster.Partitions, 2)
	assert.Equal(t, "gpu", cluster.Partitions[0].Name)
	assert.Equal(t, []string{"gpu", "highmem"}, cluster.Partitions[0].Features)
	assert.Equal(t, []string{}, cluster.Partitions[0].AllowedQos)
	assert.True(t, cluster.Partitions[1].Default)
}

func TestGetCluster(t *testing.T) {
	r := newEngine(t, loadedStore(t))

	w := do(r, http.MethodGet, "/api/v1/clusters/sherlock", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var cluster ClusterElem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cluster))
	assert.Equal(t, []string{"normal"}, cluster.DefaultPartitions)

	w = do(r, http.MethodGet, "/api/v1/clusters/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCatalogUnavailable(t *testing.T) {
	r := newEngine(t, catalog.NewStore(nil))

	for _, target := range []string{"/api/v1/clusters", "/api/v1/clusters/sherlock"} {
		w := do(r, http.MethodGet, target, nil, "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, target)
	}

	w := do(r, http.MethodPost, "/api/v1/scripts",
		strings.NewReader(`{"cluster":"sherlock","hours":1}`), "application/json")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCreateScript(t *testing.T) {
	r := newEngine(t, loadedStore(t))

	body := `{"cluster":"sherlock","partition":"normal","memory":9000,"hours":2,"job_name":"align","features":["ib"]}`
	w := do(r, http.MethodPost, "/api/v1/scripts", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ScriptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "align.job", resp.JobFile)
	assert.Equal(t, "normal", resp.Partition)
	assert.Contains(t, resp.Script, "#SBATCH --nodes=1\n")
	assert.Contains(t, resp.Script, "#SBATCH --mem=4000\n")
	assert.Contains(t, resp.Script, "#SBATCH --time=02:00:00\n")
	assert.Contains(t, resp.Warning, "4000 MB per CPU limit")
}

func TestCreateScriptValidation(t *testing.T) {
	r := newEngine(t, loadedStore(t))

	tests := []struct {
		name string
		body string
		want string
	}{
		{"too many nodes", `{"cluster":"sherlock","partition":"gpu","nodes":3,"hours":1}`,
			"there are only 2 nodes available on gpu (sherlock)"},
		{"no time", `{"cluster":"sherlock"}`, "Please specify a valid time for your job."},
		{"no cluster", `{"hours":1}`, "please select a cluster name to run your job"},
		{"bad qos", `{"cluster":"sherlock","qos":"owners","hours":1}`, "qos owners is not allowed"},
		{"extra overrides nodes", `{"cluster":"sherlock","nodes":1,"hours":1,"extra":["--nodes=999"]}`,
			"would override the nodes setting"},
		{"multi-line job name", `{"cluster":"sherlock","nodes":1,"hours":1,"job_name":"x\n#SBATCH --nodes=999"}`,
			"job_name must be a single line"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/v1/scripts", strings.NewReader(tt.body), "application/json")
			require.Equal(t, http.StatusUnprocessableEntity, w.Code)

			var resp ScriptResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.OK)
			assert.Contains(t, resp.Error, tt.want)
			assert.Empty(t, resp.Script)
		})
	}
}

func TestCreateScriptBadJSON(t *testing.T) {
	r := newEngine(t, loadedStore(t))
	w := do(r, http.MethodPost, "/api/v1/scripts", strings.NewReader(`{"nodes":"many"`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFormPage(t *testing.T) {
	r := newEngine(t, loadedStore(t))

	w := do(r, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<option value="sherlock">sherlock</option>`)
	assert.Contains(t, w.Body.String(), "normal (default)")

	form := url.Values{
		"cluster":  {"sherlock"},
		"nodes":    {"2"},
		"hours":    {"1"},
		"minutes":  {"30"},
		"features": {"gpu, highmem"},
		"job_name": {"<script>"},
		"script":   {"echo hi\r\n"},
	}
	form.Set("partition", "gpu")
	w = do(r, http.MethodPost, "/", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusOK, w.Code)
	page := w.Body.String()
	assert.Contains(t, page, `#SBATCH --constraint=&#34;gpu&amp;highmem&#34;`)
	assert.Contains(t, page, "#SBATCH --time=01:30:00")
	assert.Contains(t, page, "&lt;script&gt;.job")
	assert.NotContains(t, page, "<script>")
}

func TestFormPageErrors(t *testing.T) {
	r := newEngine(t, loadedStore(t))

	form := url.Values{"cluster": {"sherlock"}, "nodes": {"0"}, "hours": {"1"}}
	w := do(r, http.MethodPost, "/", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "You must specify at least one node.")

	form = url.Values{"cluster": {"sherlock"}, "nodes": {"two"}}
	w = do(r, http.MethodPost, "/", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "nodes must be a whole number")

	r = newEngine(t, catalog.NewStore(nil))
	w = do(r, http.MethodPost, "/", strings.NewReader("cluster=sherlock&hours=1"), "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "cluster catalog is not available")
}

func TestFormInputToForm(t *testing.T) {
	in := formInput{
		Cluster:  "sherlock",
		Memory:   "4G",
		Features: []string{"a,b", "c"},
		Script:   "line1\r\nline2",
	}
	form, err := in.toForm()
	require.NoError(t, err)
	assert.Equal(t, 1, form.Nodes)
	mem, ok := form.MemoryMB()
	assert.True(t, ok)
	assert.Equal(t, 4096, mem)
	assert.Equal(t, []string{"a", "b", "c"}, form.Features)
	assert.Equal(t, "line1\nline2", form.Script)

	_, err = formInput{Memory: "lots"}.toForm()
	assert.ErrorIs(t, err, scheduler.ErrInvalidMemory)
}

func TestServeShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ln, newEngine(t, loadedStore(t)), time.Second, quietLogger())
	}()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/healthz")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
