package server

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/researchapps/job-maker/internal/catalog"
	"github.com/researchapps/job-maker/internal/scheduler"
)

//go:embed templates/*.html
var templateFS embed.FS

func parsePage() (*template.Template, error) {
	t, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}
	return t, nil
}

// formInput is the HTML form as posted. Every field is a string so empty
// inputs can be told apart from zero.
type formInput struct {
	Cluster   string   `form:"cluster"`
	Partition string   `form:"partition"`
	Qos       string   `form:"qos"`
	Memory    string   `form:"memory"`
	Nodes     string   `form:"nodes"`
	JobName   string   `form:"job_name"`
	Script    string   `form:"script"`
	Email     string   `form:"email"`
	Output    string   `form:"output"`
	Error     string   `form:"error"`
	Features  []string `form:"features"`
	Hours     string   `form:"hours"`
	Minutes   string   `form:"minutes"`
	Seconds   string   `form:"seconds"`
}

// FeatureText joins the features for the text input.
func (in formInput) FeatureText() string {
	return strings.Join(in.Features, ", ")
}

// toForm converts the posted values. Blank numbers take the form defaults.
func (in formInput) toForm() (scheduler.Form, error) {
	form := scheduler.NewForm()
	form.Cluster = in.Cluster
	form.Partition = in.Partition
	form.Qos = in.Qos
	form.JobName = in.JobName
	form.Script = strings.ReplaceAll(in.Script, "\r\n", "\n")
	form.Email = in.Email
	form.Output = in.Output
	form.Error = in.Error

	for _, v := range in.Features {
		form.Features = append(form.Features, strings.Split(v, ",")...)
	}

	if mem := strings.TrimSpace(in.Memory); mem != "" {
		mb, err := scheduler.ParseMemory(mem)
		if err != nil {
			return form, fmt.Errorf("memory: %w", err)
		}
		form.SetMemory(mb)
	}

	ints := []struct {
		name  string
		value string
		dest  *int
	}{
		{"nodes", in.Nodes, &form.Nodes},
		{"hours", in.Hours, &form.Hours},
		{"minutes", in.Minutes, &form.Minutes},
		{"seconds", in.Seconds, &form.Seconds},
	}
	for _, f := range ints {
		v := strings.TrimSpace(f.value)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return form, fmt.Errorf("%s must be a whole number, got %q", f.name, v)
		}
		*f.dest = n
	}
	return form, nil
}

type pageData struct {
	Clusters     []ClusterElem
	CatalogError string
	Input        formInput
	Result       *scheduler.ValidationResult
	Script       string
	JobFile      string
}

// HandlerGetForm renders an empty form.
func (rt *Router) HandlerGetForm(c *gin.Context) {
	data := rt.newPageData()
	data.Input = formInput{Nodes: "1", Hours: "1"}
	rt.render(c, http.StatusOK, data)
}

// HandlerPostForm validates the posted form and renders the script or the
// problem next to the form.
func (rt *Router) HandlerPostForm(c *gin.Context) {
	data := rt.newPageData()
	if err := c.ShouldBind(&data.Input); err != nil {
		rt.render(c, http.StatusBadRequest, data)
		return
	}

	form, err := data.Input.toForm()
	if err != nil {
		data.Result = &scheduler.ValidationResult{Error: err.Error()}
		rt.render(c, http.StatusUnprocessableEntity, data)
		return
	}

	cat, err := rt.store.Get()
	if err != nil {
		data.Result = &scheduler.ValidationResult{Error: err.Error()}
		rt.render(c, http.StatusServiceUnavailable, data)
		return
	}

	res, err := scheduler.Generate(form, cat)
	summary := scheduler.Summarize(res, err)
	data.Result = &summary
	if err != nil {
		rt.render(c, http.StatusUnprocessableEntity, data)
		return
	}
	data.Script = res.Script
	data.JobFile = res.JobFile()
	rt.render(c, http.StatusOK, data)
}

func (rt *Router) newPageData() pageData {
	var data pageData
	cat, err := rt.store.Get()
	if err != nil {
		data.CatalogError = err.Error()
		return data
	}
	data.Clusters = clusterElems(cat)
	return data
}

func clusterElems(cat *catalog.Catalog) []ClusterElem {
	out := make([]ClusterElem, 0, cat.Len())
	for _, name := range cat.ClusterNames() {
		cluster, _ := cat.Cluster(name)
		out = append(out, clusterElem(name, cluster))
	}
	return out
}

func (rt *Router) render(c *gin.Context, status int, data pageData) {
	var b strings.Builder
	if err := rt.page.Execute(&b, data); err != nil {
		rt.logger.Error("failed to render page", "err", err)
		c.String(http.StatusInternalServerError, "failed to render page")
		return
	}
	c.Data(status, "text/html; charset=utf-8", []byte(b.String()))
}
