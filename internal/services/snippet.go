package services

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/EatZeBaby/databooks/internal/entity"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type ArtifactType string

const (
	ArtifactSQL    ArtifactType = "sql"
	ArtifactPython ArtifactType = "python"
)

type Artifact struct {
	Type    ArtifactType `json:"type"`
	Content string       `json:"content"`
}

type SnippetTarget struct {
	Platform string
	Database string
	Schema   string
	Table    string
	Mount    string
	Path     string
	Project  string
	Dataset  string
	IAMRole  string
}

type SnippetUser struct {
	Name  string
	Email string
}

type SnippetContext struct {
	Source map[string]any
	Target SnippetTarget
	User   SnippetUser
}

// NewSnippetContext builds the default connection target for dataset d on platform.
func NewSnippetContext(d *entity.Dataset, platform entity.PlatformType) SnippetContext {
	return SnippetContext{
		Source: d.SourceMetadataJSON,
		Target: SnippetTarget{
			Platform: string(platform),
			Database: "ANALYTICS",
			Schema:   "PUBLIC",
			Table:    strings.ToUpper(d.Name),
			Mount:    "/mnt/delta",
			Path:     strings.ToLower(d.Name),
			Project:  "demo",
			Dataset:  "public",
			IAMRole:  "arn:aws:iam::123456789012:role/RedshiftCopyRole",
		},
		User: SnippetUser{Name: "Demo User", Email: "demo@example.com"},
	}
}

var snippetFiles = map[entity.PlatformType]struct {
	file     string
	artifact ArtifactType
}{
	entity.PlatformSnowflake:  {"snowflake.sql.tmpl", ArtifactSQL},
	entity.PlatformDatabricks: {"databricks.py.tmpl", ArtifactPython},
	entity.PlatformBigQuery:   {"bigquery.sql.tmpl", ArtifactSQL},
	entity.PlatformRedshift:   {"redshift.sql.tmpl", ArtifactSQL},
}

// SnippetRenderer renders connection snippets per platform.
type SnippetRenderer struct {
	templates *template.Template
}

func NewSnippetRenderer() (*SnippetRenderer, error) {
	t, err := template.New("snippets").
		Funcs(template.FuncMap{"lower": strings.ToLower, "upper": strings.ToUpper}).
		ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse snippet templates: %w", err)
	}
	return &SnippetRenderer{templates: t}, nil
}

func (r *SnippetRenderer) Render(platform entity.PlatformType, ctx SnippetContext) (string, []Artifact, error) {
	tmpl, ok := snippetFiles[platform]
	if !ok {
		return "", nil, entity.ErrValidation.New("target_platform_type: unsupported platform %q", platform)
	}
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, tmpl.file, ctx); err != nil {
		return "", nil, fmt.Errorf("failed to render %s snippet: %w", platform, err)
	}
	snippet := buf.String()
	return snippet, []Artifact{{Type: tmpl.artifact, Content: snippet}}, nil
}
