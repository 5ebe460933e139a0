// Package preview renders the HTML preview pages and packages finished sets
// into ZIP archives. Pages and archives are kept in the artifact store.
package preview

import (
	"archive/zip"
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/links"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/media"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/spec"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/storage"
)

const htmlMIME = "text/html; charset=utf-8"

//go:embed templates/*.html
var templateFS embed.FS

// ErrUnresolvable is returned when an image reference cannot be loaded.
var ErrUnresolvable = errors.New("image reference could not be resolved")

// Generator renders pages and archives.
type Generator struct {
	artifacts storage.Store
	links     links.Builder
	http      *http.Client
	pages     *template.Template
}

// NewGenerator parses the embedded templates. downloadTimeout bounds
// fetching remote image references.
func NewGenerator(artifacts storage.Store, builder links.Builder, downloadTimeout time.Duration) (*Generator, error) {
	pages, err := template.New("preview").
		Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
		ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse preview templates: %w", err)
	}
	return &Generator{
		artifacts: artifacts,
		links:     builder,
		http:      &http.Client{Timeout: downloadTimeout},
		pages:     pages,
	}, nil
}

type specView struct {
	Count     int
	Format    string
	Size      string
	MaxSizeKB int
	Animated  bool
}

func viewOf(entry spec.Entry) specView {
	return specView{
		Count:     entry.RequiredCount,
		Format:    string(entry.Format),
		Size:      entry.PrimarySize().String(),
		MaxSizeKB: entry.MaxItemSizeKB,
		Animated:  entry.Animated,
	}
}

type beforePage struct {
	Title    string
	TypeName string
	IsMini   bool
	Spec     specView
	Plans    []model.EmoticonPlan
}

type afterPage struct {
	Title       string
	TypeName    string
	IsMini      bool
	Spec        specView
	Images      []string
	Icon        string
	DownloadURL string
}

type statusPage struct {
	TaskID    string
	TaskURL   string
	SocketURL string
}

// BeforePreview renders the plan page and returns its public URL.
func (g *Generator) BeforePreview(ctx context.Context, entry spec.Entry, title string, plans []model.EmoticonPlan) (string, error) {
	page, err := g.render("before.html", beforePage{
		Title:    title,
		TypeName: entry.Name,
		IsMini:   entry.Type.IsMini(),
		Spec:     viewOf(entry),
		Plans:    plans,
	})
	if err != nil {
		return "", err
	}

	id, err := g.artifacts.Put(ctx, storage.KindPreview, page, htmlMIME)
	if err != nil {
		return "", fmt.Errorf("failed to store preview: %w", err)
	}
	return g.links.Preview(id), nil
}

// AfterPreview packages the finished set into a ZIP archive and renders the
// chat-style preview page linking to it.
func (g *Generator) AfterPreview(ctx context.Context, entry spec.Entry, title string, images []string, icon string) (previewURL, downloadURL string, err error) {
	files := make([]ZipFile, 0, len(images)+1)
	shown := make([]string, 0, len(images))

	for i, ref := range images {
		data, err := g.ImageBytes(ctx, ref)
		if err != nil {
			return "", "", fmt.Errorf("emoticon %d: %w", i+1, err)
		}
		files = append(files, ZipFile{
			Name: fmt.Sprintf("emoticon_%02d.%s", i+1, entry.Format.Extension()),
			Data: data,
		})

		url, err := g.publicURL(ctx, ref, data)
		if err != nil {
			return "", "", err
		}
		shown = append(shown, url)
	}

	var iconURL string
	if icon != "" {
		data, err := g.ImageBytes(ctx, icon)
		if err != nil {
			logrus.WithError(err).Warn("icon reference could not be resolved, packaging without icon")
		} else {
			files = append(files, ZipFile{Name: "icon.png", Data: data})
			if iconURL, err = g.publicURL(ctx, icon, data); err != nil {
				return "", "", err
			}
		}
	}

	archive, err := BuildZip(files)
	if err != nil {
		return "", "", err
	}
	zipID, err := g.artifacts.Put(ctx, storage.KindZip, archive, "application/zip")
	if err != nil {
		return "", "", fmt.Errorf("failed to store archive: %w", err)
	}
	downloadURL = g.links.Download(zipID)

	page, err := g.render("after.html", afterPage{
		Title:       title,
		TypeName:    entry.Name,
		IsMini:      entry.Type.IsMini(),
		Spec:        viewOf(entry),
		Images:      shown,
		Icon:        iconURL,
		DownloadURL: downloadURL,
	})
	if err != nil {
		return "", "", err
	}
	pageID, err := g.artifacts.Put(ctx, storage.KindPreview, page, htmlMIME)
	if err != nil {
		return "", "", fmt.Errorf("failed to store preview: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"type":   entry.Type,
		"images": len(images),
		"zip_id": zipID,
	}).Info("after preview created")

	return g.links.Preview(pageID), downloadURL, nil
}

// StatusPage stores the live status page for a task and returns its URL.
func (g *Generator) StatusPage(ctx context.Context, taskID string) (string, error) {
	page, err := g.RenderStatus(taskID)
	if err != nil {
		return "", err
	}
	if err := g.artifacts.PutWithID(ctx, storage.KindStatus, taskID, page, htmlMIME); err != nil {
		return "", fmt.Errorf("failed to store status page: %w", err)
	}
	return g.links.Status(taskID), nil
}

// RenderStatus renders the status page without storing it.
func (g *Generator) RenderStatus(taskID string) ([]byte, error) {
	return g.render("status.html", statusPage{
		TaskID:    taskID,
		TaskURL:   g.links.Task(taskID),
		SocketURL: g.links.Socket(taskID),
	})
}

// StoreImage keeps an image in the artifact store and returns its id.
func (g *Generator) StoreImage(ctx context.Context, data []byte) (string, error) {
	id, err := g.artifacts.Put(ctx, storage.KindImage, data, media.DetectMIME(data))
	if err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return id, nil
}

// ImageBytes loads an image reference: an /image/<id> URL served by this
// process, a data URL, a remote http(s) URL or raw base64.
func (g *Generator) ImageBytes(ctx context.Context, ref string) ([]byte, error) {
	if id, ok := links.ImageID(ref); ok {
		artifact, err := g.artifacts.Get(ctx, storage.KindImage, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, fmt.Errorf("%w: image %s not found or expired", ErrUnresolvable, id)
			}
			return nil, err
		}
		return artifact.Data, nil
	}

	if media.IsRemoteURL(ref) {
		data, err := media.Download(ctx, g.http, ref)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnresolvable, err)
		}
		return data, nil
	}

	data, err := media.DecodeBase64(ref)
	if err != nil || len(data) == 0 {
		return nil, ErrUnresolvable
	}
	return data, nil
}

// publicURL returns a URL a browser can load for ref, storing inline data
// so pages never embed large data URLs.
func (g *Generator) publicURL(ctx context.Context, ref string, data []byte) (string, error) {
	if _, ok := links.ImageID(ref); ok || media.IsRemoteURL(ref) {
		return ref, nil
	}
	id, err := g.StoreImage(ctx, data)
	if err != nil {
		return "", err
	}
	return g.links.Image(id), nil
}

func (g *Generator) render(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := g.pages.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// ZipFile is one archive entry.
type ZipFile struct {
	Name string
	Data []byte
}

// BuildZip writes files into a deflate-compressed archive in order.
func BuildZip(files []ZipFile) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: time.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), nil
}
