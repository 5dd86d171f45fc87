// Package portalapp is the browser-facing configuration portal: a
// login screen, a sidebar of modules, and per-module template, upload,
// delete and export actions against the workforce backend.
package portalapp

import (
	"bytes"
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/beeforce/configportal/internal/beeforce"
	"github.com/beeforce/configportal/internal/middleware"
	"github.com/beeforce/configportal/internal/recon"
	"github.com/beeforce/configportal/internal/schema"
	"github.com/beeforce/configportal/internal/tabular"
)

//go:embed templates/login.html templates/module.html assets/app.css
var templatesFS embed.FS

const maxUploadBytes = 32 << 20

type server struct {
	cfg        Config
	sessions   *SessionManager
	apiClient  *http.Client
	loginTmpl  *template.Template
	moduleTmpl *template.Template
}

type moduleLink struct {
	Slug   string
	Title  string
	Active bool
}

type moduleView struct {
	Slug      string
	Title     string
	Caption   string
	CanUpload bool
	CanDelete bool
	CanExport bool
}

type pageData struct {
	Error       string
	Notice      string
	Username    string
	Host        string
	DefaultHost string
	Modules     []moduleLink
	Module      *moduleView
	Batch       *recon.Batch
}

func Run(ctx context.Context, cfg Config) error {
	s := &server{
		cfg:      cfg,
		sessions: NewSessionManager(cfg.SessionKey, cfg.SessionTTL),
		apiClient: beeforce.NewHTTPClient(beeforce.Options{
			Timeout:     cfg.RequestTimeout,
			InsecureTLS: cfg.InsecureTLS,
		}),
		loginTmpl:  template.Must(template.ParseFS(templatesFS, "templates/login.html")),
		moduleTmpl: template.Must(template.ParseFS(templatesFS, "templates/module.html")),
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.HandlerFunc(s.loginRoute))
	mux.Handle("/login", http.HandlerFunc(s.loginRoute))
	mux.Handle("/logout", http.HandlerFunc(s.logout))
	mux.Handle("/modules/", http.HandlerFunc(s.moduleRoutes))
	mux.Handle("/assets/app.css", http.HandlerFunc(s.appCSSFile))

	csp := strings.Join([]string{
		"default-src 'self'",
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data:",
		"script-src 'self'",
		"connect-src 'self'",
		"frame-ancestors 'none'",
	}, "; ")

	handler := middleware.Chain(
		mux,
		middleware.RequestLog(),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{ContentSecurityPolicy: csp}),
	)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("portal listening on http://localhost%s", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *server) homePath() string {
	return "/modules/" + schema.Catalog()[0].Slug
}

func (s *server) loginRoute(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/login" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.loginPage(w, r)
	case http.MethodPost:
		s.login(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) loginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessions.Current(r); ok {
		http.Redirect(w, r, s.homePath(), http.StatusFound)
		return
	}
	data := pageData{
		Error:       r.URL.Query().Get("error"),
		DefaultHost: s.cfg.DefaultHost,
	}
	if err := renderHTMLTemplate(w, s.loginTmpl, data); err != nil {
		http.Error(w, "template render failed", http.StatusInternalServerError)
		log.Printf("login template render failed: %v", err)
	}
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.redirectLogin(w, r, "Invalid form submission")
		return
	}

	host := strings.TrimSpace(r.FormValue("host"))
	if host == "" {
		host = s.cfg.DefaultHost
	}
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	if host == "" || username == "" || password == "" {
		s.redirectLogin(w, r, "Host, username and password are required")
		return
	}

	token, err := beeforce.Login(r.Context(), s.apiClient, host, s.cfg.ClientAuth, username, password)
	if err != nil {
		switch {
		case errors.Is(err, beeforce.ErrConnectionFailure):
			s.redirectLogin(w, r, "Authentication service unreachable")
		case errors.Is(err, beeforce.ErrMalformedResponse):
			s.redirectLogin(w, r, "Unexpected response from authentication service")
		default:
			s.redirectLogin(w, r, "Invalid credentials")
		}
		return
	}

	if err := s.sessions.Establish(w, r, token, username, host); err != nil {
		http.Error(w, "unable to establish session", http.StatusInternalServerError)
		log.Printf("establish session: %v", err)
		return
	}
	http.Redirect(w, r, s.homePath(), http.StatusFound)
}

func (s *server) redirectLogin(w http.ResponseWriter, r *http.Request, message string) {
	http.Redirect(w, r, "/?error="+url.QueryEscape(message), http.StatusFound)
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	_ = s.sessions.Clear(w, r)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *server) moduleRoutes(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Current(r)
	if !ok {
		s.redirectLogin(w, r, "Session expired")
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/modules/"), "/")
	parts := strings.Split(rest, "/")
	sch, found := schema.Lookup(parts[0])
	if !found {
		http.NotFound(w, r)
		return
	}

	api := beeforce.New(sess.Host, sess.Token, s.apiClient)

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.modulePage(w, sess, sch, pageData{})
	case len(parts) == 2 && parts[1] == "template" && r.Method == http.MethodGet:
		s.templateDownload(w, r, sess, sch, api)
	case len(parts) == 2 && parts[1] == "export" && r.Method == http.MethodGet:
		s.exportDownload(w, r, sess, sch, api)
	case len(parts) == 2 && parts[1] == "upload" && r.Method == http.MethodPost:
		s.upload(w, r, sess, sch, api)
	case len(parts) == 2 && parts[1] == "delete" && r.Method == http.MethodPost:
		s.deleteByIDs(w, r, sess, sch, api)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) modulePage(w http.ResponseWriter, sess *Session, sch *schema.EntitySchema, data pageData) {
	data.Username = sess.Username
	data.Host = sess.Host
	data.Modules = moduleLinks(sch.Slug)
	data.Module = &moduleView{
		Slug:      sch.Slug,
		Title:     sch.Title,
		Caption:   sch.Caption,
		CanUpload: !sch.UploadDisabled,
		CanDelete: !sch.DeleteDisabled,
		CanExport: !sch.ExportDisabled,
	}
	if err := renderHTMLTemplate(w, s.moduleTmpl, data); err != nil {
		http.Error(w, "template render failed", http.StatusInternalServerError)
		log.Printf("module template render failed: %v", err)
	}
}

func moduleLinks(active string) []moduleLink {
	modules := schema.Catalog()
	links := make([]moduleLink, 0, len(modules))
	for _, sch := range modules {
		links = append(links, moduleLink{Slug: sch.Slug, Title: sch.Title, Active: sch.Slug == active})
	}
	return links
}

func (s *server) templateDownload(w http.ResponseWriter, r *http.Request, sess *Session, sch *schema.EntitySchema, api *beeforce.Client) {
	filename, content, err := schema.BuildTemplate(r.Context(), api, sch)
	if err != nil {
		s.modulePage(w, sess, sch, pageData{Error: "unable to prepare template: " + err.Error()})
		return
	}
	serveDownload(w, filename, content)
}

func (s *server) exportDownload(w http.ResponseWriter, r *http.Request, sess *Session, sch *schema.EntitySchema, api *beeforce.Client) {
	if sch.ExportDisabled {
		s.modulePage(w, sess, sch, pageData{Error: "downloads are not available for this module"})
		return
	}
	filename, content, err := schema.BuildExport(r.Context(), api, sch)
	if err != nil {
		s.modulePage(w, sess, sch, pageData{Error: "unable to prepare download: " + err.Error()})
		return
	}
	serveDownload(w, filename, content)
}

func (s *server) upload(w http.ResponseWriter, r *http.Request, sess *Session, sch *schema.EntitySchema, api *beeforce.Client) {
	if sch.UploadDisabled {
		s.modulePage(w, sess, sch, pageData{Error: "uploads are not available for this module"})
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.modulePage(w, sess, sch, pageData{Error: "invalid upload: " + err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.modulePage(w, sess, sch, pageData{Error: "choose a file to upload"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.modulePage(w, sess, sch, pageData{Error: "unable to read upload: " + err.Error()})
		return
	}

	digest := sha256.Sum256(content)
	hash := hex.EncodeToString(digest[:])
	if s.sessions.UploadSeen(r, sch.Slug, hash) {
		s.modulePage(w, sess, sch, pageData{Error: "this file was already processed"})
		return
	}

	rows, _, err := tabular.ReadUpload(content, header.Filename)
	if err != nil {
		s.modulePage(w, sess, sch, pageData{Error: "unable to parse file: " + err.Error()})
		return
	}
	if len(rows) == 0 {
		s.modulePage(w, sess, sch, pageData{Error: "no data rows found"})
		return
	}

	if err := s.sessions.MarkUpload(w, r, sch.Slug, hash); err != nil {
		log.Printf("mark upload: %v", err)
	}

	batch := recon.Reconcile(r.Context(), api, sch, rows)
	s.modulePage(w, sess, sch, pageData{
		Batch:  batch,
		Notice: fmt.Sprintf("%d rows read, %d succeeded, %d failed", len(rows), batch.Succeeded(), batch.Failed()),
	})
}

func (s *server) deleteByIDs(w http.ResponseWriter, r *http.Request, sess *Session, sch *schema.EntitySchema, api *beeforce.Client) {
	if sch.DeleteDisabled {
		s.modulePage(w, sess, sch, pageData{Error: "deletes are not available for this module"})
		return
	}
	if err := r.ParseForm(); err != nil {
		s.modulePage(w, sess, sch, pageData{Error: "invalid form submission"})
		return
	}

	batch := recon.DeleteByIDs(r.Context(), api, sch, r.FormValue("ids"))
	if len(batch.Results) == 0 {
		s.modulePage(w, sess, sch, pageData{Error: "enter at least one numeric id"})
		return
	}
	s.modulePage(w, sess, sch, pageData{
		Batch:  batch,
		Notice: fmt.Sprintf("%d deletes issued, %d succeeded", len(batch.Results), batch.Succeeded()),
	})
}

func (s *server) appCSSFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := templatesFS.ReadFile("assets/app.css")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = w.Write(data)
}

func serveDownload(w http.ResponseWriter, filename string, content []byte) {
	contentType := "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	if strings.HasSuffix(filename, ".csv") {
		contentType = "text/csv; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(content)
}

func renderHTMLTemplate(w http.ResponseWriter, tmpl *template.Template, data pageData) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := w.Write(buf.Bytes())
	return err
}
