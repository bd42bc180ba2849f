// Package website contains the service delivering the website
package website

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	_ "net/http/pprof"
	"os"
	"sync"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gorilla/mux"
	"github.com/relaymetrics/relay-monitor/pkg/api"
	"github.com/relaymetrics/relay-monitor/pkg/reporter"
	"github.com/relaymetrics/relay-monitor/pkg/store"
	"github.com/tdewolff/minify"
	"github.com/tdewolff/minify/html"
	uberatomic "go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	ErrServerAlreadyStarted = errors.New("server was already started")
	EnablePprof             = os.Getenv("PPROF") == "1"
)

const defaultRefreshInterval = 30 * time.Second

type WebserverOpts struct {
	ListenAddress string
	Network       string

	Reporter *reporter.Reporter
	// API, when set, is served under the same listener.
	API *api.Server
	Log *zap.SugaredLogger

	ShowConfigDetails bool
	LinkAPI           string
	PageSize          int

	RefreshInterval time.Duration
}

type Webserver struct {
	opts *WebserverOpts
	log  *zap.SugaredLogger

	reporter *reporter.Reporter

	srv        *http.Server
	srvStarted uberatomic.Bool

	indexTemplate    *template.Template
	statusHTMLData   StatusHTMLData
	rootResponseLock sync.RWMutex

	htmlDefault *[]byte

	minifier *minify.M
}

func NewWebserver(opts *WebserverOpts) (*Webserver, error) {
	var err error

	minifier := minify.New()
	minifier.AddFunc("text/css", html.Minify)
	minifier.AddFunc("text/html", html.Minify)

	server := &Webserver{
		opts:     opts,
		log:      opts.Log,
		reporter: opts.Reporter,

		htmlDefault: &[]byte{},

		minifier: minifier,
	}

	server.indexTemplate, err = ParseIndexTemplate()
	if err != nil {
		return nil, err
	}

	server.statusHTMLData = StatusHTMLData{
		Network:           opts.Network,
		Error:             "No report has been published yet.",
		ShowConfigDetails: opts.ShowConfigDetails,
		LinkAPI:           opts.LinkAPI,
		PageSize:          opts.PageSize,
	}

	return server, nil
}

func (srv *Webserver) StartServer(ctx context.Context) (err error) {
	if srv.srvStarted.Swap(true) {
		return ErrServerAlreadyStarted
	}

	interval := srv.opts.RefreshInterval
	if interval <= 0 {
		interval = defaultRefreshInterval
	}

	// Start background task to regularly update status HTML data
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			srv.UpdateHTML(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	srv.srv = &http.Server{
		Addr:    srv.opts.ListenAddress,
		Handler: srv.Handler(),

		ReadTimeout:       600 * time.Millisecond,
		ReadHeaderTimeout: 400 * time.Millisecond,
		WriteTimeout:      3 * time.Second,
		IdleTimeout:       3 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.srv.Shutdown(shutdownCtx)
	}()

	err = srv.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (srv *Webserver) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", srv.handleRoot).Methods(http.MethodGet)
	if srv.opts.API != nil {
		srv.opts.API.Register(r)
	}
	if EnablePprof {
		srv.log.Info("pprof API enabled")
		r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	}

	withGz := gziphandler.GzipHandler(r)
	return withGz
}

// UpdateHTML renders the latest report and swaps it in for the root page.
func (srv *Webserver) UpdateHTML(ctx context.Context) {
	data := srv.statusHTMLData

	overview, err := srv.reporter.GetOverview(ctx)
	switch {
	case errors.Is(err, store.ErrNoReport):
		data.Overview = nil
		data.Error = "No report has been published yet."
	case err != nil:
		srv.log.Errorw("error getting overview", "error", err)
		return
	default:
		data.Overview = overview
		data.Error = ""
	}

	// Now generate the HTML
	htmlDefault := bytes.Buffer{}

	// default view
	if err := srv.indexTemplate.Execute(&htmlDefault, data); err != nil {
		srv.log.Errorw("error rendering template", "error", err)
		return
	}

	// Minify
	htmlDefaultBytes, err := srv.minifier.Bytes("text/html", htmlDefault.Bytes())
	if err != nil {
		srv.log.Errorw("error minifying htmlDefault", "error", err)
		return
	}

	// Swap the html pointers
	srv.rootResponseLock.Lock()
	srv.statusHTMLData = data
	srv.htmlDefault = &htmlDefaultBytes
	srv.rootResponseLock.Unlock()
}

func (srv *Webserver) handleRoot(w http.ResponseWriter, req *http.Request) {
	var err error

	srv.rootResponseLock.RLock()
	defer srv.rootResponseLock.RUnlock()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = w.Write(*srv.htmlDefault)
	if err != nil {
		srv.log.Error("error writing template")
	}
}
