package mux

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sepich/layerproxy/pkg/metrics"
	"github.com/sepich/layerproxy/pkg/model"
	"github.com/sepich/layerproxy/pkg/service"
)

type Service interface {
	GetBlob(ctx context.Context, ref *model.Reference, headers http.Header, w http.ResponseWriter) (int, error)
	ResolveManifest(ctx context.Context, ref *model.Reference, layer int) error
}

func NewRouter(services Service) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// The whole path is the image reference: /{domain}/{path}[:tag][@digest]
	r.HandleFunc("/{reference:.+}", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		mode := model.ObjectTypeManifest
		if query.Get("type") == string(model.ObjectTypeBlob) {
			mode = model.ObjectTypeBlob
		}

		code := serve(services, mode, w, r)
		metrics.Requests.WithLabelValues(string(mode), metrics.Code(code)).Inc()
	}).Methods(http.MethodGet, http.MethodHead)

	return r
}

// serve handles one proxied request and returns the status it answered with.
func serve(services Service, mode model.ObjectType, w http.ResponseWriter, r *http.Request) int {
	ref, err := model.ParseReference(mux.Vars(r)["reference"])
	if err != nil {
		return service.WriteError(w, err)
	}

	if mode == model.ObjectTypeBlob {
		code, err := services.GetBlob(r.Context(), ref, r.Header, w)
		if err != nil {
			return service.WriteError(w, err)
		}
		return code
	}

	query := r.URL.Query()
	layer := 0
	if v := query.Get("layer"); v != "" {
		layer, err = strconv.Atoi(v)
		if err != nil {
			return service.WriteError(w, errors.Wrapf(service.ErrInvalidLayer, "%q", v))
		}
	}

	if err := services.ResolveManifest(r.Context(), ref, layer); err != nil {
		return service.WriteError(w, err)
	}

	query.Set("type", string(model.ObjectTypeBlob))
	query.Set("layer", strconv.Itoa(layer))
	location := url.URL{Path: "/" + ref.String(), RawQuery: query.Encode()}
	http.Redirect(w, r, location.String(), http.StatusFound)
	return http.StatusFound
}
