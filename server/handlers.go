package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/cashier-go/cfsign/lib"
	"github.com/cashier-go/cfsign/server/metrics"
	"github.com/cashier-go/cfsign/server/signer"
	"github.com/cashier-go/cfsign/server/store"
	"github.com/gorilla/mux"
)

const defaultValidity = time.Hour

func (a *application) sign(w http.ResponseWriter, r *http.Request) {
	req := &lib.SignRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, http.StatusText(http.StatusBadRequest))
		return
	}
	if req.Path == "" {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "No path requested")
		return
	}

	if a.requireReason && req.Message == "" {
		w.Header().Add("X-Need-Reason", "required")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, http.StatusText(http.StatusForbidden))
		return
	}

	if req.ValidUntil.IsZero() {
		validity := a.urlsigner.MaxValidity()
		if validity == 0 {
			validity = defaultValidity
		}
		req.ValidUntil = time.Now().UTC().Add(validity)
	}
	signed, err := a.urlsigner.SignRequest(req)
	if err != nil {
		var verr *signer.ValidationError
		if errors.As(err, &verr) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, err)
			return
		}
		metrics.M.Errs.WithLabelValues("signer").Inc()
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, "Error signing url: %v", err)
		return
	}
	rec := store.MakeRecord(req.Path, signed)
	rec.Message = req.Message
	metrics.M.Signed.WithLabelValues(rec.Policy).Inc()
	if err := a.urlstore.SetRecord(rec); err != nil {
		metrics.M.Errs.WithLabelValues("store").Inc()
		log.Printf("Error recording url: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(&lib.SignResponse{
		Status:   "ok",
		Response: signed.URL,
		Version:  lib.Version,
	}); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

func (a *application) getURLsJSON(w http.ResponseWriter, r *http.Request) {
	includeExpired, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	urls, err := a.urlstore.List(includeExpired)
	if err != nil {
		metrics.M.Errs.WithLabelValues("store").Inc()
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, http.StatusText(http.StatusInternalServerError))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(urls); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}

func (a *application) getURL(w http.ResponseWriter, r *http.Request) {
	rec, err := a.urlstore.Get(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, http.StatusText(http.StatusNotFound))
			return
		}
		metrics.M.Errs.WithLabelValues("store").Inc()
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, http.StatusText(http.StatusInternalServerError))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		log.Printf("Error writing response: %v", err)
	}
}
