package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.loggingMw, s.maxBytesMw)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/user/register", s.userRegister()).Methods(http.MethodPost)
	api.HandleFunc("/user/login", s.userLogin()).Methods(http.MethodPost)
	api.HandleFunc("/user/password/forgot", s.userForgotPassword()).Methods(http.MethodPost)
	api.HandleFunc("/user/password/verify/{token}", s.userVerifyResetToken()).Methods(http.MethodGet)
	api.HandleFunc("/user/password/reset", s.userResetPassword()).Methods(http.MethodPost)

	userAPI := api.PathPrefix("/user").Subrouter()
	userAPI.Use(s.authMw)
	userAPI.HandleFunc("/logout", s.userLogout()).Methods(http.MethodPost)
	userAPI.HandleFunc("/info", s.userInfo()).Methods(http.MethodPost)
	userAPI.HandleFunc("/settings", s.userSettings()).Methods(http.MethodPost)
	userAPI.PathPrefix("").Handler(s.notFoundHandler())

	watchAPI := api.PathPrefix("/watch").Subrouter()
	watchAPI.Use(s.authMw)
	watchAPI.HandleFunc("/add", s.watchAdd()).Methods(http.MethodPost)
	watchAPI.HandleFunc("/update", s.watchUpdate()).Methods(http.MethodPost)
	watchAPI.HandleFunc("/remove", s.watchRemove()).Methods(http.MethodPost)
	watchAPI.HandleFunc("/bulk-condition", s.watchBulkCondition()).Methods(http.MethodPost)
	watchAPI.HandleFunc("/list", s.watchList()).Methods(http.MethodGet)
	watchAPI.PathPrefix("").Handler(s.notFoundHandler())

	ingestAPI := api.PathPrefix("/ingest").Subrouter()
	ingestAPI.Use(s.ingestKeyMw)
	ingestAPI.HandleFunc("/listing", s.ingestListing()).Methods(http.MethodPost)
	ingestAPI.PathPrefix("").Handler(s.notFoundHandler())

	return r
}
