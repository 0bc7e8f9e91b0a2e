package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerPublicRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("POST /v1/registrations", handler.SubmitRegistration)
}

func registerAdminRoutes(mux *http.ServeMux, handler *Handler, adminToken string) {
	mux.Handle("POST /v1/registrations/{teamID}/confirm", RequireAdminToken(adminToken, http.HandlerFunc(handler.ConfirmRegistration)))
	mux.Handle("POST /v1/registrations/{teamID}/reject", RequireAdminToken(adminToken, http.HandlerFunc(handler.RejectRegistration)))
	mux.Handle("POST /v1/internal/sequences/{name}/resync", RequireAdminToken(adminToken, http.HandlerFunc(handler.ResyncSequence)))
}
