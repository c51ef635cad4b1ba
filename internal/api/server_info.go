package api

import (
	"net/http"
)

type ServerInfoHandler struct {
	serverName  string
	environment string
}

func NewServerInfoHandler(name, environment string) *ServerInfoHandler {
	return &ServerInfoHandler{serverName: name, environment: environment}
}

type ServerInfoResponse struct {
	Name        string `json:"name"`
	Environment string `json:"environment"`
}

// GET /api/v1/server/info
func (h *ServerInfoHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "Server info", ServerInfoResponse{
		Name:        h.serverName,
		Environment: h.environment,
	})
}
