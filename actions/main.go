package actions

import (
	"gitlab.com/tng-miniapp/ledger_api/config"
	"gitlab.com/tng-miniapp/ledger_api/service"
)

// Actions structure
type Actions struct {
	cfg             config.Config
	service         *service.Service
	jwtTokenSecret  string
	serviceAudience string
}

// NewActions constructor
func NewActions(cfg config.Config, srv *service.Service) *Actions {
	return &Actions{
		cfg:             cfg,
		service:         srv,
		jwtTokenSecret:  cfg.Server.API.JWTTokenSecret,
		serviceAudience: cfg.Server.API.ServiceAudience,
	}
}
