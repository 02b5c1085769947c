package service

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hookgate/internal/repository"
	"go.jetify.com/typeid/v2"
)

const (
	endpointIDPrefix = "ep"
	resolveTimeout   = 3 * time.Second
)

// Resolver looks up destination hosts. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// EndpointService manages a tenant's forwarding destinations.
type EndpointService struct {
	repo     EndpointStore
	resolver Resolver
}

func NewEndpointService(repo EndpointStore, resolver Resolver) *EndpointService {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &EndpointService{repo: repo, resolver: resolver}
}

func (s *EndpointService) List(ctx context.Context, tenantID string) ([]*model.Endpoint, error) {
	eps, err := s.repo.List(ctx, tenantID)
	if err != nil {
		return nil, apperrors.NewInternal("failed to list endpoints", err)
	}
	return eps, nil
}

func (s *EndpointService) Create(ctx context.Context, tenantID string, req model.EndpointRequest) (*model.Endpoint, error) {
	if req.URL == nil || strings.TrimSpace(*req.URL) == "" {
		return nil, apperrors.NewInvalidRequest("url is required").WithReason("missing_url")
	}
	u, err := s.checkURL(ctx, *req.URL)
	if err != nil {
		return nil, err
	}

	tid, err := typeid.Generate(endpointIDPrefix)
	if err != nil {
		return nil, apperrors.NewInternal("failed to generate endpoint id", err)
	}
	ep := &model.Endpoint{
		ID:       tid.String(),
		TenantID: tenantID,
		Name:     u.Hostname(),
		URL:      u.String(),
		Active:   true,
	}
	if err := applyEndpointFields(ep, req); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, ep); err != nil {
		return nil, mapEndpointErr(err)
	}
	return ep, nil
}

// Update applies the fields present in req. Deactivating an endpoint stops
// future forwards; events already delivered keep their recorded status.
func (s *EndpointService) Update(ctx context.Context, tenantID, id string, req model.EndpointRequest) (*model.Endpoint, error) {
	ep, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, mapEndpointErr(err)
	}
	if req.URL != nil {
		u, err := s.checkURL(ctx, *req.URL)
		if err != nil {
			return nil, err
		}
		ep.URL = u.String()
	}
	if err := applyEndpointFields(ep, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, ep); err != nil {
		return nil, mapEndpointErr(err)
	}
	return ep, nil
}

func (s *EndpointService) Delete(ctx context.Context, tenantID, id string) error {
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return mapEndpointErr(err)
	}
	return nil
}

func applyEndpointFields(ep *model.Endpoint, req model.EndpointRequest) error {
	if req.Name != nil {
		ep.Name = strings.TrimSpace(*req.Name)
	}
	if req.Active != nil {
		ep.Active = *req.Active
	}
	if req.RateLimit != nil {
		if *req.RateLimit < 0 {
			return apperrors.NewInvalidRequest("rateLimit must not be negative").WithReason("invalid_rate_limit")
		}
		ep.RateLimit = *req.RateLimit
	}
	return nil
}

// checkURL accepts http(s) URLs whose host resolves. IP literals skip the lookup.
func (s *EndpointService) checkURL(ctx context.Context, raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, apperrors.NewInvalidRequest("url is not valid").WithReason("invalid_url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, apperrors.NewInvalidRequest("url scheme must be http or https").WithReason("invalid_url_scheme")
	}
	host := u.Hostname()
	if host == "" {
		return nil, apperrors.NewInvalidRequest("url has no host").WithReason("invalid_url")
	}
	if net.ParseIP(host) != nil {
		return u, nil
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()
	addrs, err := s.resolver.LookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		return nil, apperrors.NewInvalidRequest("url host " + host + " does not resolve").WithReason("unresolvable_host")
	}
	return u, nil
}

func mapEndpointErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrEndpointNotFound):
		return apperrors.New(apperrors.ErrNotFound, "endpoint not found", err)
	case errors.Is(err, repository.ErrEndpointConflict):
		return apperrors.New(apperrors.ErrConflict, "an active endpoint with this url already exists", err).WithReason("duplicate_endpoint_url")
	default:
		return apperrors.NewInternal("endpoint store failure", err)
	}
}
