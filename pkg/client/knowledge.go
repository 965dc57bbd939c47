package client

import (
	"context"
	"net/url"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/risk"
)

// Wire types shared with the server.
type (
	KnowledgeInfo = assessment.KnowledgeInfo
	RegionDetail  = assessment.RegionDetail
	RiskLevelInfo = risk.Info
)

type listResponse struct {
	Items []string `json:"items"`
	Count int      `json:"count"`
}

// Info describes the knowledge snapshot the server is using.
func (c *Client) Info(ctx context.Context) (KnowledgeInfo, error) {
	var info KnowledgeInfo
	err := c.get(ctx, apiPrefix+"/knowledge", &info)
	return info, err
}

// ReloadKnowledge asks the server to reload its knowledge base. With Redis
// coordination enabled the server's peers reload too. A reload already in
// progress elsewhere yields an APIError with status 409.
func (c *Client) ReloadKnowledge(ctx context.Context, reason string) (KnowledgeInfo, error) {
	var info KnowledgeInfo
	err := c.post(ctx, apiPrefix+"/knowledge/reload", reloadRequest{Reason: reason}, &info)
	return info, err
}

type reloadRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Behaviors lists the behavior IDs with a profile, in load order.
func (c *Client) Behaviors(ctx context.Context) ([]string, error) {
	var resp listResponse
	if err := c.get(ctx, apiPrefix+"/behaviors", &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Regions lists every brain region the knowledge base mentions, sorted.
func (c *Client) Regions(ctx context.Context) ([]string, error) {
	var resp listResponse
	if err := c.get(ctx, apiPrefix+"/regions", &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// RegionDetail fetches one region. An unknown region is an *APIError with
// IsNotFound.
func (c *Client) RegionDetail(ctx context.Context, region string) (*RegionDetail, error) {
	var detail RegionDetail
	if err := c.get(ctx, apiPrefix+"/regions/"+url.PathEscape(region), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// RiskLevels returns the risk tier table, lowest first.
func (c *Client) RiskLevels(ctx context.Context) ([]RiskLevelInfo, error) {
	var resp struct {
		Levels []RiskLevelInfo `json:"levels"`
	}
	if err := c.get(ctx, apiPrefix+"/risk-levels", &resp); err != nil {
		return nil, err
	}
	return resp.Levels, nil
}

// Ready reports whether the server has knowledge loaded.
func (c *Client) Ready(ctx context.Context) error {
	return c.get(ctx, "/readyz", nil)
}
