package backend

import (
	"context"
	"encoding/json"
	"time"
)

// AnalysisClient talks to the analysis back-end that owns the capture
// sources (cameras).
type AnalysisClient struct {
	client
}

func NewAnalysisClient(base string) *AnalysisClient {
	return &AnalysisClient{client: newClient(base, defaultTimeout)}
}

func NewAnalysisClientTimeout(base string, timeout time.Duration) *AnalysisClient {
	return &AnalysisClient{client: newClient(base, timeout)}
}

// SourceInfo is one capture source as the analysis back-end reports it.
type SourceInfo struct {
	Sid    string          `json:"sid"`
	URL    string          `json:"url"`
	State  int             `json:"state"`
	Config json.RawMessage `json:"config,omitempty"`
}

type createSourceReq struct {
	Sid    string          `json:"sid,omitempty"`
	URL    string          `json:"url"`
	Config json.RawMessage `json:"config,omitempty"`
}

type createSourceRes struct {
	Status
	Sid string `json:"sid"`
}

// CreateSource registers a capture source. sid may be empty, in which
// case the back-end allocates one; the effective sid is returned.
func (c *AnalysisClient) CreateSource(ctx context.Context, sid, url string, cfg json.RawMessage) (string, error) {
	var res createSourceRes
	if err := c.post(ctx, "create_source", createSourceReq{Sid: sid, URL: url, Config: cfg}, &res); err != nil {
		return "", err
	}
	if err := res.err("create_source"); err != nil {
		return "", err
	}
	return res.Sid, nil
}

// UpdateSource reconfigures an existing source.
func (c *AnalysisClient) UpdateSource(ctx context.Context, sid, url string, cfg json.RawMessage) error {
	var res Status
	if err := c.post(ctx, "update_source", createSourceReq{Sid: sid, URL: url, Config: cfg}, &res); err != nil {
		return err
	}
	return res.err("update_source")
}

// DeleteSource removes a source.
func (c *AnalysisClient) DeleteSource(ctx context.Context, sid string) error {
	var res Status
	req := struct {
		Sid string `json:"sid"`
	}{Sid: sid}
	if err := c.post(ctx, "delete_source", req, &res); err != nil {
		return err
	}
	return res.err("delete_source")
}

type getSourcesRes struct {
	Status
	Sources []SourceInfo `json:"sources"`
}

// GetSources lists every registered source.
func (c *AnalysisClient) GetSources(ctx context.Context) ([]SourceInfo, error) {
	var res getSourcesRes
	if err := c.post(ctx, "get_sources", struct{}{}, &res); err != nil {
		return nil, err
	}
	if err := res.err("get_sources"); err != nil {
		return nil, err
	}
	return res.Sources, nil
}

type getSourceInfoRes struct {
	Status
	Source *SourceInfo `json:"source"`
}

// GetSourceInfo loads one source.
func (c *AnalysisClient) GetSourceInfo(ctx context.Context, sid string) (*SourceInfo, error) {
	var res getSourceInfoRes
	req := struct {
		Sid string `json:"sid"`
	}{Sid: sid}
	if err := c.post(ctx, "get_source_info", req, &res); err != nil {
		return nil, err
	}
	if err := res.err("get_source_info"); err != nil {
		return nil, err
	}
	return res.Source, nil
}
