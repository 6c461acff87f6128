package server

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client calls a remote ExecutionService.
type Client struct {
	openSession  *connect.Client[OpenSessionRequest, OpenSessionResponse]
	execute      *connect.Client[ExecuteRequest, ExecuteResponse]
	checkSyntax  *connect.Client[CheckSyntaxRequest, CheckSyntaxResponse]
	project      *connect.Client[ProjectRequest, ProjectResponse]
	listNodes    *connect.Client[ListNodesRequest, ListNodesResponse]
	closeSession *connect.Client[CloseSessionRequest, CloseSessionResponse]
}

// NewClient returns a client for the service at baseURL
// (e.g. "http://localhost:4567").
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &Client{
		openSession:  connect.NewClient[OpenSessionRequest, OpenSessionResponse](httpClient, baseURL+OpenSessionProcedure, opts...),
		execute:      connect.NewClient[ExecuteRequest, ExecuteResponse](httpClient, baseURL+ExecuteProcedure, opts...),
		checkSyntax:  connect.NewClient[CheckSyntaxRequest, CheckSyntaxResponse](httpClient, baseURL+CheckSyntaxProcedure, opts...),
		project:      connect.NewClient[ProjectRequest, ProjectResponse](httpClient, baseURL+ProjectProcedure, opts...),
		listNodes:    connect.NewClient[ListNodesRequest, ListNodesResponse](httpClient, baseURL+ListNodesProcedure, opts...),
		closeSession: connect.NewClient[CloseSessionRequest, CloseSessionResponse](httpClient, baseURL+CloseSessionProcedure, opts...),
	}
}

func (c *Client) OpenSession(ctx context.Context, req *OpenSessionRequest) (*OpenSessionResponse, error) {
	resp, err := c.openSession.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	resp, err := c.execute.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) CheckSyntax(ctx context.Context, req *CheckSyntaxRequest) (*CheckSyntaxResponse, error) {
	resp, err := c.checkSyntax.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) Project(ctx context.Context, req *ProjectRequest) (*ProjectResponse, error) {
	resp, err := c.project.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) ListNodes(ctx context.Context, req *ListNodesRequest) (*ListNodesResponse, error) {
	resp, err := c.listNodes.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) CloseSession(ctx context.Context, req *CloseSessionRequest) (*CloseSessionResponse, error) {
	resp, err := c.closeSession.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
