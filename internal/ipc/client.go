package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Arkline.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List returns all records with their steps.
func (c *Client) List() (*ListResponse, error) {
	var resp ListResponse
	if err := c.client.Call("Arkline.List", ListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Describe returns details for a single record.
func (c *Client) Describe(id int64) (*DescribeResponse, error) {
	var resp DescribeResponse
	if err := c.client.Call("Arkline.Describe", DescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Add enqueues new records, one per title. Steps may be nil for the
// default pipeline.
func (c *Client) Add(titles []string, steps []StepSpecView) (*AddResponse, error) {
	var resp AddResponse
	req := AddRequest{Titles: titles, Steps: steps}
	if err := c.client.Call("Arkline.Add", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Advance re-evaluates a record's pipeline.
func (c *Client) Advance(id int64) (*AdvanceResponse, error) {
	var resp AdvanceResponse
	if err := c.client.Call("Arkline.Advance", AdvanceRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Restart forces one step back through execution.
func (c *Client) Restart(id int64, stepType string) (*RestartResponse, error) {
	var resp RestartResponse
	req := RestartRequest{ID: id, StepType: stepType}
	if err := c.client.Call("Arkline.Restart", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitInput resolves a step waiting on human input.
func (c *Client) SubmitInput(id int64, rerun bool) (*SubmitInputResponse, error) {
	var resp SubmitInputResponse
	req := SubmitInputRequest{ID: id, Rerun: rerun}
	if err := c.client.Call("Arkline.SubmitInput", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Confirm resolves a step waiting on human validation.
func (c *Client) Confirm(id int64) (*ConfirmResponse, error) {
	var resp ConfirmResponse
	if err := c.client.Call("Arkline.Confirm", ConfirmRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Arkline.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Remove deletes a record with its steps and pages.
func (c *Client) Remove(id int64) (*RemoveResponse, error) {
	var resp RemoveResponse
	if err := c.client.Call("Arkline.Remove", RemoveRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
