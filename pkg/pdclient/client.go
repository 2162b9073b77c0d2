// Package pdclient dials the Placement-Driver cluster and exposes the
// operations the rest of the node needs during bootstrap and steady state:
// cluster-id discovery, store registration, id allocation, heartbeats,
// address resolution, and cluster config lookup. PD's own wire format is
// referenced only by interface; this client carries requests as plain Go
// structs over a JSON gRPC codec rather than a protoc-generated message
// set.
package pdclient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cuemby/stratakv/pkg/log"
	"github.com/cuemby/stratakv/pkg/wire"
)

const (
	serviceName = "pd.PD"
	callTimeout = 10 * time.Second
)

// Client owns a long-lived connection to one PD endpoint, selected from the
// configured list at Connect time.
type Client struct {
	conn     *grpc.ClientConn
	endpoint string
}

// Connect builds a client for the first endpoint in endpoints that
// grpc.NewClient accepts. Each endpoint has already been syntactically
// validated by config.ParsePDEndpoints. No connection is attempted here:
// an unreachable PD surfaces as an error from the first RPC (ClusterID at
// bootstrap), and Connect itself fails only when every endpoint is
// rejected as a target.
func Connect(endpoints []string) (*Client, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("pdclient: no endpoints given")
	}

	var lastErr error
	for _, ep := range endpoints {
		conn, err := grpc.NewClient(ep,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.CallContentSubtype(wire.CodecName)),
		)
		if err != nil {
			lastErr = err
			continue
		}
		return &Client{conn: conn, endpoint: ep}, nil
	}
	return nil, fmt.Errorf("pdclient: dial endpoints %v: %w", endpoints, lastErr)
}

// NewForTesting builds a Client around an already-established connection,
// for packages that need to exercise a fake PD server (e.g. over bufconn)
// without going through Connect's endpoint-dialing logic.
func NewForTesting(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn, endpoint: conn.Target()}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Endpoint returns the PD endpoint this client is connected to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	fullMethod := fmt.Sprintf("/%s/%s", serviceName, method)
	if err := c.conn.Invoke(ctx, fullMethod, req, resp); err != nil {
		return fmt.Errorf("pdclient: %s: %w", method, err)
	}
	return nil
}

// ClusterID fetches the PD cluster identity. A returned id of 0 must be
// treated as fatal by the caller (see config.ValidateClusterID).
func (c *Client) ClusterID(ctx context.Context) (uint64, error) {
	var resp getClusterIDResponse
	if err := c.invoke(ctx, "GetClusterID", &getClusterIDRequest{}, &resp); err != nil {
		return 0, err
	}
	return resp.ClusterID, nil
}

// RegisterStore registers this node's address and labels with PD, returning
// the allocated store id. Called once, on a node's first ever start. Each
// call generates a fresh request id, sends it with the request and logs it;
// a retried call therefore carries a different id from the attempt it
// repeats.
func (c *Client) RegisterStore(ctx context.Context, address string, labels map[string]string) (uint64, error) {
	var resp registerStoreResponse
	req := registerStoreRequest{RequestID: uuid.NewString(), Address: address, Labels: labels}
	if err := c.invoke(ctx, "RegisterStore", &req, &resp); err != nil {
		return 0, err
	}
	log.Logger.Info().Uint64("store_id", resp.StoreID).Str("address", address).Str("request_id", req.RequestID).Msg("registered with pd")
	return resp.StoreID, nil
}

// AllocID allocates a single globally-unique id (used for regions, peers).
func (c *Client) AllocID(ctx context.Context) (uint64, error) {
	var resp allocIDResponse
	if err := c.invoke(ctx, "AllocID", &allocIDRequest{Count: 1}, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// Heartbeat reports store-level capacity to PD. Heartbeat failures are a
// transient operational error; callers retry with backoff rather than
// treating them as fatal.
func (c *Client) Heartbeat(ctx context.Context, storeID uint64, capacity, available uint64) error {
	req := heartbeatRequest{StoreID: storeID, Capacity: capacity, Available: available}
	return c.invoke(ctx, "StoreHeartbeat", &req, &heartbeatResponse{})
}

// ResolveStoreAddress looks up the network address of storeID. Used by the
// Address Resolver Worker on a cache miss.
func (c *Client) ResolveStoreAddress(ctx context.Context, storeID uint64) (string, error) {
	var resp resolveResponse
	req := resolveRequest{StoreID: storeID}
	if err := c.invoke(ctx, "GetStore", &req, &resp); err != nil {
		return "", err
	}
	return resp.Address, nil
}

// ClusterConfig fetches cluster-wide placement parameters.
func (c *Client) ClusterConfig(ctx context.Context) (maxPeerCount uint32, regionSplitBytes uint64, err error) {
	var resp getClusterConfigResponse
	if err := c.invoke(ctx, "GetClusterConfig", &getClusterConfigRequest{}, &resp); err != nil {
		return 0, 0, err
	}
	return resp.MaxPeerCount, resp.RegionSplitBytes, nil
}
