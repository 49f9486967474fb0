// Package dist implements the process group used for data-parallel
// training: env-based rendezvous, gRPC transport between ranks, and the
// ring collectives the trainer needs (all-reduce, broadcast, barrier).
package dist

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/tsawler/go-ddp/dist/distpb"
)

// Options configures process group initialization. The zero value plus
// FromEnv mirrors the conventional launcher contract.
type Options struct {
	Rank       int
	WorldSize  int
	MasterAddr string // host:port of rank 0's server
	BindHost   string // interface to listen on, defaults to the advertise host
	Timeout    time.Duration
}

// FromEnv fills Options from the environment variables a distributed
// launcher sets: MASTER_ADDR, MASTER_PORT, RANK and WORLD_SIZE.
func FromEnv() (Options, error) {
	opts := Options{Timeout: 2 * time.Minute}
	ws := os.Getenv("WORLD_SIZE")
	if ws == "" {
		opts.WorldSize = 1
		return opts, nil
	}
	worldSize, err := strconv.Atoi(ws)
	if err != nil {
		return opts, fmt.Errorf("invalid WORLD_SIZE %q: %w", ws, err)
	}
	opts.WorldSize = worldSize
	if worldSize <= 1 {
		return opts, nil
	}

	rank, err := strconv.Atoi(os.Getenv("RANK"))
	if err != nil {
		return opts, fmt.Errorf("invalid RANK %q: %w", os.Getenv("RANK"), err)
	}
	opts.Rank = rank

	host := os.Getenv("MASTER_ADDR")
	port := os.Getenv("MASTER_PORT")
	if host == "" || port == "" {
		return opts, fmt.Errorf("MASTER_ADDR and MASTER_PORT must be set when WORLD_SIZE > 1")
	}
	opts.MasterAddr = net.JoinHostPort(host, port)
	return opts, nil
}

// ProcessGroup is one rank's membership in the training world.
type ProcessGroup struct {
	rank      int
	worldSize int

	server   *grpc.Server
	listener net.Listener
	service  *collectiveService

	conns   []*grpc.ClientConn
	clients []distpb.CollectiveClient

	timeout time.Duration

	mu  sync.Mutex
	seq uint64
}

// Init creates the process group described by the environment. With
// WORLD_SIZE unset or 1 it returns a local no-op group.
func Init(ctx context.Context) (*ProcessGroup, error) {
	opts, err := FromEnv()
	if err != nil {
		return nil, err
	}
	return InitGroup(ctx, opts)
}

// InitGroup creates a process group with explicit options. Every rank
// starts a gRPC server; rank 0 doubles as the rendezvous. All ranks
// register with rank 0, wait for the full world, then connect to every
// peer.
func InitGroup(ctx context.Context, opts Options) (*ProcessGroup, error) {
	if opts.WorldSize <= 1 {
		return &ProcessGroup{rank: 0, worldSize: 1}, nil
	}
	if opts.Rank < 0 || opts.Rank >= opts.WorldSize {
		return nil, fmt.Errorf("rank %d out of range for world size %d", opts.Rank, opts.WorldSize)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}

	masterHost, _, err := net.SplitHostPort(opts.MasterAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid master address %q: %w", opts.MasterAddr, err)
	}
	bindHost := opts.BindHost
	if bindHost == "" {
		bindHost = masterHost
	}

	pg := &ProcessGroup{
		rank:      opts.Rank,
		worldSize: opts.WorldSize,
		timeout:   opts.Timeout,
	}
	pg.service = newCollectiveService(opts.Rank, opts.WorldSize)

	// Rank 0 must listen on the agreed master port; everyone else takes
	// an ephemeral port and reports it during registration.
	listenAddr := net.JoinHostPort(bindHost, "0")
	if opts.Rank == 0 {
		listenAddr = net.JoinHostPort(bindHost, portOf(opts.MasterAddr))
	}
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("rank %d listen on %s: %w", opts.Rank, listenAddr, err)
	}
	pg.listener = lis
	pg.server = grpc.NewServer()
	distpb.RegisterCollectiveServer(pg.server, pg.service)
	go pg.server.Serve(lis)

	ownAddr := net.JoinHostPort(masterHost, portOf(lis.Addr().String()))
	if opts.BindHost != "" {
		ownAddr = net.JoinHostPort(opts.BindHost, portOf(lis.Addr().String()))
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	peers, err := pg.rendezvous(ctx, opts.MasterAddr, ownAddr)
	if err != nil {
		pg.Close()
		return nil, err
	}

	pg.conns = make([]*grpc.ClientConn, opts.WorldSize)
	pg.clients = make([]distpb.CollectiveClient, opts.WorldSize)
	for _, peer := range peers {
		if int(peer.Rank) == opts.Rank {
			continue
		}
		conn, err := grpc.NewClient(peer.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			pg.Close()
			return nil, fmt.Errorf("rank %d connect to rank %d at %s: %w", opts.Rank, peer.Rank, peer.Addr, err)
		}
		pg.conns[peer.Rank] = conn
		pg.clients[peer.Rank] = distpb.NewCollectiveClient(conn)
	}

	return pg, nil
}

// rendezvous registers this rank with rank 0 and polls until the whole
// world has joined.
func (pg *ProcessGroup) rendezvous(ctx context.Context, masterAddr, ownAddr string) ([]*distpb.PeerInfo, error) {
	if pg.rank == 0 {
		pg.service.register(0, ownAddr)
	} else {
		conn, err := grpc.NewClient(masterAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("connect to master %s: %w", masterAddr, err)
		}
		defer conn.Close()
		client := distpb.NewCollectiveClient(conn)
		if err := pg.registerWithRetry(ctx, client, ownAddr); err != nil {
			return nil, err
		}
		return pg.pollWorld(ctx, client)
	}
	return pg.pollWorld(ctx, localClient{pg.service})
}

func (pg *ProcessGroup) registerWithRetry(ctx context.Context, client distpb.CollectiveClient, ownAddr string) error {
	req := &distpb.RegisterRequest{Rank: int32(pg.rank), Addr: ownAddr}
	for {
		_, err := client.Register(ctx, req)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("rank %d register with master: %w (last error: %v)", pg.rank, ctx.Err(), err)
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (pg *ProcessGroup) pollWorld(ctx context.Context, client distpb.CollectiveClient) ([]*distpb.PeerInfo, error) {
	for {
		resp, err := client.GetWorld(ctx, &distpb.WorldRequest{})
		if err == nil && resp.Ready {
			return resp.Peers, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rank %d waiting for world: %w", pg.rank, ctx.Err())
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// localClient adapts the in-process service so rank 0 can poll its own
// rendezvous state without a loopback connection.
type localClient struct {
	svc *collectiveService
}

func (l localClient) Register(ctx context.Context, in *distpb.RegisterRequest, _ ...grpc.CallOption) (*distpb.RegisterResponse, error) {
	return l.svc.Register(ctx, in)
}

func (l localClient) GetWorld(ctx context.Context, in *distpb.WorldRequest, _ ...grpc.CallOption) (*distpb.WorldResponse, error) {
	return l.svc.GetWorld(ctx, in)
}

func (l localClient) Transfer(ctx context.Context, in *distpb.TransferRequest, _ ...grpc.CallOption) (*distpb.TransferResponse, error) {
	return l.svc.Transfer(ctx, in)
}

// Rank returns this process's rank in the group.
func (pg *ProcessGroup) Rank() int {
	return pg.rank
}

// WorldSize returns the number of ranks in the group.
func (pg *ProcessGroup) WorldSize() int {
	return pg.worldSize
}

// IsPrimary reports whether this process is rank 0, the rank that logs,
// evaluates and writes checkpoints.
func (pg *ProcessGroup) IsPrimary() bool {
	return pg.rank == 0
}

// Close shuts down the server and all peer connections.
func (pg *ProcessGroup) Close() {
	for _, conn := range pg.conns {
		if conn != nil {
			conn.Close()
		}
	}
	if pg.server != nil {
		pg.server.Stop()
	}
}

// nextSeq hands out the sequence number for the next collective. All
// ranks issue collectives in the same order, so counters stay aligned.
func (pg *ProcessGroup) nextSeq() uint64 {
	pg.mu.Lock()
	defer pg.mu.Unlock()
	pg.seq++
	return pg.seq
}

func portOf(hostport string) string {
	_, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	return port
}
