package dist

import (
	"context"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tsawler/go-ddp/dist/distpb"
)

// collectiveService is the gRPC surface of one rank. It holds the
// rendezvous roster (only used on rank 0) and the inbox that parks
// incoming chunks until the collective loop claims them.
type collectiveService struct {
	distpb.UnimplementedCollectiveServer

	rank      int
	worldSize int

	mu    sync.Mutex
	peers map[int32]string
	inbox map[inboxKey]chan []float32
}

type inboxKey struct {
	seq   uint64
	phase int32
	chunk int32
	from  int32
}

func newCollectiveService(rank, worldSize int) *collectiveService {
	return &collectiveService{
		rank:      rank,
		worldSize: worldSize,
		peers:     make(map[int32]string),
		inbox:     make(map[inboxKey]chan []float32),
	}
}

func (s *collectiveService) register(rank int32, addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[rank] = addr
}

// Register records a rank's address. Served only meaningfully by rank 0.
func (s *collectiveService) Register(_ context.Context, req *distpb.RegisterRequest) (*distpb.RegisterResponse, error) {
	if s.rank != 0 {
		return nil, status.Errorf(codes.FailedPrecondition, "rank %d is not the rendezvous point", s.rank)
	}
	if req.Rank < 0 || int(req.Rank) >= s.worldSize {
		return nil, status.Errorf(codes.InvalidArgument, "rank %d out of range for world size %d", req.Rank, s.worldSize)
	}
	s.register(req.Rank, req.Addr)
	return &distpb.RegisterResponse{WorldSize: int32(s.worldSize)}, nil
}

// GetWorld reports the roster, marking it ready once every rank has
// registered.
func (s *collectiveService) GetWorld(_ context.Context, _ *distpb.WorldRequest) (*distpb.WorldResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := &distpb.WorldResponse{Ready: len(s.peers) == s.worldSize}
	for rank, addr := range s.peers {
		resp.Peers = append(resp.Peers, &distpb.PeerInfo{Rank: rank, Addr: addr})
	}
	return resp, nil
}

// Transfer parks an incoming chunk in the inbox for the collective loop.
func (s *collectiveService) Transfer(_ context.Context, req *distpb.TransferRequest) (*distpb.TransferResponse, error) {
	data := make([]float32, len(req.Data))
	copy(data, req.Data)
	s.channelFor(inboxKey{seq: req.Seq, phase: req.Phase, chunk: req.Chunk, from: req.FromRank}) <- data
	return &distpb.TransferResponse{}, nil
}

// channelFor returns the buffered channel for a key, creating it if the
// receiver has not asked for it yet. Buffer size 1 means the sender's
// RPC never blocks on the receiver's progress.
func (s *collectiveService) channelFor(key inboxKey) chan []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.inbox[key]
	if !ok {
		ch = make(chan []float32, 1)
		s.inbox[key] = ch
	}
	return ch
}

// await blocks until the chunk for key arrives, then retires the key.
func (s *collectiveService) await(ctx context.Context, key inboxKey) ([]float32, error) {
	ch := s.channelFor(key)
	select {
	case data := <-ch:
		s.mu.Lock()
		delete(s.inbox, key)
		s.mu.Unlock()
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
