package dist

import (
	"context"
	"fmt"

	"github.com/tsawler/go-ddp/dist/distpb"
)

// ReduceOp selects the element-wise combination used by AllReduce.
type ReduceOp int

const (
	OpSum ReduceOp = iota
	OpMax
)

func (op ReduceOp) String() string {
	switch op {
	case OpSum:
		return "sum"
	case OpMax:
		return "max"
	default:
		return "unknown"
	}
}

// AllReduce combines data element-wise across all ranks; on return every
// rank holds the same reduced vector. The implementation is the standard
// ring: a reduce-scatter pass followed by an all-gather pass, each of
// world-1 rounds, with the vector split into world chunks.
func (pg *ProcessGroup) AllReduce(ctx context.Context, data []float32, op ReduceOp) error {
	if pg.worldSize == 1 {
		return nil
	}
	seq := pg.nextSeq()
	w := pg.worldSize
	rank := pg.rank
	next := (rank + 1) % w
	prev := (rank - 1 + w) % w

	chunkStart := func(i int) int { return i * len(data) / w }
	chunk := func(i int) []float32 { return data[chunkStart(i):chunkStart(i+1)] }

	// Reduce-scatter: after round r, the chunk received in that round
	// has r+2 contributions folded in.
	for r := 0; r < w-1; r++ {
		sendIdx := (rank - r + w) % w
		recvIdx := (rank - r - 1 + w) % w

		if err := pg.send(ctx, next, seq, int32(r), int32(sendIdx), chunk(sendIdx)); err != nil {
			return fmt.Errorf("all-reduce round %d send: %w", r, err)
		}
		incoming, err := pg.service.await(ctx, inboxKey{seq: seq, phase: int32(r), chunk: int32(recvIdx), from: int32(prev)})
		if err != nil {
			return fmt.Errorf("all-reduce round %d recv: %w", r, err)
		}
		dst := chunk(recvIdx)
		if len(incoming) != len(dst) {
			return fmt.Errorf("all-reduce round %d: chunk %d size mismatch: got %d want %d", r, recvIdx, len(incoming), len(dst))
		}
		switch op {
		case OpSum:
			for i, v := range incoming {
				dst[i] += v
			}
		case OpMax:
			for i, v := range incoming {
				if v > dst[i] {
					dst[i] = v
				}
			}
		default:
			return fmt.Errorf("unsupported reduce op %v", op)
		}
	}

	// All-gather: circulate the completed chunks.
	for r := 0; r < w-1; r++ {
		sendIdx := (rank + 1 - r + 2*w) % w
		recvIdx := (rank - r + w) % w
		phase := int32(w - 1 + r)

		if err := pg.send(ctx, next, seq, phase, int32(sendIdx), chunk(sendIdx)); err != nil {
			return fmt.Errorf("all-gather round %d send: %w", r, err)
		}
		incoming, err := pg.service.await(ctx, inboxKey{seq: seq, phase: phase, chunk: int32(recvIdx), from: int32(prev)})
		if err != nil {
			return fmt.Errorf("all-gather round %d recv: %w", r, err)
		}
		copy(chunk(recvIdx), incoming)
	}

	return nil
}

// Broadcast copies root's data to every rank.
func (pg *ProcessGroup) Broadcast(ctx context.Context, data []float32, root int) error {
	if pg.worldSize == 1 {
		return nil
	}
	if root < 0 || root >= pg.worldSize {
		return fmt.Errorf("broadcast root %d out of range", root)
	}
	seq := pg.nextSeq()

	if pg.rank == root {
		for peer := 0; peer < pg.worldSize; peer++ {
			if peer == root {
				continue
			}
			if err := pg.send(ctx, peer, seq, 0, 0, data); err != nil {
				return fmt.Errorf("broadcast to rank %d: %w", peer, err)
			}
		}
		return nil
	}

	incoming, err := pg.service.await(ctx, inboxKey{seq: seq, phase: 0, chunk: 0, from: int32(root)})
	if err != nil {
		return fmt.Errorf("broadcast recv from root %d: %w", root, err)
	}
	if len(incoming) != len(data) {
		return fmt.Errorf("broadcast size mismatch: got %d want %d", len(incoming), len(data))
	}
	copy(data, incoming)
	return nil
}

// Barrier blocks until every rank has reached it.
func (pg *ProcessGroup) Barrier(ctx context.Context) error {
	token := []float32{0}
	return pg.AllReduce(ctx, token, OpSum)
}

func (pg *ProcessGroup) send(ctx context.Context, to int, seq uint64, phase, chunk int32, data []float32) error {
	req := &distpb.TransferRequest{
		Seq:      seq,
		Phase:    phase,
		Chunk:    chunk,
		FromRank: int32(pg.rank),
		Data:     data,
	}
	_, err := pg.clients[to].Transfer(ctx, req)
	return err
}
