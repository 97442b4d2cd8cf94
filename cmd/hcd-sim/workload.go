package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	hcd "github.com/ehrlich-b/go-hcd"
	"github.com/ehrlich-b/go-hcd/internal/hw"
	"github.com/ehrlich-b/go-hcd/internal/logging"
)

const requestBytes = 4096

// requestWorker keeps one request in flight at a time, alternating reads
// and writes at random priorities.
func requestWorker(ctx context.Context, n *node, id int) error {
	rnd := rand.New(rand.NewPCG(uint64(n.ctrl.ID()), uint64(id)))
	bus := n.sim.Bus()

	buf := make([]byte, requestBytes)
	half := requestBytes / 2
	segs := []hcd.Segment{
		{Addr: bus.Map(buf[:half]), Len: uint32(half)},
		{Addr: bus.Map(buf[half:]), Len: uint32(half)},
	}
	blocks := uint64(n.mem.Size()/hw.BlockSize) - requestBytes/hw.BlockSize

	done := make(chan hcd.Completion, 1)
	for ctx.Err() == nil {
		req := &hcd.Request{
			Service:   hcd.ServiceCache,
			Opcode:    hcd.OpRead,
			Direction: hcd.DirFromHW,
			Target:    uint8(rnd.IntN(2)),
			LBA:       rnd.Uint64N(blocks),
			Length:    requestBytes,
			Segments:  segs,
			Priority:  uint8(rnd.IntN(8)),
			Done:      func(_ *hcd.Request, c hcd.Completion) { done <- c },
		}
		if rnd.IntN(2) == 0 {
			req.Opcode = hcd.OpWrite
			req.Direction = hcd.DirToHW
			req.FUA = rnd.IntN(16) == 0
			for i := range buf {
				buf[i] = byte(rnd.Uint32())
			}
		}

		if err := n.ctrl.Submit(req); err != nil {
			return fmt.Errorf("worker %d: %w", id, err)
		}

		select {
		case c := <-done:
			if c.Err != nil {
				logError(n, req, c.Err)
			}
		case <-ctx.Done():
			// The buffer stays mapped; the request still owns it.
			return ctx.Err()
		}
	}
	return ctx.Err()
}

func logError(n *node, req *hcd.Request, err error) {
	if errors.Is(err, hcd.ErrStopped) {
		return
	}
	logging.Default().Warn("request failed", "ctrl", n.ctrl.ID(), "req", req.ID.String(), "error", err)
}

// endpointWorker streams transfers through one bulk endpoint and cancels
// some of them on the way.
func endpointWorker(ctx context.Context, n *node) error {
	ep, err := n.ctrl.OpenEndpoint(hcd.EndpointConfig{Kind: hcd.EndpointBulk})
	if err != nil {
		return err
	}
	defer ep.Close(context.Background())

	rnd := rand.New(rand.NewPCG(uint64(n.ctrl.ID()), 0xe9))
	bus := n.sim.Bus()
	buf := make([]byte, 1024)
	segs := []hcd.Segment{
		{Addr: bus.Map(buf[:512]), Len: 512},
		{Addr: bus.Map(buf[512:]), Len: 512},
	}

	for ctx.Err() == nil {
		t := &hcd.Transfer{Segments: segs, Done: func(*hcd.Transfer, error) {}}
		if err := ep.Submit(t); err != nil {
			return err
		}
		if rnd.IntN(8) == 0 {
			err := n.ctrl.CancelTransfer(ctx, t)
			switch {
			case err == nil, errors.Is(err, hcd.ErrNotFound), errors.Is(err, hcd.ErrCancelTimeout):
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				return err
			}
		}

		wctx, cancel := context.WithTimeout(ctx, time.Second)
		err := t.Wait(wctx)
		cancel()
		if err != nil && !errors.Is(err, hcd.ErrCancelled) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
	return ctx.Err()
}

func printSummary(w io.Writer, n *node) {
	s := n.ctrl.Metrics().Snapshot()
	info := n.ctrl.Info()
	fmt.Fprintf(w, "controller %d (irq %d, %s)\n", info.ID, info.IRQLine, info.State)
	fmt.Fprintf(w, "  requests:   %d completed, %d failed, %d requeued, %d timeouts\n",
		s.Completed, s.Failed, s.Requeued, s.Timeouts)
	fmt.Fprintf(w, "  doorbells:  %d (avg batch %.2f), %d spurious, %d stale\n",
		s.Doorbells, s.AvgBatchSize, s.Spurious, s.Stale)
	fmt.Fprintf(w, "  transfers:  %d completed, %d cancelled, %d errors\n",
		s.TransfersCompleted, s.TransfersCancelled, s.TransferErrors)
	fmt.Fprintf(w, "  throughput: %.0f IOPS, %s/s, p99 %s\n",
		s.IOPS, formatSize(int64(s.Bandwidth)), time.Duration(s.LatencyP99Ns))
	fmt.Fprintf(w, "  media:      %v\n", n.mem.Stats())
}

// parseSize parses a size string like "64M", "1G", "512K"
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(s)

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
	}
	s = strings.TrimRight(s, "KMG")

	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if num <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}
	return num * multiplier, nil
}

// formatSize formats a byte count as a human-readable string
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"K", "M", "G", "T"}
	return fmt.Sprintf("%.1f %sB", float64(bytes)/float64(div), units[exp])
}
