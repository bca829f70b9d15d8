// Package pow implements the nonce-search primitive that produces a header
// satisfying its own declared proof-of-work target: the miner-facing
// counterpart to pkg/difficulty's verification side (C7).
//
// Grounded on internal/consensus/pow.go's Seal/SealWithCancel/
// sealSingle/sealParallel (precomputed signing prefix, strided
// multi-goroutine nonce partitioning, periodic context-cancellation
// checks), rewritten around this core's block.Header (Bits, not a raw
// uint64 Difficulty) and pkg/difficulty.CompactToTarget/CheckProofOfWork
// instead of the teacher's MaxUint256/difficulty target formula. The
// host loop that decides when to build, broadcast, and rebuild a
// candidate block is out of scope (spec.md §1's "miner host loop");
// this package only searches a nonce for an already-built header.
package pow

import (
	"context"
	"encoding/binary"
	"errors"
	"math/big"
	"sync"

	"github.com/parthenon-labs/chaincore/pkg/block"
	"github.com/parthenon-labs/chaincore/pkg/difficulty"
	"github.com/parthenon-labs/chaincore/pkg/hash"
)

// ErrNonceSpaceExhausted reports that every uint32 nonce was tried without
// finding a hash under the header's target.
var ErrNonceSpaceExhausted = errors.New("pow: nonce space exhausted")

var blockTagKey = hash.TagKey("BLOCK")

// Seal searches for a nonce making header's hash satisfy its own Bits field
// and, on success, sets header.Nonce. threads <= 1 runs single-threaded;
// otherwise the nonce space is strided across that many goroutines.
func Seal(ctx context.Context, header *block.Header, threads int) error {
	target, err := difficulty.CompactToTarget(header.Bits)
	if err != nil {
		return err
	}
	if threads <= 1 {
		return sealSingle(ctx, header, target)
	}
	return sealParallel(ctx, header, target, threads)
}

// prefix returns header's canonical encoding with the trailing 4-byte nonce
// field zeroed, so a search loop can overwrite just those bytes per
// iteration instead of re-encoding the whole header.
func prefix(h *block.Header) []byte {
	buf := h.Encode()
	for i := len(buf) - 4; i < len(buf); i++ {
		buf[i] = 0
	}
	return buf
}

func sealSingle(ctx context.Context, header *block.Header, target *big.Int) error {
	buf := prefix(header)
	nonceOffset := len(buf) - 4
	hashInt := new(big.Int)

	for nonce := uint32(0); ; nonce++ {
		if nonce&0xFFFF == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		binary.LittleEndian.PutUint32(buf[nonceOffset:], nonce)
		digest := hash.TaggedWithKey(blockTagKey, buf)
		hashInt.SetBytes(digest[:])
		if hashInt.Cmp(target) <= 0 {
			header.Nonce = nonce
			return nil
		}
		if nonce == ^uint32(0) {
			return ErrNonceSpaceExhausted
		}
	}
}

func sealParallel(ctx context.Context, header *block.Header, target *big.Int, threads int) error {
	buf := prefix(header)
	nonceOffset := len(buf) - 4

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		nonce uint32
		err   error
	}
	found := make(chan result, 1)

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		start := uint32(i)
		stride := uint32(threads)
		go func() {
			defer wg.Done()
			local := make([]byte, len(buf))
			copy(local, buf)
			hashInt := new(big.Int)

			for nonce := start; ; nonce += stride {
				if (nonce/stride)&0xFFFF == 0 && nonce > 0 {
					select {
					case <-ctx.Done():
						return
					default:
					}
				}

				binary.LittleEndian.PutUint32(local[nonceOffset:], nonce)
				digest := hash.TaggedWithKey(blockTagKey, local)
				hashInt.SetBytes(digest[:])
				if hashInt.Cmp(target) <= 0 {
					select {
					case found <- result{nonce: nonce}:
					default:
					}
					cancel()
					return
				}

				if nonce > ^uint32(0)-stride {
					select {
					case found <- result{err: ErrNonceSpaceExhausted}:
					default:
					}
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(found)
	}()

	select {
	case r, ok := <-found:
		if !ok {
			return ErrNonceSpaceExhausted
		}
		if r.err != nil {
			return r.err
		}
		header.Nonce = r.nonce
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
