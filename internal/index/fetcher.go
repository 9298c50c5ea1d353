package index

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/satlabs/satindex/internal/log"
)

// TaggedTx pairs a transaction with its precomputed txid so the consumer
// does not pay hash costs.
type TaggedTx struct {
	Tx   *wire.MsgTx
	TxID chainhash.Hash
}

// BlockData is one fetched block, ready for the consumer.
type BlockData struct {
	Header wire.BlockHeader
	TxData []TaggedTx
}

func newBlockData(block *wire.MsgBlock) BlockData {
	txdata := make([]TaggedTx, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		txdata = append(txdata, TaggedTx{Tx: tx, TxID: tx.TxHash()})
	}
	return BlockData{Header: block.Header, TxData: txdata}
}

// fetchQueueDepth bounds the producer queue; a full queue blocks the
// producer, giving natural backpressure.
const fetchQueueDepth = 32

// maxRetryBackoff caps the producer's exponential retry backoff.
const maxRetryBackoff = 120 * time.Second

// fetchBlocks starts a producer goroutine pulling blocks at consecutive
// heights from height up to heightLimit (exclusive; zero means no limit).
// The returned channel is closed when the chain ends, the limit is reached,
// or fetching fails permanently. Closing done stops the producer.
func fetchBlocks(client Client, height, heightLimit uint64, withTransactions, retry bool) (<-chan BlockData, chan struct{}) {
	blocks := make(chan BlockData, fetchQueueDepth)
	done := make(chan struct{})

	go func() {
		defer close(blocks)
		for {
			if heightLimit > 0 && height >= heightLimit {
				return
			}
			block, err := getBlockWithRetries(client, height, withTransactions, retry)
			if err != nil {
				log.Fetch.Error().Err(err).Uint64("height", height).Msg("Failed to fetch block")
				return
			}
			if block == nil {
				// End of chain.
				return
			}
			select {
			case blocks <- newBlockData(block):
				height++
			case <-done:
				log.Fetch.Debug().Uint64("height", height).Msg("Block receiver gone")
				return
			}
		}
	}()

	return blocks, done
}

// getBlockWithRetries fetches the block at height, retrying transport
// failures with exponential backoff up to maxRetryBackoff. Returns
// (nil, nil) past the end of the chain. With retry disabled the first
// failure is returned immediately.
func getBlockWithRetries(client Client, height uint64, withTransactions, retry bool) (*wire.MsgBlock, error) {
	var errors uint
	for {
		block, err := getBlock(client, height, withTransactions)
		if err == nil {
			return block, nil
		}
		if !retry {
			return nil, err
		}

		errors++
		backoff := time.Duration(1<<errors) * time.Second
		if backoff > maxRetryBackoff {
			return nil, fmt.Errorf("fetch block %d: giving up after backoff exceeded %s: %w", height, maxRetryBackoff, err)
		}
		log.Fetch.Error().
			Err(err).
			Uint64("height", height).
			Dur("retry_in", backoff).
			Msg("Failed to fetch block, retrying")
		time.Sleep(backoff)
	}
}

// getBlock fetches one block, or just its header when transactions are not
// needed. Returns (nil, nil) when the source has no block at height.
func getBlock(client Client, height uint64, withTransactions bool) (*wire.MsgBlock, error) {
	hash, err := client.GetBlockHash(height)
	if err != nil {
		return nil, fmt.Errorf("get block hash %d: %w", height, err)
	}
	if hash == nil {
		return nil, nil
	}

	if withTransactions {
		block, err := client.GetBlock(hash)
		if err != nil {
			return nil, fmt.Errorf("get block %s: %w", hash, err)
		}
		return block, nil
	}

	header, err := client.GetBlockHeader(hash)
	if err != nil {
		return nil, fmt.Errorf("get block header %s: %w", hash, err)
	}
	return &wire.MsgBlock{Header: *header}, nil
}
