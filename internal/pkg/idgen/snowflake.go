package idgen

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	mu     sync.Mutex
	node   *snowflake.Node
	nodeID int64
)

// Initialize sets up the Snowflake node used for user and provider link IDs.
// Re-initializing with the same node ID is a no-op; a different node ID is an error
// because IDs already handed out could collide.
func Initialize(id int64) error {
	mu.Lock()
	defer mu.Unlock()

	if node != nil {
		if id != nodeID {
			return fmt.Errorf("id generator already initialized with node %d", nodeID)
		}
		return nil
	}

	n, err := snowflake.NewNode(id)
	if err != nil {
		return fmt.Errorf("failed to create snowflake node %d: %w", id, err)
	}
	node = n
	nodeID = id
	return nil
}

// GenerateID generates a new Snowflake ID as a string
func GenerateID() string {
	mu.Lock()
	n := node
	mu.Unlock()

	if n == nil {
		// Initialize with default node ID if not already initialized
		_ = Initialize(1)
		mu.Lock()
		n = node
		mu.Unlock()
	}
	return n.Generate().String()
}
