// Package id generates time-ordered unique identifiers for sessions
// and audio mark labels.
package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the snowflake node. Safe to call more than once;
// only the first call takes effect.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New returns a new globally unique, time-ordered identifier.
// Init must have been called first.
func New() string {
	return node.Generate().String()
}
